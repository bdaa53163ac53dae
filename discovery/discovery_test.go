package discovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

func TestDiscover(t *testing.T) {
	n := 5
	game := craps.GameId{0xaa}
	fatal := make(chan error)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			ann := Announcement{
				Game:    game,
				Peer:    craps.PeerId{byte(i + 1)},
				Address: fmt.Sprintf("localhost:%d", 8000+i),
			}
			discover, err := NewWithOptions(ann,
				WithPortRange(9000, 9010),
				WithAttempts(2),
			)
			if err != nil {
				fatal <- err
				return
			}
			set := make(map[craps.PeerId]Entry)
			for k := 0; k < n-1; k++ {
				entry := <-discover.Entries
				t.Logf("node %d found peer %s at %s", i, entry.Peer, entry.Address)
				set[entry.Peer] = entry
			}
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				entry, ok := set[craps.PeerId{byte(j + 1)}]
				if !ok {
					fatal <- fmt.Errorf("node %d did not find peer %d", i, j)
					return
				}
				if entry.Game != game {
					fatal <- fmt.Errorf("node %d found peer %d on game %s", i, j, entry.Game)
					return
				}
			}
			time.Sleep(5 * time.Second)
			fatal <- discover.Close()
		}()
	}
	for k := 0; k < n; k++ {
		if err := <-fatal; err != nil {
			t.Fatal(err)
		}
	}
}
