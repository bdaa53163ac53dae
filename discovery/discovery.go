package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Announcement is what a peer publishes about itself: which table it
// sits at, who opened it, who the peer is and where its mesh listens.
// The public key lets finders verify the peer id and check its
// signatures without a separate handshake.
type Announcement struct {
	Game      craps.GameId `json:"game"`
	Shooter   craps.PeerId `json:"shooter"`
	Peer      craps.PeerId `json:"peer"`
	Address   string       `json:"address"`
	PublicKey []byte       `json:"public_key,omitempty"`
}

// Entry is another peer's announcement found during a scan.
type Entry struct {
	Announcement
}

func New(ann Announcement, port uint16) (*Discover, error) {
	return NewWithOptions(ann,
		WithPortRange(port, port),
		WithAttempts(2),
	)
}

type handler struct {
	ann Announcement
}

func (h handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(h.ann); err != nil {
		panic(err)
	}
}

func (d *Discover) search() {
	for port := d.startPort; port <= d.endPort; port++ {
		if port == d.port {
			continue
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d", port))
		if err != nil {
			continue
		}
		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			panic(err)
		}
		var ann Announcement
		if err := json.Unmarshal(buf, &ann); err != nil {
			// Some other service answered on this port.
			continue
		}
		d.Entries <- Entry{Announcement: ann}
	}
}

func (d *Discover) Close() error {
	return d.server.Shutdown(context.Background())
}

// Find scans the port range once, without announcing anything, and
// returns every announcement heard. A peer that has not yet joined a
// table uses it to see which tables are open.
func Find(startPort, endPort uint16) []Entry {
	var entries []Entry
	for port := startPort; port <= endPort; port++ {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d", port))
		if err != nil {
			continue
		}
		buf, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			continue
		}
		var ann Announcement
		if err := json.Unmarshal(buf, &ann); err != nil {
			continue
		}
		entries = append(entries, Entry{Announcement: ann})
	}
	return entries
}
