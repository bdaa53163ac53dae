package network

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Broadcaster sends a message to every known peer with no delivery
// guarantee.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Mesh is the HTTP broadcast fabric between peers. Outbound sends are
// fire-and-forget posts to every known address; inbound messages land
// on the Inbox channel. When the inbox is full the message is dropped;
// handlers are idempotent, so a retransmission fills the gap.
type Mesh struct {
	self    craps.PeerId
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	addresses map[craps.PeerId]string

	server *http.Server
	client *http.Client
	inbox  chan Message
}

type meshOption func(*Mesh)

// WithTimeout bounds each outbound post.
func WithTimeout(timeout time.Duration) meshOption {
	return func(m *Mesh) {
		m.timeout = timeout
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) meshOption {
	return func(m *Mesh) {
		m.logger = logger
	}
}

// WithInboxSize sets the inbound buffer.
func WithInboxSize(size int) meshOption {
	return func(m *Mesh) {
		m.inbox = make(chan Message, size)
	}
}

func NewMesh(self craps.PeerId, opts ...meshOption) *Mesh {
	m := &Mesh{
		self:      self,
		timeout:   5 * time.Second,
		logger:    slog.Default(),
		addresses: map[craps.PeerId]string{},
		inbox:     make(chan Message, 256),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.client = &http.Client{Timeout: m.timeout}
	m.server = &http.Server{Handler: m}
	return m
}

// Start serves inbound messages on the listener.
func (m *Mesh) Start(l net.Listener) {
	go func() {
		err := m.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
}

func (m *Mesh) Close() error {
	return m.server.Shutdown(context.Background())
}

// Inbox delivers inbound messages in arrival order.
func (m *Mesh) Inbox() <-chan Message {
	return m.inbox
}

// AddPeer registers where to reach a peer.
func (m *Mesh) AddPeer(id craps.PeerId, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[id] = addr
}

// RemovePeer forgets a peer's address.
func (m *Mesh) RemovePeer(id craps.PeerId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.addresses, id)
}

// Peers returns the known peer ids.
func (m *Mesh) Peers() []craps.PeerId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]craps.PeerId, 0, len(m.addresses))
	for id := range m.addresses {
		out = append(out, id)
	}
	return out
}

func (m *Mesh) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	msg, err := DecodeMessage(body)
	if err != nil {
		m.logger.Debug("dropping undecodable message", "err", err)
		rw.WriteHeader(http.StatusNotAcceptable)
		return
	}
	select {
	case m.inbox <- msg:
		rw.WriteHeader(http.StatusAccepted)
	default:
		m.logger.Debug("inbox full, dropping message", "kind", msg.Kind)
		rw.WriteHeader(http.StatusTooManyRequests)
	}
}

// Broadcast posts the message to every known peer except the sender
// itself. Failures are logged and otherwise ignored.
func (m *Mesh) Broadcast(msg Message) {
	encoded, err := msg.Encode()
	if err != nil {
		m.logger.Error("encoding broadcast", "err", err)
		return
	}

	m.mu.RLock()
	targets := make(map[craps.PeerId]string, len(m.addresses))
	for id, addr := range m.addresses {
		if id != m.self {
			targets[id] = addr
		}
	}
	m.mu.RUnlock()

	for id, addr := range targets {
		go func(id craps.PeerId, addr string) {
			resp, err := m.client.Post("http://"+addr, "application/octet-stream", bytes.NewReader(encoded))
			if err != nil {
				m.logger.Debug("broadcast post failed", "peer", id, "err", err)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				m.logger.Debug("broadcast rejected", "peer", id, "status", resp.StatusCode)
			}
		}(id, addr)
	}
}
