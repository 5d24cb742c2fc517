package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrPeerExists   = errors.New("peer already registered")
	ErrSlowConsumer = errors.New("peer outbound queue overflowed")
)

// OverflowPolicy decides what happens when a peer's outbound queue is full
type OverflowPolicy int

const (
	// OverflowDisconnect evicts the peer; its send duty ends with ErrSlowConsumer
	OverflowDisconnect OverflowPolicy = iota
	// OverflowDrop discards the frame and keeps the peer
	OverflowDrop
)

func (p OverflowPolicy) String() string {
	if p == OverflowDrop {
		return "drop"
	}
	return "disconnect"
}

// ParseOverflowPolicy parses "disconnect" or "drop"
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disconnect":
		return OverflowDisconnect, nil
	case "drop":
		return OverflowDrop, nil
	default:
		return OverflowDisconnect, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Peer is the outbound side of one connection
type Peer struct {
	id     string
	send   chan []byte
	kicked chan struct{}
	once   sync.Once
}

// NewPeer creates a peer whose queue holds up to buffer frames
func NewPeer(id string, buffer int) *Peer {
	if buffer < 1 {
		buffer = 1
	}
	return &Peer{
		id:     id,
		send:   make(chan []byte, buffer),
		kicked: make(chan struct{}),
	}
}

// ID returns the player id of the peer
func (p *Peer) ID() string { return p.id }

// Outbound is drained by the connection's send duty
func (p *Peer) Outbound() <-chan []byte { return p.send }

// Kicked is closed when the registry evicts the peer
func (p *Peer) Kicked() <-chan struct{} { return p.kicked }

// Prime queues msg on a peer that is not registered yet. Frames primed
// before Register are delivered ahead of anything the registry sends.
func (p *Peer) Prime(msg any) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	select {
	case p.send <- data:
		return nil
	default:
		return fmt.Errorf("outbound queue of %s is full", p.id)
	}
}

func (p *Peer) kick() {
	p.once.Do(func() { close(p.kicked) })
}

// Registry maps player ids to outbound queues.
// Every method is one short critical section and never touches a socket.
type Registry struct {
	peers  map[string]*Peer
	mu     sync.RWMutex
	policy OverflowPolicy
	log    logrus.FieldLogger
}

// NewRegistry creates an empty registry
func NewRegistry(policy OverflowPolicy, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		peers:  make(map[string]*Peer),
		policy: policy,
		log:    log,
	}
}

// Register adds a peer
func (r *Registry) Register(p *Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[p.id]; ok {
		return fmt.Errorf("%w: %s", ErrPeerExists, p.id)
	}
	r.peers[p.id] = p
	return nil
}

// Unregister removes a peer, reporting whether it was present
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Send enqueues msg for id. It returns false when id is unknown or the frame
// could not be queued.
func (r *Registry) Send(id string, msg any) bool {
	data, err := encode(msg)
	if err != nil {
		r.log.WithError(err).WithField("player_id", id).Error("Failed to encode message")
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[id]
	if !ok {
		return false
	}
	return r.enqueue(p, data)
}

// BroadcastExcept enqueues msg for every peer but excluded and returns the
// number of peers it was queued for.
func (r *Registry) BroadcastExcept(excluded string, msg any) int {
	data, err := encode(msg)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode broadcast")
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for id, p := range r.peers {
		if id == excluded {
			continue
		}
		if r.enqueue(p, data) {
			n++
		}
	}
	return n
}

// Len returns the number of registered peers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// IDs returns the registered player ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) enqueue(p *Peer, data []byte) bool {
	select {
	case p.send <- data:
		return true
	default:
	}

	log := r.log.WithFields(logrus.Fields{
		"player_id": p.id,
		"policy":    r.policy,
	})
	if r.policy == OverflowDrop {
		log.Warn("Outbound queue full, dropping frame")
		return false
	}
	log.Warn("Outbound queue full, disconnecting peer")
	p.kick()
	return false
}

func encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	default:
		return json.Marshal(msg)
	}
}
