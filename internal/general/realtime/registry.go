package realtime

import (
	"sort"
	"sync"
	"time"

	"transport-connect/internal/general/metrics"
)

// Peer is one live, authenticated connection.
type Peer interface {
	ConnID() string
	UserID() string
	// Send enqueues a frame without blocking; false means the peer could not take it.
	Send(frame []byte) bool
	Close()
}

// Presence is the public view of a registry entry.
type Presence struct {
	UserID   string    `json:"userId"`
	ConnID   string    `json:"-"`
	LastSeen time.Time `json:"lastSeen"`
}

type entry struct {
	peer     Peer
	lastSeen time.Time
}

// Registry maps identities to their single live connection.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*entry
	clock func() time.Time
}

// NewRegistry returns an empty registry. A nil clock uses time.Now.
func NewRegistry(clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{peers: make(map[string]*entry), clock: clock}
}

// Register installs p as the connection of its user. The previous connection,
// if any, is returned so the caller can close it; the newest one wins.
func (r *Registry) Register(p Peer) (replaced Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.peers[p.UserID()]; ok && old.peer.ConnID() != p.ConnID() {
		replaced = old.peer
	}
	r.peers[p.UserID()] = &entry{peer: p, lastSeen: r.clock().UTC()}
	metrics.OnlineConnections.Set(float64(len(r.peers)))
	return replaced
}

// Touch refreshes lastSeen. It reports whether the user is registered.
func (r *Registry) Touch(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.peers[userID]
	if ok {
		e.lastSeen = r.clock().UTC()
	}
	return ok
}

// Unregister removes userID only while connID still owns the entry, so a
// replaced connection tearing down does not evict its successor.
func (r *Registry) Unregister(userID, connID string) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.peers[userID]
	if !ok || e.peer.ConnID() != connID {
		return Presence{}, false
	}
	delete(r.peers, userID)
	metrics.OnlineConnections.Set(float64(len(r.peers)))
	return Presence{UserID: userID, ConnID: connID, LastSeen: e.lastSeen}, true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[userID]
	return ok
}

// Lookup returns the live connection of userID.
func (r *Registry) Lookup(userID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.peers[userID]
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// ListOnline returns a snapshot ordered by user id.
func (r *Registry) ListOnline() []Presence {
	r.mu.RLock()
	out := make([]Presence, 0, len(r.peers))
	for id, e := range r.peers {
		out = append(out, Presence{UserID: id, ConnID: e.peer.ConnID(), LastSeen: e.lastSeen})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len is the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// EvictIdle removes entries not seen for longer than idle and closes their
// connections. The evicted entries are returned in user id order.
func (r *Registry) EvictIdle(idle time.Duration) []Presence {
	cutoff := r.clock().UTC().Add(-idle)

	var (
		evicted []Presence
		peers   []Peer
	)
	r.mu.Lock()
	for id, e := range r.peers {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, Presence{UserID: id, ConnID: e.peer.ConnID(), LastSeen: e.lastSeen})
			peers = append(peers, e.peer)
			delete(r.peers, id)
		}
	}
	metrics.OnlineConnections.Set(float64(len(r.peers)))
	r.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].UserID < evicted[j].UserID })
	return evicted
}
