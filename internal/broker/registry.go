package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	api "github.com/cat777temp/SimpleMQ/pkg"
)

// client is the broker's record of one connected peer. All access to a
// client's mutable fields goes through the registry's mutex (mu) — never
// held directly.
type client struct {
	id            string
	conn          *conn
	isPublisher   bool
	isSubscriber  bool
	subscriptions map[string]struct{}
	lastActivity  time.Time
	reassemble    *api.Reassembler
}

// subscriberLink is a snapshot of one subscriber's id and connection,
// taken under the clients lock and used after it is released, per the
// two-locks-no-I/O-under-lock discipline.
type subscriberLink struct {
	id   string
	conn *conn
}

// registry is the broker's client table and topic → subscriber index. Both
// are guarded by the same mutex, matching §4.4: "a 'clients lock' that
// guards the client registry and the topic→subscriber index".
type registry struct {
	mu      sync.Mutex
	clients map[string]*client
	topics  map[string]map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		clients: make(map[string]*client),
		topics:  make(map[string]map[string]struct{}),
	}
}

// register creates a fresh client record for a newly accepted connection,
// with both role flags false, and returns its broker-assigned id.
func (r *registry) register(c *conn) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.clients[id] = &client{
		id:            id,
		conn:          c,
		subscriptions: make(map[string]struct{}),
		lastActivity:  time.Now(),
		reassemble:    api.NewReassembler(),
	}
	r.mu.Unlock()
	return id
}

// touch refreshes a client's last-activity timestamp. Every received byte,
// including control frames, does this.
func (r *registry) touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		c.lastActivity = time.Now()
	}
}

// reassemblerFor returns the per-client frame reassembler, or nil if the
// client is unknown (e.g. it was just evicted by the sweeper).
func (r *registry) reassemblerFor(id string) *api.Reassembler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c.reassemble
	}
	return nil
}

// setRole sets isPublisher or isSubscriber true for the given role string.
// Role flags are monotonic: they are only ever set, never cleared while
// connected.
func (r *registry) setRole(id, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return
	}
	switch role {
	case api.RolePublisher:
		c.isPublisher = true
	case api.RoleSubscriber:
		c.isSubscriber = true
	}
}

func (r *registry) isPublisher(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	return ok && c.isPublisher
}

// subscribe adds topic to the client's subscription set and the client to
// the topic's subscriber set, marking the client a subscriber. Reports
// whether the client exists.
func (r *registry) subscribe(id, topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return false
	}
	c.subscriptions[topic] = struct{}{}
	c.isSubscriber = true
	if r.topics[topic] == nil {
		r.topics[topic] = make(map[string]struct{})
	}
	r.topics[topic][id] = struct{}{}
	return true
}

// unsubscribe removes topic from the client's subscription set and the
// client from the topic's subscriber set, dropping the topic-index entry
// if it becomes empty.
func (r *registry) unsubscribe(id, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		delete(c.subscriptions, topic)
	}
	if subs, ok := r.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
}

// subscribersOf snapshots the subscriber set for topic, returning each
// subscriber's id and connection. The caller must not hold any lock while
// writing to these connections.
func (r *registry) subscribersOf(topic string) []subscriberLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	links := make([]subscriberLink, 0, len(subs))
	for id := range subs {
		c, ok := r.clients[id]
		if !ok || !c.isSubscriber {
			continue
		}
		links = append(links, subscriberLink{id: id, conn: c.conn})
	}
	return links
}

// unregister performs the registry half of "unregister client": removing
// the client from every topic's subscriber set (dropping empty topics) and
// removing the client record. It returns the removed client (nil if it was
// already gone) so the caller can close its connection and reassembler
// outside the lock.
func (r *registry) unregister(id string) *client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	for topic := range c.subscriptions {
		if subs, ok := r.topics[topic]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(r.topics, topic)
			}
		}
	}
	delete(r.clients, id)
	return c
}

// sweepInactive returns the ids of every client whose lastActivity is
// older than threshold, as of now. It does not unregister them — the
// caller (the sweeper) does that through unregister, which performs the
// actual lock-scoped mutation.
func (r *registry) sweepInactive(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []string
	for id, c := range r.clients {
		if now.Sub(c.lastActivity) > threshold {
			stale = append(stale, id)
		}
	}
	return stale
}

// clientCount and topicCount support introspection and tests.
func (r *registry) clientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *registry) topicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func (r *registry) hasSubscriber(topic, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		return false
	}
	_, ok = subs[id]
	return ok
}

func (r *registry) allClientIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
