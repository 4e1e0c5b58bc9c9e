package broker

import (
	"sync"

	api "github.com/cat777temp/SimpleMQ/pkg"
)

// cache is the per-topic bounded FIFO of recent messages, replayed to a
// subscriber immediately upon subscription. It is guarded by its own
// mutex, separate from the registry's, per §4.4.
type cache struct {
	mu     sync.Mutex
	size   int
	topics map[string][]*api.Message
}

func newCache(size int) *cache {
	return &cache{
		size:   size,
		topics: make(map[string][]*api.Message),
	}
}

// append adds msg to topic's queue, in publish order, dropping the oldest
// entries until the queue is back within bound. A size of 0 disables
// caching entirely: nothing is ever stored.
func (c *cache) append(topic string, msg *api.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size <= 0 {
		return
	}
	queue := append(c.topics[topic], msg)
	if over := len(queue) - c.size; over > 0 {
		queue = queue[over:]
	}
	c.topics[topic] = queue
}

// snapshot returns a copy of topic's cached messages in FIFO order. The
// copy lets the caller replay them to a subscriber without holding the
// cache lock during the (blocking) writes.
func (c *cache) snapshot(topic string) []*api.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.topics[topic]
	if len(queue) == 0 {
		return nil
	}
	out := make([]*api.Message, len(queue))
	copy(out, queue)
	return out
}

// setSize changes the bound, trimming every existing queue down to it so
// the invariant (length ≤ size) holds immediately, including after
// shrinking.
func (c *cache) setSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	if size < 0 {
		return
	}
	for topic, queue := range c.topics {
		if over := len(queue) - size; over > 0 {
			c.topics[topic] = queue[over:]
		}
	}
}

// clear drops every cached message, used on broker shutdown.
func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = make(map[string][]*api.Message)
}
