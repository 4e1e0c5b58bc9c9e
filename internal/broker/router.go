package broker

import (
	"sync"

	api "github.com/cat777temp/SimpleMQ/pkg"
	"github.com/cat777temp/SimpleMQ/internal/logging"
)

// router dispatches decoded frames: it interprets $SYS/* control topics
// against the registry, and fans data publications out to subscribers.
type router struct {
	registry *registry
	cache    *cache
	log      *logging.Logger
	events   *EventHandlers

	publishMu sync.Mutex
	topicLock map[string]*sync.Mutex
}

func newRouter(reg *registry, c *cache, log *logging.Logger, events *EventHandlers) *router {
	return &router{
		registry:  reg,
		cache:     c,
		log:       log,
		events:    events,
		topicLock: make(map[string]*sync.Mutex),
	}
}

// lockTopic returns the serialization mutex for one topic, creating it on
// first use. Holding it for the duration of cache-append + fan-out is what
// gives every subscriber of a topic the same cross-publisher interleaving,
// per §5's ordering guarantee.
func (rt *router) lockTopic(topic string) *sync.Mutex {
	rt.publishMu.Lock()
	defer rt.publishMu.Unlock()
	m, ok := rt.topicLock[topic]
	if !ok {
		m = &sync.Mutex{}
		rt.topicLock[topic] = m
	}
	return m
}

// Dispatch processes one decoded Message from clientID. It is called from
// that client's own read loop, so for a single connection, frames are
// processed in arrival order — giving per-publisher FIFO to every
// subscriber.
func (rt *router) Dispatch(clientID string, msg *api.Message) {
	topic := msg.Topic()

	if api.IsControlTopic(topic) {
		rt.dispatchControl(clientID, topic, msg.Payload())
		return
	}

	rt.dispatchData(clientID, msg)
}

func (rt *router) dispatchControl(clientID, topic string, payload []byte) {
	switch topic {
	case api.TopicRegister:
		role := string(payload)
		rt.registry.setRole(clientID, role)
		rt.log.Infof("client %s registered as %s", clientID, role)

	case api.TopicSubscribe:
		requestedTopic := string(payload)
		topicMu := rt.lockTopic(requestedTopic)
		topicMu.Lock()
		subscribed := rt.registry.subscribe(clientID, requestedTopic)
		if subscribed {
			rt.replayCache(clientID, requestedTopic)
		}
		topicMu.Unlock()

		if !subscribed {
			rt.log.Warnf("subscribe from unknown client %s", clientID)
			return
		}
		rt.log.Infof("client %s subscribed to %s", clientID, requestedTopic)
		rt.events.clientSubscribed(clientID, requestedTopic)

	case api.TopicUnsubscribe:
		requestedTopic := string(payload)
		rt.registry.unsubscribe(clientID, requestedTopic)
		rt.log.Infof("client %s unsubscribed from %s", clientID, requestedTopic)
		rt.events.clientUnsubscribed(clientID, requestedTopic)

	default:
		rt.log.Warnf("unknown control topic %q from client %s", topic, clientID)
	}
}

// replayCache snapshots the topic's cache under the cache lock, then writes
// without holding the cache lock or the clients lock, per §5. The caller holds the topic's publish lock for the
// duration of the subscribe + replay, so this never races a concurrent
// dispatchData for the same topic: the two can't interleave, so a message
// is either fully visible to the replay or not appended yet, never both.
func (rt *router) replayCache(clientID, topic string) {
	cached := rt.cache.snapshot(topic)
	if len(cached) == 0 {
		return
	}
	links := rt.registry.subscribersOf(topic)
	var target *subscriberLink
	for i := range links {
		if links[i].id == clientID {
			target = &links[i]
			break
		}
	}
	if target == nil {
		return
	}
	for _, msg := range cached {
		if _, err := target.conn.Write(api.EncodeFrame(msg)); err != nil {
			rt.log.Warnf("replay to client %s failed: %v", clientID, err)
			return
		}
	}
}

func (rt *router) dispatchData(clientID string, msg *api.Message) {
	if !rt.registry.isPublisher(clientID) {
		rt.log.Warnf("client %s is not registered as publisher, dropping publish to %s", clientID, msg.Topic())
		return
	}

	topicMu := rt.lockTopic(msg.Topic())
	topicMu.Lock()
	defer topicMu.Unlock()

	rt.cache.append(msg.Topic(), msg)

	links := rt.registry.subscribersOf(msg.Topic())
	frame := api.EncodeFrame(msg)
	for _, link := range links {
		if _, err := link.conn.Write(frame); err != nil {
			rt.log.Warnf("fan-out to client %s failed: %v", link.id, err)
		}
	}

	rt.events.messageReceived(msg)
	rt.events.messagePublished(msg)
}
