package broker

import (
	"fmt"
	"sync"

	"github.com/cat777temp/SimpleMQ/internal/config"
	"github.com/cat777temp/SimpleMQ/internal/logging"
)

// Broker is the top-level pub/sub server: it owns the client registry, the
// per-topic replay cache, the router, the liveness sweeper, and the dual
// TCP/local-IPC transport, and wires them together per SPEC_FULL.md §4.
type Broker struct {
	cfg    *config.Broker
	log    *logging.Logger
	events *EventHandlers

	registry  *registry
	cache     *cache
	router    *router
	sweeper   *sweeper
	transport *transport

	stopOnce sync.Once
}

// NewBroker builds a Broker from its configuration, logger, and optional
// event handlers. Nothing is started until Start is called.
func NewBroker(cfg *config.Broker, log *logging.Logger, events *EventHandlers) *Broker {
	if events == nil {
		events = &EventHandlers{}
	}
	reg := newRegistry()
	c := newCache(cfg.CacheSize)
	rt := newRouter(reg, c, log, events)

	b := &Broker{
		cfg:      cfg,
		log:      log,
		events:   events,
		registry: reg,
		cache:    c,
		router:   rt,
	}

	b.sweeper = newSweeper(config.DefaultSweepInterval, config.DefaultInactivityTimeout, log, b.unregisterClient)
	b.transport = newTransport(cfg.Port, config.SocketPath(cfg.ServerName), log, reg, rt, events, b.unregisterClient)
	return b
}

// Start binds the transport and begins the sweeper. A bind failure is
// returned to the caller, which per §7 reports it and exits non-zero.
func (b *Broker) Start() error {
	if err := b.transport.start(); err != nil {
		return fmt.Errorf("broker start: %w", err)
	}
	b.sweeper.start(b.registry)
	b.log.Infof("broker %q ready on port %d", b.cfg.ServerName, b.cfg.Port)
	return nil
}

// Stop halts the acceptor and the sweeper, disconnects every client, and
// drops the replay cache — matching §4.7's broker-shutdown behavior. It is
// safe to call more than once; only the first call does anything.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		b.transport.shutdown()
		b.sweeper.shutdown()

		for _, id := range b.registry.allClientIDs() {
			b.unregisterClient(id)
		}
		b.cache.clear()
		b.log.Infof("broker %q stopped", b.cfg.ServerName)
	})
}

// unregisterClient performs the full "unregister client" operation of
// §4.7: drop it from the registry and topic index, then close its
// transport and release its reassembler. Shared by the sweeper, the
// transport's own disconnect path, and Stop.
func (b *Broker) unregisterClient(id string) {
	c := b.registry.unregister(id)
	closeClientConn(c)
}

// SetCacheSize adjusts the replay cache's bound at runtime, trimming every
// topic's queue to the new size immediately.
func (b *Broker) SetCacheSize(size int) {
	b.cfg.CacheSize = size
	b.cache.setSize(size)
}

// ClientCount and TopicCount support introspection, e.g. for a future
// admin surface or tests.
func (b *Broker) ClientCount() int { return b.registry.clientCount() }
func (b *Broker) TopicCount() int  { return b.registry.topicCount() }
