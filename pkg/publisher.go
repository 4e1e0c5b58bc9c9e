package api

import (
	"fmt"
	"net"
	"sync"
	"time"
)

const defaultReconnectInterval = 5 * time.Second

type pendingMessage struct {
	topic   string
	payload []byte
}

// PublisherEvents are the callbacks a Publisher raises at the contractually
// specified points. Any field left nil is simply not called.
type PublisherEvents struct {
	OnConnected    func()
	OnDisconnected func()
	OnPublished    func(id string)
	OnError        func(err error)
}

// Publisher is the producer-side client SDK: it connects, registers itself
// as a publisher, and sends data messages, queuing them in memory while
// disconnected and draining the queue on (re)connect.
type Publisher struct {
	host       string
	port       int
	socketPath string
	events     PublisherEvents

	autoReconnect     bool
	reconnectInterval time.Duration

	mu         sync.Mutex
	conn       net.Conn
	registered bool
	pending    []pendingMessage
	stopped    bool
	reconnectT *time.Timer
}

// PublisherOption configures a Publisher at construction time.
type PublisherOption func(*Publisher)

// WithPublisherEvents installs the event callbacks.
func WithPublisherEvents(ev PublisherEvents) PublisherOption {
	return func(p *Publisher) { p.events = ev }
}

// WithAutoReconnect enables automatic reconnection every interval after a
// disconnect or failed connection attempt. interval <= 0 uses the default
// of 5 seconds, matching the broker-visible SDK contract.
func WithAutoReconnect(interval time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.autoReconnect = true
		if interval <= 0 {
			interval = defaultReconnectInterval
		}
		p.reconnectInterval = interval
	}
}

// NewPublisher builds a Publisher targeting host:port, or the local Unix
// endpoint at socketPath when socketPath is non-empty.
func NewPublisher(host string, port int, socketPath string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		host:              host,
		port:              port,
		socketPath:        socketPath,
		reconnectInterval: defaultReconnectInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect opens the transport and registers this client as a publisher.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	conn, err := dial(p.host, p.port, p.socketPath)
	if err != nil {
		p.mu.Unlock()
		p.raiseError(err)
		p.maybeScheduleReconnect()
		return err
	}
	p.conn = conn
	p.registered = false
	p.mu.Unlock()

	if err := p.registerAsPublisher(); err != nil {
		p.raiseError(err)
	}

	if p.events.OnConnected != nil {
		p.events.OnConnected()
	}

	p.drainPending()
	return nil
}

func (p *Publisher) registerAsPublisher() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := writeFrame(p.conn, NewMessage(TopicRegister, []byte(RolePublisher))); err != nil {
		return err
	}
	p.registered = true
	return nil
}

// Publish sends topic/payload if connected, serializing it onto the wire.
// If the publisher is disconnected, the message is enqueued in FIFO order
// and queued is reported true; the published event fires only after an
// actual successful write.
func (p *Publisher) Publish(topic string, payload []byte) (queued bool, err error) {
	p.mu.Lock()
	conn := p.conn
	if conn == nil {
		p.pending = append(p.pending, pendingMessage{topic: topic, payload: payload})
		p.mu.Unlock()
		p.maybeScheduleReconnect()
		return true, nil
	}
	p.mu.Unlock()

	msg := NewMessage(topic, payload)
	if err := p.sendLocked(msg); err != nil {
		p.handleWriteFailure(topic, payload, err)
		return false, err
	}

	if p.events.OnPublished != nil {
		p.events.OnPublished(msg.ID())
	}
	return false, nil
}

func (p *Publisher) sendLocked(msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("not connected")
	}
	return writeFrame(p.conn, msg)
}

func (p *Publisher) handleWriteFailure(topic string, payload []byte, err error) {
	p.raiseError(err)
	p.teardownConn()
	p.mu.Lock()
	p.pending = append(p.pending, pendingMessage{topic: topic, payload: payload})
	p.mu.Unlock()
	if p.events.OnDisconnected != nil {
		p.events.OnDisconnected()
	}
	p.maybeScheduleReconnect()
}

func (p *Publisher) drainPending() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		msg := NewMessage(next.topic, next.payload)
		if err := p.sendLocked(msg); err != nil {
			p.mu.Lock()
			p.pending = append([]pendingMessage{next}, p.pending...)
			p.mu.Unlock()

			p.raiseError(err)
			p.teardownConn()
			if p.events.OnDisconnected != nil {
				p.events.OnDisconnected()
			}
			p.maybeScheduleReconnect()
			return
		}
		if p.events.OnPublished != nil {
			p.events.OnPublished(msg.ID())
		}
	}
}

// Disconnect closes the transport and stops any pending reconnect attempts.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	p.stopped = true
	if p.reconnectT != nil {
		p.reconnectT.Stop()
	}
	p.mu.Unlock()
	p.teardownConn()
}

func (p *Publisher) teardownConn() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.registered = false
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (p *Publisher) maybeScheduleReconnect() {
	if !p.autoReconnect {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.reconnectT != nil {
		return
	}
	p.reconnectT = time.AfterFunc(p.reconnectInterval, p.tryReconnect)
}

func (p *Publisher) tryReconnect() {
	p.mu.Lock()
	p.reconnectT = nil
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}
	if err := p.Connect(); err != nil {
		p.maybeScheduleReconnect()
	}
}

func (p *Publisher) raiseError(err error) {
	if p.events.OnError != nil {
		p.events.OnError(err)
	}
}
