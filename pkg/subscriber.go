package api

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// SubscriberEvents are the callbacks a Subscriber raises at the
// contractually specified points. Any field left nil is simply not called.
type SubscriberEvents struct {
	OnConnected    func()
	OnDisconnected func()
	OnSubscribed   func(topic string)
	OnUnsubscribed func(topic string)
	OnError        func(err error)
}

// MessageHandler receives every message delivered for a subscribed topic.
type MessageHandler func(msg *Message)

// Subscriber is the consumer-side client SDK: it connects, registers
// itself as a subscriber, and restores every locally-known subscription on
// (re)connect.
type Subscriber struct {
	host       string
	port       int
	socketPath string
	events     SubscriberEvents

	autoReconnect     bool
	reconnectInterval time.Duration

	mu         sync.Mutex
	conn       net.Conn
	reassemble *Reassembler
	registered bool
	handlers   map[string]MessageHandler
	stopped    bool
	reconnectT *time.Timer
}

// SubscriberOption configures a Subscriber at construction time.
type SubscriberOption func(*Subscriber)

// WithSubscriberEvents installs the event callbacks.
func WithSubscriberEvents(ev SubscriberEvents) SubscriberOption {
	return func(s *Subscriber) { s.events = ev }
}

// WithSubscriberAutoReconnect enables automatic reconnection every interval
// after a disconnect or failed connection attempt.
func WithSubscriberAutoReconnect(interval time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.autoReconnect = true
		if interval <= 0 {
			interval = defaultReconnectInterval
		}
		s.reconnectInterval = interval
	}
}

// NewSubscriber builds a Subscriber targeting host:port, or the local Unix
// endpoint at socketPath when socketPath is non-empty.
func NewSubscriber(host string, port int, socketPath string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		host:              host,
		port:              port,
		socketPath:        socketPath,
		reconnectInterval: defaultReconnectInterval,
		handlers:          make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the transport, registers this client as a subscriber, and
// re-issues $SYS/SUBSCRIBE for every topic already in the local
// subscription set. The set is captured before OnConnected runs, so a
// topic that OnConnected subscribes to for the first time — which already
// sends its own $SYS/SUBSCRIBE — is not resubscribed a second time here. A
// topic already in the set before Connect is re-sent here even if
// OnConnected subscribes to it again.
func (s *Subscriber) Connect() error {
	s.mu.Lock()
	conn, err := dial(s.host, s.port, s.socketPath)
	if err != nil {
		s.mu.Unlock()
		s.raiseError(err)
		s.maybeScheduleReconnect()
		return err
	}
	s.conn = conn
	s.reassemble = NewReassembler()
	s.registered = false
	s.mu.Unlock()

	if err := s.registerAsSubscriber(); err != nil {
		s.raiseError(err)
	}

	priorTopics := s.existingTopics()

	if s.events.OnConnected != nil {
		s.events.OnConnected()
	}

	go s.readLoop(conn)
	s.resubscribe(priorTopics)
	return nil
}

func (s *Subscriber) existingTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.handlers))
	for topic := range s.handlers {
		topics = append(topics, topic)
	}
	return topics
}

func (s *Subscriber) registerAsSubscriber() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("not connected")
	}
	if err := writeFrame(s.conn, NewMessage(TopicRegister, []byte(RoleSubscriber))); err != nil {
		return err
	}
	s.registered = true
	return nil
}

// Subscribe registers interest in topic with handler and sends
// $SYS/SUBSCRIBE. Subscribing while disconnected is refused.
func (s *Subscriber) Subscribe(topic string, handler MessageHandler) error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return errors.New("not connected to broker, cannot subscribe")
	}
	conn := s.conn
	s.mu.Unlock()

	if err := writeFrame(conn, NewMessage(TopicSubscribe, []byte(topic))); err != nil {
		return err
	}

	s.mu.Lock()
	s.handlers[topic] = handler
	s.mu.Unlock()

	if s.events.OnSubscribed != nil {
		s.events.OnSubscribed(topic)
	}
	return nil
}

// Unsubscribe withdraws interest in topic. Unsubscribing from a topic not
// currently subscribed is a local no-op success, matching the SDK's
// original reconnect-safe semantics.
func (s *Subscriber) Unsubscribe(topic string) error {
	s.mu.Lock()
	if _, ok := s.handlers[topic]; !ok {
		s.mu.Unlock()
		return nil
	}
	if s.conn == nil {
		s.mu.Unlock()
		return errors.New("not connected to broker, cannot unsubscribe")
	}
	conn := s.conn
	s.mu.Unlock()

	if err := writeFrame(conn, NewMessage(TopicUnsubscribe, []byte(topic))); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.handlers, topic)
	s.mu.Unlock()

	if s.events.OnUnsubscribed != nil {
		s.events.OnUnsubscribed(topic)
	}
	return nil
}

// resubscribe re-issues $SYS/SUBSCRIBE for exactly the given topics, which
// must predate the current Connect — topics subscribed during OnConnected
// already sent their own $SYS/SUBSCRIBE via Subscribe.
func (s *Subscriber) resubscribe(topics []string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for _, topic := range topics {
		if conn == nil {
			return
		}
		if err := writeFrame(conn, NewMessage(TopicSubscribe, []byte(topic))); err != nil {
			s.raiseError(err)
			return
		}
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.dispatch(buf[:n])
		}
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}
	}
}

func (s *Subscriber) dispatch(data []byte) {
	s.mu.Lock()
	reassemble := s.reassemble
	s.mu.Unlock()
	if reassemble == nil {
		return
	}

	messages, err := reassemble.Feed(data)
	for _, msg := range messages {
		// The broker never forwards $SYS/* topics, but filter defensively
		// so no control traffic ever reaches a user handler.
		if IsControlTopic(msg.Topic()) {
			continue
		}
		s.mu.Lock()
		handler := s.handlers[msg.Topic()]
		s.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
	if err != nil {
		s.raiseError(err)
	}
}

func (s *Subscriber) handleDisconnect(conn net.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.registered = false
	s.mu.Unlock()
	_ = conn.Close()

	if !errors.Is(err, io.EOF) {
		s.raiseError(err)
	}
	if s.events.OnDisconnected != nil {
		s.events.OnDisconnected()
	}
	s.maybeScheduleReconnect()
}

// Disconnect closes the transport and stops any pending reconnect attempts.
func (s *Subscriber) Disconnect() {
	s.mu.Lock()
	s.stopped = true
	if s.reconnectT != nil {
		s.reconnectT.Stop()
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Subscriber) maybeScheduleReconnect() {
	if !s.autoReconnect {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.reconnectT != nil {
		return
	}
	s.reconnectT = time.AfterFunc(s.reconnectInterval, s.tryReconnect)
}

func (s *Subscriber) tryReconnect() {
	s.mu.Lock()
	s.reconnectT = nil
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	if err := s.Connect(); err != nil {
		s.maybeScheduleReconnect()
	}
}

func (s *Subscriber) raiseError(err error) {
	if s.events.OnError != nil {
		s.events.OnError(err)
	}
}
