package broker

import api "github.com/cat777temp/SimpleMQ/pkg"

// EventHandlers are the broker-side notifications: the Qt signals of the
// original mapped to plain callback fields. Any field left nil is simply
// not called. All callbacks run synchronously on the connection handler
// goroutine that triggered them; a client evicted by the sweeper gets its
// OnClientDisconnected from its own connection handler once its closed
// connection ends the read loop — callbacks that need to do real work
// should hand off to their own goroutine.
type EventHandlers struct {
	OnClientConnected    func(clientID string)
	OnClientDisconnected func(clientID string)
	OnMessageReceived    func(msg *api.Message)
	OnMessagePublished   func(msg *api.Message)
	OnSubscribed         func(clientID, topic string)
	OnUnsubscribed       func(clientID, topic string)
}

func (e *EventHandlers) clientConnected(id string) {
	if e != nil && e.OnClientConnected != nil {
		e.OnClientConnected(id)
	}
}

func (e *EventHandlers) clientDisconnected(id string) {
	if e != nil && e.OnClientDisconnected != nil {
		e.OnClientDisconnected(id)
	}
}

func (e *EventHandlers) messageReceived(msg *api.Message) {
	if e != nil && e.OnMessageReceived != nil {
		e.OnMessageReceived(msg)
	}
}

func (e *EventHandlers) messagePublished(msg *api.Message) {
	if e != nil && e.OnMessagePublished != nil {
		e.OnMessagePublished(msg)
	}
}

func (e *EventHandlers) clientSubscribed(id, topic string) {
	if e != nil && e.OnSubscribed != nil {
		e.OnSubscribed(id, topic)
	}
}

func (e *EventHandlers) clientUnsubscribed(id, topic string) {
	if e != nil && e.OnUnsubscribed != nil {
		e.OnUnsubscribed(id, topic)
	}
}
