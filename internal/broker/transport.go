package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/cat777temp/SimpleMQ/internal/logging"
)

// transport is the connection-multiplexing acceptor: it runs a TCP
// listener and a local Unix-domain listener concurrently, producing a
// uniform client connection for either family. Both listeners accept
// connections concurrently and are indistinguishable to the router once a
// client record exists.
type transport struct {
	port       int
	socketPath string
	log        *logging.Logger

	registry *registry
	router   *router
	events   *EventHandlers
	unregFn  func(clientID string)

	tcpListener  net.Listener
	unixListener net.Listener

	group  *errgroup.Group
	cancel context.CancelFunc
}

func newTransport(port int, socketPath string, log *logging.Logger, reg *registry, rt *router, events *EventHandlers, unregFn func(string)) *transport {
	return &transport{
		port:       port,
		socketPath: socketPath,
		log:        log,
		registry:   reg,
		router:     rt,
		events:     events,
		unregFn:    unregFn,
	}
}

// start binds both listeners and begins accepting. A bind failure on
// either listener is fatal to Start, matching §7: "Bind failure
// (port/endpoint): startup: fatal, report, exit non-zero".
func (t *transport) start() error {
	var err error
	t.tcpListener, err = net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("listen tcp :%d: %w", t.port, err)
	}
	t.log.Infof("transport listening on tcp %s", t.tcpListener.Addr())

	os.Remove(t.socketPath)
	t.unixListener, err = net.Listen("unix", t.socketPath)
	if err != nil {
		t.tcpListener.Close()
		return fmt.Errorf("listen unix %s: %w", t.socketPath, err)
	}
	t.log.Infof("transport listening on local endpoint %s", t.socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	group, _ := errgroup.WithContext(ctx)
	t.group = group

	group.Go(func() error { return t.acceptLoop(ctx, t.tcpListener) })
	group.Go(func() error { return t.acceptLoop(ctx, t.unixListener) })

	return nil
}

func (t *transport) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			t.log.Warnf("accept error: %v", err)
			continue
		}
		go t.handleConn(newConn(c))
	}
}

func (t *transport) handleConn(c *conn) {
	clientID := t.registry.register(c)
	t.log.Infof("client %s connected from %s", clientID, c.RemoteAddr())
	t.events.clientConnected(clientID)

	buf := make([]byte, 64*1024)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			t.registry.touch(clientID)
			if !t.feedAndDispatch(clientID, buf[:n]) {
				break
			}
		}
		if err != nil {
			break
		}
	}

	t.disconnectClient(clientID)
}

// feedAndDispatch reassembles frames from data and dispatches each one.
// It returns false if the connection should be closed (a damaged frame),
// per §4.2's policy.
func (t *transport) feedAndDispatch(clientID string, data []byte) bool {
	reassemble := t.registry.reassemblerFor(clientID)
	if reassemble == nil {
		return false
	}
	messages, err := reassemble.Feed(data)
	for _, msg := range messages {
		t.router.Dispatch(clientID, msg)
	}
	if err != nil {
		t.log.Warnf("client %s: %v", clientID, err)
		return false
	}
	return true
}

func (t *transport) disconnectClient(clientID string) {
	t.unregFn(clientID)
	t.log.Infof("client %s disconnected", clientID)
	t.events.clientDisconnected(clientID)
}

// closeClientConn performs the connection-teardown half of §4.7: close the
// transport handle and release its reassembler buffer. Called by Broker's
// unregister path after the registry mutation.
func closeClientConn(c *client) {
	if c == nil {
		return
	}
	_ = c.conn.Close()
	c.reassemble.Clear()
}

// shutdown halts the acceptor: closes both listeners, cancels the accept
// loops, and waits for them to unwind.
func (t *transport) shutdown() {
	if t.tcpListener != nil {
		t.tcpListener.Close()
	}
	if t.unixListener != nil {
		t.unixListener.Close()
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.group != nil {
		_ = t.group.Wait()
	}
	if t.socketPath != "" {
		os.Remove(t.socketPath)
	}
}
