package broker

import (
	"net"
	"sync"
)

// conn wraps a net.Conn (TCP or Unix-domain, indistinguishably) with a
// write mutex, since fan-out to a single subscriber can be driven by
// concurrently-processed publications to different topics it is subscribed
// to. It is the uniform "client connection" abstraction the transport
// acceptor hands to the router.
type conn struct {
	net.Conn
	writeMu sync.Mutex
}

func newConn(c net.Conn) *conn {
	return &conn{Conn: c}
}

// Write serializes concurrent writers so one frame is never interleaved
// with another on the wire.
func (c *conn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.Write(b)
}
