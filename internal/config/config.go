// Package config holds the default values and flag-populated settings for
// the broker, publisher, and subscriber CLIs. Commands are the only
// configuration surface — there is no config file.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults mirror the CLI surface in SPEC_FULL.md §6.
const (
	DefaultPort              = 5555
	DefaultServerName        = "MyMQLocalServer"
	DefaultBrokerLogPath     = "broker.log"
	DefaultCacheSize         = 100
	DefaultSweepInterval     = 30 * time.Second
	DefaultInactivityTimeout = 60 * time.Second
	DefaultReconnectInterval = 5 * time.Second
)

// Broker holds the broker's runtime configuration.
type Broker struct {
	Port       int
	ServerName string
	LogPath    string
	CacheSize  int
}

// NewBroker returns a Broker config populated with defaults.
func NewBroker() *Broker {
	return &Broker{
		Port:       DefaultPort,
		ServerName: DefaultServerName,
		LogPath:    DefaultBrokerLogPath,
		CacheSize:  DefaultCacheSize,
	}
}

// Client holds the configuration shared by the publisher and subscriber
// CLIs.
type Client struct {
	Host       string
	Port       int
	ServerName string
	Topic      string
	LogPath    string
}

// NewClient returns a Client config populated with defaults.
func NewClient() *Client {
	return &Client{
		Host: "localhost",
		Port: DefaultPort,
	}
}

// UseLocal reports whether ServerName selects the local-IPC transport in
// preference to TCP.
func (c *Client) UseLocal() bool {
	return c.ServerName != ""
}

// SocketPath maps a server name onto a filesystem path for the local-IPC
// endpoint, mirroring QLocalServer's own convention of a named endpoint
// under the system temp directory.
func SocketPath(serverName string) string {
	return filepath.Join(os.TempDir(), serverName+".sock")
}
