package broker

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cat777temp/SimpleMQ/internal/logging"
)

func TestSweepOnceEvictsStaleClientsOnly(t *testing.T) {
	reg := newRegistry()
	fresh, _ := testConn(t)
	stale, _ := testConn(t)
	freshID := reg.register(fresh)
	staleID := reg.register(stale)

	reg.mu.Lock()
	reg.clients[staleID].lastActivity = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	var mu sync.Mutex
	var evicted []string
	s := newSweeper(time.Hour, 60*time.Second, logging.New(&bytes.Buffer{}), func(id string) {
		mu.Lock()
		evicted = append(evicted, id)
		mu.Unlock()
	})

	s.sweepOnce(reg, time.Now())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, evicted, staleID)
	assert.NotContains(t, evicted, freshID)
}

func TestSweeperStartAndShutdown(t *testing.T) {
	reg := newRegistry()
	stale, _ := testConn(t)
	staleID := reg.register(stale)
	reg.mu.Lock()
	reg.clients[staleID].lastActivity = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	evicted := make(chan string, 1)
	s := newSweeper(10*time.Millisecond, 60*time.Second, logging.New(&bytes.Buffer{}), func(id string) {
		evicted <- id
	})

	s.start(reg)
	defer s.shutdown()

	select {
	case id := <-evicted:
		assert.Equal(t, staleID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never evicted the stale client")
	}
}

func TestSweeperShutdownStopsFurtherSweeps(t *testing.T) {
	reg := newRegistry()
	var count int
	var mu sync.Mutex
	s := newSweeper(5*time.Millisecond, time.Hour, logging.New(&bytes.Buffer{}), func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	s.start(reg)
	s.shutdown()

	mu.Lock()
	seen := count
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, count)
}
