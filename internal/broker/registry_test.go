package broker

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn(t *testing.T) (*conn, func()) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return newConn(server), func() {}
}

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	reg := newRegistry()
	c1, _ := testConn(t)
	c2, _ := testConn(t)

	id1 := reg.register(c1)
	id2 := reg.register(c2)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, reg.clientCount())
}

func TestSetRoleIsMonotonic(t *testing.T) {
	reg := newRegistry()
	c, _ := testConn(t)
	id := reg.register(c)

	assert.False(t, reg.isPublisher(id))
	reg.setRole(id, "SUBSCRIBER")
	assert.False(t, reg.isPublisher(id))
	reg.setRole(id, "PUBLISHER")
	assert.True(t, reg.isPublisher(id))

	// unknown role strings do nothing.
	reg.setRole(id, "BOGUS")
	assert.True(t, reg.isPublisher(id))
}

func TestSubscribeAddsToTopicIndex(t *testing.T) {
	reg := newRegistry()
	c, _ := testConn(t)
	id := reg.register(c)

	require.True(t, reg.subscribe(id, "a/b"))
	assert.True(t, reg.hasSubscriber("a/b", id))
	assert.Equal(t, 1, reg.topicCount())

	links := reg.subscribersOf("a/b")
	require.Len(t, links, 1)
	assert.Equal(t, id, links[0].id)
}

func TestSubscribeUnknownClientFails(t *testing.T) {
	reg := newRegistry()
	assert.False(t, reg.subscribe("nonexistent", "a/b"))
}

func TestUnsubscribeDropsEmptyTopicEntry(t *testing.T) {
	reg := newRegistry()
	c, _ := testConn(t)
	id := reg.register(c)
	reg.subscribe(id, "a/b")

	reg.unsubscribe(id, "a/b")
	assert.False(t, reg.hasSubscriber("a/b", id))
	assert.Equal(t, 0, reg.topicCount())
}

func TestUnregisterRemovesClientAndTopicMemberships(t *testing.T) {
	reg := newRegistry()
	c, _ := testConn(t)
	id := reg.register(c)
	reg.subscribe(id, "a/b")

	removed := reg.unregister(id)
	require.NotNil(t, removed)
	assert.Equal(t, id, removed.id)
	assert.Equal(t, 0, reg.clientCount())
	assert.Equal(t, 0, reg.topicCount())
}

func TestUnregisterUnknownClientReturnsNil(t *testing.T) {
	reg := newRegistry()
	assert.Nil(t, reg.unregister("nonexistent"))
}

func TestSweepInactiveFindsStaleClientsOnly(t *testing.T) {
	reg := newRegistry()
	fresh, _ := testConn(t)
	stale, _ := testConn(t)

	freshID := reg.register(fresh)
	staleID := reg.register(stale)

	reg.mu.Lock()
	reg.clients[staleID].lastActivity = time.Now().Add(-2 * time.Minute)
	reg.mu.Unlock()

	ids := reg.sweepInactive(time.Now(), 60*time.Second)
	assert.Contains(t, ids, staleID)
	assert.NotContains(t, ids, freshID)
}

func TestSubscribersOfExcludesNonSubscriberFlagged(t *testing.T) {
	reg := newRegistry()
	c, _ := testConn(t)
	id := reg.register(c)
	reg.subscribe(id, "a/b")

	reg.mu.Lock()
	reg.clients[id].isSubscriber = false
	reg.mu.Unlock()

	assert.Empty(t, reg.subscribersOf("a/b"))
}
