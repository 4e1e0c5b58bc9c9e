package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/cat777temp/SimpleMQ/pkg"
)

func TestCacheAppendAndSnapshotPreservesOrder(t *testing.T) {
	c := newCache(10)
	m1 := api.NewMessage("a/b", []byte("1"))
	m2 := api.NewMessage("a/b", []byte("2"))
	c.append("a/b", m1)
	c.append("a/b", m2)

	got := c.snapshot("a/b")
	require.Len(t, got, 2)
	assert.Equal(t, m1.ID(), got[0].ID())
	assert.Equal(t, m2.ID(), got[1].ID())
}

func TestCacheBoundEvictsOldest(t *testing.T) {
	c := newCache(2)
	m1 := api.NewMessage("a", []byte("1"))
	m2 := api.NewMessage("a", []byte("2"))
	m3 := api.NewMessage("a", []byte("3"))
	c.append("a", m1)
	c.append("a", m2)
	c.append("a", m3)

	got := c.snapshot("a")
	require.Len(t, got, 2)
	assert.Equal(t, m2.ID(), got[0].ID())
	assert.Equal(t, m3.ID(), got[1].ID())
}

func TestCacheSizeZeroDisablesCaching(t *testing.T) {
	c := newCache(0)
	c.append("a", api.NewMessage("a", []byte("1")))
	assert.Empty(t, c.snapshot("a"))
}

func TestCacheSnapshotOfUnknownTopicIsEmpty(t *testing.T) {
	c := newCache(10)
	assert.Empty(t, c.snapshot("never/published"))
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	c := newCache(10)
	c.append("a", api.NewMessage("a", []byte("1")))

	got := c.snapshot("a")
	got[0] = api.NewMessage("a", []byte("tampered"))

	untampered := c.snapshot("a")
	assert.Equal(t, []byte("1"), untampered[0].Payload())
}

func TestCacheSetSizeTrimsExistingQueues(t *testing.T) {
	c := newCache(10)
	for i := 0; i < 5; i++ {
		c.append("a", api.NewMessage("a", []byte{byte(i)}))
	}
	require.Len(t, c.snapshot("a"), 5)

	c.setSize(2)
	got := c.snapshot("a")
	require.Len(t, got, 2)
	assert.Equal(t, []byte{3}, got[0].Payload())
	assert.Equal(t, []byte{4}, got[1].Payload())
}

func TestCacheClearDropsEverything(t *testing.T) {
	c := newCache(10)
	c.append("a", api.NewMessage("a", []byte("1")))
	c.clear()
	assert.Empty(t, c.snapshot("a"))
}
