package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageAssignsIDAndTimestamp(t *testing.T) {
	m := NewMessage("sensors/temp", []byte("21.5"))
	assert.NotEmpty(t, m.ID())
	assert.Equal(t, "sensors/temp", m.Topic())
	assert.Equal(t, []byte("21.5"), m.Payload())
	assert.WithinDuration(t, time.Now(), m.Timestamp(), time.Second)
	assert.Equal(t, "UTC", m.Timestamp().Location().String())
}

func TestDistinctMessagesGetDistinctIDs(t *testing.T) {
	a := NewMessage("t", []byte("x"))
	b := NewMessage("t", []byte("x"))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	original := NewMessage("sensors/temp", []byte("payload bytes"))

	body := original.Serialize()
	restored, err := DeserializeMessage(body)
	require.NoError(t, err)

	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Topic(), restored.Topic())
	assert.Equal(t, original.Payload(), restored.Payload())
	assert.Equal(t, original.Timestamp().UnixMilli(), restored.Timestamp().UnixMilli())
}

func TestDeserializeEmptyPayload(t *testing.T) {
	original := NewMessage("topic", nil)
	restored, err := DeserializeMessage(original.Serialize())
	require.NoError(t, err)
	assert.Empty(t, restored.Payload())
}

func TestDeserializeTruncatedBodyFails(t *testing.T) {
	body := NewMessage("t", []byte("x")).Serialize()
	_, err := DeserializeMessage(body[:len(body)-2])
	assert.Error(t, err)
}

func TestDeserializeLengthPrefixExceedingRemainingFails(t *testing.T) {
	_, err := DeserializeMessage([]byte{0x00, 0x00, 0x00, 0x10})
	assert.Error(t, err)
}
