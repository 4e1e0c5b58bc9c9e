package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOneRoundTrip(t *testing.T) {
	msg := NewMessage("a/b", []byte("hello"))
	frame := EncodeFrame(msg)

	decoded, consumed, err := DecodeOne(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), consumed)
	assert.Equal(t, msg.ID(), decoded.ID())
	assert.Equal(t, msg.Topic(), decoded.Topic())
}

func TestDecodeOneInsufficientDataReturnsZeroConsumed(t *testing.T) {
	frame := EncodeFrame(NewMessage("a", []byte("b")))

	for n := 0; n < len(frame); n++ {
		msg, consumed, err := DecodeOne(frame[:n])
		assert.Nil(t, msg)
		assert.Zero(t, consumed)
		assert.NoError(t, err)
	}
}

func TestDecodeOneDamagedFrameDoesNotConsume(t *testing.T) {
	frame := EncodeFrame(NewMessage("a", []byte("b")))
	// Corrupt the body's id-length field so deserialization fails while the
	// outer length prefix is still satisfied.
	damaged := append([]byte{}, frame...)
	damaged[4] = 0xFF
	damaged[5] = 0xFF

	msg, consumed, err := DecodeOne(damaged)
	assert.Nil(t, msg)
	assert.Zero(t, consumed)
	assert.Error(t, err)
}

func TestReassemblerFeedSingleChunk(t *testing.T) {
	r := NewReassembler()
	m1 := NewMessage("a", []byte("1"))
	m2 := NewMessage("b", []byte("2"))
	data := append(EncodeFrame(m1), EncodeFrame(m2)...)

	messages, err := r.Feed(data)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, m1.ID(), messages[0].ID())
	assert.Equal(t, m2.ID(), messages[1].ID())
}

func TestReassemblerFeedArbitraryChunking(t *testing.T) {
	m1 := NewMessage("topic/one", []byte("first message"))
	m2 := NewMessage("topic/two", []byte("second message, a bit longer"))
	m3 := NewMessage("topic/three", nil)
	whole := append(append(EncodeFrame(m1), EncodeFrame(m2)...), EncodeFrame(m3)...)

	for chunkSize := 1; chunkSize <= len(whole); chunkSize++ {
		r := NewReassembler()
		var got []*Message
		for offset := 0; offset < len(whole); offset += chunkSize {
			end := offset + chunkSize
			if end > len(whole) {
				end = len(whole)
			}
			messages, err := r.Feed(whole[offset:end])
			require.NoError(t, err)
			got = append(got, messages...)
		}
		require.Lenf(t, got, 3, "chunk size %d", chunkSize)
		assert.Equal(t, m1.ID(), got[0].ID())
		assert.Equal(t, m2.ID(), got[1].ID())
		assert.Equal(t, m3.ID(), got[2].ID())
	}
}

func TestReassemblerClearDropsPartialBuffer(t *testing.T) {
	r := NewReassembler()
	frame := EncodeFrame(NewMessage("a", []byte("b")))
	_, err := r.Feed(frame[:len(frame)-1])
	require.NoError(t, err)
	assert.NotEmpty(t, r.buf)

	r.Clear()
	assert.Empty(t, r.buf)
}

func TestReassemblerStopsAtDamagedFrame(t *testing.T) {
	r := NewReassembler()
	good := EncodeFrame(NewMessage("a", []byte("ok")))
	bad := EncodeFrame(NewMessage("b", []byte("bad")))
	bad[4] = 0xFF
	bad[5] = 0xFF

	messages, err := r.Feed(append(good, bad...))
	assert.Error(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].Topic())
}
