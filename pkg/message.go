package api

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timezoneUTC is the one-byte timezone tag written after the millisecond
// timestamp. Serialize always writes it, since every Message carries a UTC
// wall-clock timestamp; DeserializeMessage reads the tag byte and discards
// it, so a re-serialized message always carries this value.
const timezoneUTC byte = 1

// Message is an immutable publish/subscribe record. Once constructed it is
// never mutated; a Message reconstituted from bytes preserves the original
// id and timestamp rather than generating fresh ones.
type Message struct {
	id        string
	topic     string
	payload   []byte
	timestamp time.Time
}

// NewMessage builds a Message with a freshly generated id and the current
// UTC timestamp, at millisecond resolution.
func NewMessage(topic string, payload []byte) *Message {
	return &Message{
		id:        newMessageID(),
		topic:     topic,
		payload:   payload,
		timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newMessageID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func (m *Message) ID() string          { return m.id }
func (m *Message) Topic() string       { return m.topic }
func (m *Message) Payload() []byte     { return m.payload }
func (m *Message) Timestamp() time.Time { return m.timestamp }

// Serialize renders the message using the fixed field order id, topic,
// payload, timestamp. Strings and byte sequences are each prefixed by a
// 32-bit big-endian length; the timestamp is a 64-bit millisecond count
// since the epoch followed by a one-byte timezone tag. This encoding is an
// internal wire contract: it must be byte-identical across publisher,
// broker, and subscriber, but matches no external standard.
func (m *Message) Serialize() []byte {
	buf := &bytes.Buffer{}
	writeBytes(buf, []byte(m.id))
	writeBytes(buf, []byte(m.topic))
	writeBytes(buf, m.payload)
	_ = binary.Write(buf, binary.BigEndian, m.timestamp.UnixMilli())
	buf.WriteByte(timezoneUTC)
	return buf.Bytes()
}

// DeserializeMessage parses a body produced by Serialize. It is the
// inverse of Serialize: deserialize(serialize(m)) == m field-by-field.
func DeserializeMessage(body []byte) (*Message, error) {
	r := bytes.NewReader(body)

	id, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read id: %w", err)
	}
	topic, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read topic: %w", err)
	}
	payload, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var millis int64
	if err := binary.Read(r, binary.BigEndian, &millis); err != nil {
		return nil, fmt.Errorf("read timestamp: %w", err)
	}
	if _, err := r.ReadByte(); err != nil {
		return nil, fmt.Errorf("read timezone tag: %w", err)
	}

	return &Message{
		id:        string(id),
		topic:     string(topic),
		payload:   payload,
		timestamp: time.UnixMilli(millis).UTC(),
	}, nil
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len())
	}
	data := make([]byte, n)
	if _, err := r.Read(data); err != nil {
		return nil, err
	}
	return data, nil
}
