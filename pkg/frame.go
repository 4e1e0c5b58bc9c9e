package api

import (
	"encoding/binary"
	"fmt"
)

// lengthPrefixSize is the width of the frame's length prefix in bytes.
const lengthPrefixSize = 4

// EncodeFrame wraps a message's serialized body with its 32-bit big-endian
// length prefix: [len][body]. This is the only emission shape on the wire,
// in either direction, on either transport.
func EncodeFrame(m *Message) []byte {
	body := m.Serialize()
	frame := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[lengthPrefixSize:], body)
	return frame
}

// DecodeOne attempts to pull one whole frame off the front of buf. It
// returns the decoded message and the number of bytes consumed on success,
// or consumed == 0 if buf does not yet hold a complete frame. A length
// prefix that is satisfied but whose body fails to deserialize is a
// protocol error and is returned as such; the caller must not advance past
// the damaged frame.
func DecodeOne(buf []byte) (msg *Message, consumed int, err error) {
	if len(buf) < lengthPrefixSize {
		return nil, 0, nil
	}
	bodyLen := binary.BigEndian.Uint32(buf)
	total := lengthPrefixSize + int(bodyLen)
	if len(buf) < total {
		return nil, 0, nil
	}
	msg, err = DeserializeMessage(buf[lengthPrefixSize:total])
	if err != nil {
		return nil, 0, fmt.Errorf("decode frame body: %w", err)
	}
	return msg, total, nil
}

// Reassembler accumulates bytes from an arbitrary stream and emits whole
// Messages as they become available. It is per-connection state: one
// reassembler per client, fed only by that client's inbound byte stream, so
// its emission order equals that stream's arrival order.
type Reassembler struct {
	buf []byte
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends newly received bytes and decodes every whole frame that is
// now available, in arrival order. It stops at the first incomplete frame,
// leaving any partial bytes buffered for the next call. A damaged frame
// (length prefix satisfied, body fails to deserialize) is returned as an
// error and the reassembler's buffer is left positioned exactly at that
// frame, so the caller can decide policy (this module's policy: close the
// connection, per §7 of the error handling design).
func (r *Reassembler) Feed(data []byte) ([]*Message, error) {
	r.buf = append(r.buf, data...)

	var messages []*Message
	for {
		msg, consumed, err := DecodeOne(r.buf)
		if err != nil {
			return messages, err
		}
		if consumed == 0 {
			break
		}
		messages = append(messages, msg)
		r.buf = r.buf[consumed:]
	}
	return messages, nil
}

// Clear discards any partial, unconsumed bytes. Used on reconnect so a
// half-received frame from a previous connection never corrupts the next
// one.
func (r *Reassembler) Clear() {
	r.buf = nil
}
