package websocket

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/c360/simucore/errors"
)

// Opcode identifies the frame type
type Opcode byte

// Opcodes of the base framing protocol
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%x)", byte(o))
	}
}

const (
	finBit  = 0x80
	maskBit = 0x80

	maxShortPayload = 125
	len16Marker     = 126
	len64Marker     = 127

	// MaxPayload is the largest payload a single outbound frame can carry.
	// Inbound frames may use the full 16-bit length.
	MaxPayload = 65515
)

// Frame is one decoded frame with its payload already unmasked
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

// ReadFrame decodes the next frame from r. A 64-bit extended length yields
// ErrUnsupportedLength; any short read surfaces the io error.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	f := Frame{
		Fin:    hdr[0]&finBit != 0,
		Opcode: Opcode(hdr[0] & 0x0F),
		Masked: hdr[1]&maskBit != 0,
	}

	length := uint64(hdr[1] & 0x7F)
	switch length {
	case len16Marker:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case len64Marker:
		return Frame{}, errors.WrapInvalid(errors.ErrUnsupportedLength, "websocket", "ReadFrame", "length decode")
	}

	var key [4]byte
	if f.Masked {
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return Frame{}, err
		}
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, err
	}
	if f.Masked {
		for i := range f.Payload {
			f.Payload[i] ^= key[i%4]
		}
	}
	return f, nil
}

// EncodeFrame builds a final, unmasked frame
func EncodeFrame(op Opcode, payload []byte) ([]byte, error) {
	n := len(payload)
	if n > MaxPayload {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes", errors.ErrFrameTooLarge, n),
			"websocket", "EncodeFrame", "length check")
	}

	var out []byte
	if n <= maxShortPayload {
		out = make([]byte, 2, 2+n)
		out[1] = byte(n)
	} else {
		out = make([]byte, 4, 4+n)
		out[1] = len16Marker
		binary.BigEndian.PutUint16(out[2:4], uint16(n))
	}
	out[0] = finBit | byte(op)
	return append(out, payload...), nil
}

// WriteFrame encodes and writes one frame
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	b, err := EncodeFrame(op, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
