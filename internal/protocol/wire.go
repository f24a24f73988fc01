package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire-format errors. Frame decoding never panics: every malformed input
// path returns one of these, wrapped with the field that failed.
var (
	ErrMalformedFrame   = errors.New("protocol: malformed frame")
	ErrFrameTooLarge    = errors.New("protocol: frame exceeds maximum size")
	ErrUnknownVariant   = errors.New("protocol: unknown frame variant")
	ErrTruncatedFrame   = errors.New("protocol: truncated frame")
)

// putString writes a u64 length-prefixed utf8 string and returns the
// number of bytes written.
func putString(buf []byte, s string) int {
	return putBytes(buf, []byte(s))
}

// putBytes writes a u64 length-prefixed byte slice and returns the
// number of bytes written.
func putBytes(buf []byte, b []byte) int {
	binary.LittleEndian.PutUint64(buf, uint64(len(b)))
	copy(buf[8:], b)
	return 8 + len(b)
}

// putU32 writes a little-endian u32 and returns the number of bytes
// written.
func putU32(buf []byte, v uint32) int {
	binary.LittleEndian.PutUint32(buf, v)
	return 4
}

// putU64 writes a little-endian u64 and returns the number of bytes
// written.
func putU64(buf []byte, v uint64) int {
	binary.LittleEndian.PutUint64(buf, v)
	return 8
}

// putOptionU64 writes an Option<u64>: a u8 tag (0 = None, 1 = Some)
// followed, when present, by the u64 value.
func putOptionU64(buf []byte, v *uint64) int {
	if v == nil {
		buf[0] = 0
		return 1
	}
	buf[0] = 1
	binary.LittleEndian.PutUint64(buf[1:], *v)
	return 9
}

// optionU64Size returns the encoded size of an Option<u64>.
func optionU64Size(v *uint64) int {
	if v == nil {
		return 1
	}
	return 9
}

// cursor is a forward-only reader over a decode buffer. It never slices
// past the end of buf and reports every short read as ErrTruncatedFrame,
// mirroring the bounds-checked decode idiom the relay/client engines
// depend on to never panic on attacker-controlled input.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) exhausted() bool {
	return c.pos == len(c.buf)
}

func (c *cursor) need(n int) error {
	if len(c.buf)-c.pos < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedFrame, n, len(c.buf)-c.pos)
	}
	return nil
}

func (c *cursor) readU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) readU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *cursor) readI64() (int64, error) {
	v, err := c.readU64()
	return int64(v), err
}

// readBytes reads a u64 length-prefixed byte slice. The returned slice
// aliases c.buf; callers that retain it past the lifetime of buf must
// copy it.
func (c *cursor) readBytes() ([]byte, error) {
	n, err := c.readU64()
	if err != nil {
		return nil, err
	}
	// Guard against a length prefix larger than any real payload could
	// be before it even reaches need(), so a malicious huge length
	// doesn't get reported as a generic truncation with a huge number.
	if n > uint64(len(c.buf)) {
		return nil, fmt.Errorf("%w: length prefix %d exceeds remaining frame", ErrMalformedFrame, n)
	}
	if err := c.need(int(n)); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return b, nil
}

func (c *cursor) readString() (string, error) {
	b, err := c.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readOptionU64 reads an Option<u64>.
func (c *cursor) readOptionU64() (*uint64, error) {
	if err := c.need(1); err != nil {
		return nil, err
	}
	tag := c.buf[c.pos]
	c.pos++
	switch tag {
	case 0:
		return nil, nil
	case 1:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: invalid Option tag %d", ErrMalformedFrame, tag)
	}
}
