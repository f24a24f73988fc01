package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameReader reads length-prefixed frame bodies from an io.Reader: a
// u32 little-endian length, then that many bytes. A frame whose
// declared length exceeds maxSize is rejected before the payload
// buffer is allocated, so a malicious length prefix can't be used to
// force a large allocation.
type FrameReader struct {
	r       io.Reader
	maxSize uint32
	lenBuf  [4]byte
}

// NewFrameReader creates a FrameReader enforcing DefaultMaxFrameSize.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderSize(r, DefaultMaxFrameSize)
}

// NewFrameReaderSize creates a FrameReader enforcing a caller-supplied
// maximum frame size.
func NewFrameReaderSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{r: r, maxSize: maxSize}
}

// Read reads the next frame body.
func (fr *FrameReader) Read() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(fr.lenBuf[:])
	if length > fr.maxSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds max %d", ErrFrameTooLarge, length, fr.maxSize)
	}

	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// ReadClientFrame reads and decodes the next Client→Relay frame.
func (fr *FrameReader) ReadClientFrame() (ClientFrame, error) {
	body, err := fr.Read()
	if err != nil {
		return nil, err
	}
	return DecodeClientFrame(body)
}

// ReadRelayFrame reads and decodes the next Relay→Client frame.
func (fr *FrameReader) ReadRelayFrame() (RelayFrame, error) {
	body, err := fr.Read()
	if err != nil {
		return nil, err
	}
	return DecodeRelayFrame(body)
}

// FrameWriter writes length-prefixed frame bodies to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a new FrameWriter.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Write writes a frame body with its u32 length prefix in a single
// underlying Write call, so concurrent writers on a shared connection
// can't interleave a partial frame.
func (fw *FrameWriter) Write(body []byte) error {
	buf := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	_, err := fw.w.Write(buf)
	return err
}

// WriteClientFrame encodes and writes a Client→Relay frame.
func (fw *FrameWriter) WriteClientFrame(f ClientFrame) error {
	return fw.Write(EncodeClientFrame(f))
}

// WriteRelayFrame encodes and writes a Relay→Client frame.
func (fw *FrameWriter) WriteRelayFrame(f RelayFrame) error {
	return fw.Write(EncodeRelayFrame(f))
}
