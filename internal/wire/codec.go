package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
)

// Terminator ends every frame.
const Terminator byte = 0x00

// DefaultMaxFrameSize bounds a single buffered frame (16 MiB).
const DefaultMaxFrameSize = 16 << 20

// readChunk is the size of a single read from the underlying stream.
const readChunk = 32 * 1024

// Encode returns the framed wire form of m.
func Encode(m *Message) ([]byte, error) {
	out := *m
	out.Content = normalize(m.Content)
	out.Reply = normalize(m.Reply)
	out.Auth = normalize(m.Auth)

	body, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return append(body, Terminator), nil
}

// Decode parses one frame body (without its terminator). Bodies that are
// not a JSON object are rejected with domain.ErrMalformedFrame.
func Decode(body []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.ErrMalformedFrame
	}

	var m Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, domain.ErrMalformedFrame.Wrap(err)
	}

	m.Content = revive(m.Content)
	m.Reply = revive(m.Reply)
	m.Auth = revive(m.Auth)
	return &m, nil
}

// Decoder reassembles frames from arbitrarily split input. It is not safe
// for concurrent use; each connection owns one.
type Decoder struct {
	buf     []byte
	maxSize int

	// scanned is the prefix of buf known to hold no terminator.
	scanned int
}

// NewDecoder returns a Decoder. maxFrameSize <= 0 disables the size guard.
func NewDecoder(maxFrameSize int) *Decoder {
	return &Decoder{maxSize: maxFrameSize}
}

// Feed appends p to the buffer. It returns domain.ErrFrameTooLarge, and
// discards the buffer, when the unterminated tail grows past the limit.
func (d *Decoder) Feed(p []byte) error {
	d.buf = append(d.buf, p...)

	if d.maxSize > 0 && !d.HasMessage() && len(d.buf) > d.maxSize {
		size := len(d.buf)
		d.Reset()
		return domain.ErrFrameTooLarge.Detailf(
			"%d bytes buffered without terminator, limit %d", size, d.maxSize)
	}
	return nil
}

// HasMessage reports whether a complete frame is buffered.
func (d *Decoder) HasMessage() bool {
	return d.index() >= 0
}

func (d *Decoder) index() int {
	i := bytes.IndexByte(d.buf[d.scanned:], Terminator)
	if i < 0 {
		d.scanned = len(d.buf)
		return -1
	}
	return d.scanned + i
}

// NextFrame removes and returns the next frame body.
func (d *Decoder) NextFrame() ([]byte, bool) {
	i := d.index()
	if i < 0 {
		return nil, false
	}

	body := make([]byte, i)
	copy(body, d.buf[:i])

	rest := len(d.buf) - i - 1
	copy(d.buf, d.buf[i+1:])
	d.buf = d.buf[:rest]
	d.scanned = 0
	return body, true
}

// Next removes the next frame and decodes it. A malformed frame is still
// consumed, so the caller may keep reading after domain.ErrMalformedFrame.
// It returns io.ErrNoProgress when no complete frame is buffered.
func (d *Decoder) Next() (*Message, error) {
	body, ok := d.NextFrame()
	if !ok {
		return nil, io.ErrNoProgress
	}
	return Decode(body)
}

// Buffered returns the number of buffered bytes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards buffered data.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.scanned = 0
}

// Reader reads messages from a byte stream.
type Reader struct {
	r     io.Reader
	dec   *Decoder
	chunk []byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	return &Reader{
		r:     r,
		dec:   NewDecoder(maxFrameSize),
		chunk: make([]byte, readChunk),
	}
}

// ReadMessage blocks until a complete frame is available and returns it.
// Protocol errors (domain.ErrMalformedFrame, domain.ErrFrameTooLarge) leave
// the Reader usable; stream errors are returned unchanged.
func (r *Reader) ReadMessage() (*Message, error) {
	for !r.dec.HasMessage() {
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			if ferr := r.dec.Feed(r.chunk[:n]); ferr != nil {
				return nil, ferr
			}
		}
		if err != nil {
			if r.dec.HasMessage() {
				break
			}
			return nil, err
		}
	}
	return r.dec.Next()
}

// Writer writes framed messages. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage encodes and writes m as one frame.
func (w *Writer) WriteMessage(m *Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	return w.WriteFrame(frame)
}

// WriteFrame writes an already encoded frame.
func (w *Writer) WriteFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.w.Write(frame)
	return err
}
