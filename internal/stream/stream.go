// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package stream reads and writes snapshot data: big-endian scalars and
// snappy-compressed blobs. Both sides keep the first error and turn every
// later call into a no-op, so callers check Err once at the end.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"
)

// MaxBlob bounds the decoded size of a single blob.
const MaxBlob = 256 << 20

// ErrBlobTooLarge is returned when a blob exceeds MaxBlob.
var ErrBlobTooLarge = errors.New("stream: blob too large")

// Writer writes snapshot data.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Byte writes one byte.
func (w *Writer) Byte(v byte) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

// Bool writes v as one byte.
func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// Be32 writes v big-endian.
func (w *Writer) Be32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

// Be64 writes v big-endian.
func (w *Writer) Be64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

// Float writes the IEEE 754 bits of v big-endian.
func (w *Writer) Float(v float32) {
	w.Be32(math.Float32bits(v))
}

// Blob writes p snappy-compressed, prefixed with its encoded length.
func (w *Writer) Blob(p []byte) {
	enc := snappy.Encode(nil, p)
	w.Be32(uint32(len(enc)))
	w.write(enc)
}

// Handles writes a count followed by each value.
func (w *Writer) Handles(hs []uint32) {
	w.Be32(uint32(len(hs)))
	for _, h := range hs {
		w.Be32(h)
	}
}

// Reader reads snapshot data written by Writer.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error. A short stream reports
// io.ErrUnexpectedEOF.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return false
	}
	return true
}

// Byte reads one byte.
func (r *Reader) Byte() byte {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

// Bool reads one byte as a bool.
func (r *Reader) Bool() bool { return r.Byte() != 0 }

// Be32 reads a big-endian uint32.
func (r *Reader) Be32() uint32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return binary.BigEndian.Uint32(r.buf[:4])
}

// Be64 reads a big-endian uint64.
func (r *Reader) Be64() uint64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return binary.BigEndian.Uint64(r.buf[:8])
}

// Float reads a float32.
func (r *Reader) Float() float32 {
	return math.Float32frombits(r.Be32())
}

// Blob reads a blob written by Writer.Blob.
func (r *Reader) Blob() []byte {
	n := r.Be32()
	if r.err != nil {
		return nil
	}
	if n > MaxBlob {
		r.err = ErrBlobTooLarge
		return nil
	}
	enc := make([]byte, n)
	if !r.read(enc) {
		return nil
	}
	size, err := snappy.DecodedLen(enc)
	if err == nil && size > MaxBlob {
		err = ErrBlobTooLarge
	}
	if err != nil {
		r.err = fmt.Errorf("stream: blob: %w", err)
		return nil
	}
	out, err := snappy.Decode(nil, enc)
	if err != nil {
		r.err = fmt.Errorf("stream: blob: %w", err)
		return nil
	}
	return out
}

// Handles reads a list written by Writer.Handles.
func (r *Reader) Handles() []uint32 {
	n := r.Be32()
	if r.err != nil {
		return nil
	}
	if n > MaxBlob/4 {
		r.err = ErrBlobTooLarge
		return nil
	}
	hs := make([]uint32, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		hs = append(hs, r.Be32())
	}
	if r.err != nil {
		return nil
	}
	return hs
}
