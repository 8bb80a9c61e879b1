// Copyright (c) 2015 Uber Technologies, Inc.

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package typed provides a typed, error-latching writer used to build
// big-endian wire encodings.
package typed

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

type intBuffer [8]byte

var intBufferPool = sync.Pool{New: func() interface{} {
	return new(intBuffer)
}}

// Writer writes typed big-endian values to an io.Writer. The first write
// error is latched; subsequent writes are no-ops.
type Writer struct {
	writer io.Writer
	err    error
}

// NewWriter creates a Writer that writes typed values to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: w,
	}
}

// WriteBytes writes a slice of bytes.
func (w *Writer) WriteBytes(b []byte) {
	if w.err != nil {
		return
	}

	if _, err := w.writer.Write(b); err != nil {
		w.err = err
	}
}

// WriteSingleByte writes one byte.
func (w *Writer) WriteSingleByte(b byte) {
	if w.err != nil {
		return
	}

	buf := intBufferPool.Get().(*intBuffer)
	defer intBufferPool.Put(buf)

	buf[0] = b
	if _, err := w.writer.Write(buf[:1]); err != nil {
		w.err = err
	}
}

// WriteUint16 writes a big-endian uint16.
func (w *Writer) WriteUint16(n uint16) {
	if w.err != nil {
		return
	}

	buf := intBufferPool.Get().(*intBuffer)
	defer intBufferPool.Put(buf)

	binary.BigEndian.PutUint16(buf[:2], n)
	if _, err := w.writer.Write(buf[:2]); err != nil {
		w.err = err
	}
}

// WriteUint32 writes a big-endian uint32.
func (w *Writer) WriteUint32(n uint32) {
	if w.err != nil {
		return
	}

	buf := intBufferPool.Get().(*intBuffer)
	defer intBufferPool.Put(buf)

	binary.BigEndian.PutUint32(buf[:4], n)
	if _, err := w.writer.Write(buf[:4]); err != nil {
		w.err = err
	}
}

// WriteUint64 writes a big-endian uint64.
func (w *Writer) WriteUint64(n uint64) {
	if w.err != nil {
		return
	}

	buf := intBufferPool.Get().(*intBuffer)
	defer intBufferPool.Put(buf)

	binary.BigEndian.PutUint64(buf[:8], n)
	if _, err := w.writer.Write(buf[:8]); err != nil {
		w.err = err
	}
}

// WriteDouble writes a float64 as its big-endian IEEE 754 bits.
func (w *Writer) WriteDouble(f float64) {
	w.WriteUint64(math.Float64bits(f))
}

// WriteLen16Bytes writes a slice of bytes preceded by its length as a
// big-endian uint16.
func (w *Writer) WriteLen16Bytes(b []byte) {
	if w.err != nil {
		return
	}

	w.WriteUint16(uint16(len(b)))
	w.WriteBytes(b)
}

// WriteLen32String writes a string preceded by its length as a big-endian
// uint32, the layout used by the Thrift binary protocol.
func (w *Writer) WriteLen32String(s string) {
	if w.err != nil {
		return
	}

	w.WriteUint32(uint32(len(s)))
	w.WriteBytes([]byte(s))
}

// Err returns the latched error state of the writer.
func (w *Writer) Err() error {
	return w.err
}
