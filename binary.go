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

package thriftproxy

import (
	"bytes"

	"github.com/quayside/thriftproxy/typed"
)

// _binaryVersion is the strict binary protocol version word: the high bit
// set plus version 1. The message type occupies the low byte of the word.
const _binaryVersion uint32 = 0x80010000

// binaryProtocol is the write side of the strict Thrift binary protocol.
type binaryProtocol struct{}

func newBinaryProtocol() *binaryProtocol { return &binaryProtocol{} }

func (p *binaryProtocol) Name() string       { return "binary" }
func (p *binaryProtocol) Type() ProtocolType { return ProtocolBinary }

func (p *binaryProtocol) WriteMessageBegin(buf *bytes.Buffer, metadata *MessageMetadata) {
	w := typed.NewWriter(buf)
	w.WriteUint32(_binaryVersion | uint32(metadata.MessageType))
	w.WriteLen32String(metadata.MethodName)
	w.WriteUint32(uint32(metadata.SequenceID))
}

func (p *binaryProtocol) WriteMessageEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteStructBegin(*bytes.Buffer, string) {}

func (p *binaryProtocol) WriteStructEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteFieldBegin(buf *bytes.Buffer, name string, fieldType FieldType, fieldID int16) {
	w := typed.NewWriter(buf)
	w.WriteSingleByte(byte(fieldType))
	if fieldType != FieldTypeStop {
		w.WriteUint16(uint16(fieldID))
	}
}

func (p *binaryProtocol) WriteFieldEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteMapBegin(buf *bytes.Buffer, keyType, valueType FieldType, size int) {
	w := typed.NewWriter(buf)
	w.WriteSingleByte(byte(keyType))
	w.WriteSingleByte(byte(valueType))
	w.WriteUint32(uint32(size))
}

func (p *binaryProtocol) WriteMapEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteListBegin(buf *bytes.Buffer, elemType FieldType, size int) {
	w := typed.NewWriter(buf)
	w.WriteSingleByte(byte(elemType))
	w.WriteUint32(uint32(size))
}

func (p *binaryProtocol) WriteListEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteSetBegin(buf *bytes.Buffer, elemType FieldType, size int) {
	p.WriteListBegin(buf, elemType, size)
}

func (p *binaryProtocol) WriteSetEnd(*bytes.Buffer) {}

func (p *binaryProtocol) WriteBool(buf *bytes.Buffer, value bool) {
	var b byte
	if value {
		b = 1
	}
	typed.NewWriter(buf).WriteSingleByte(b)
}

func (p *binaryProtocol) WriteByte(buf *bytes.Buffer, value int8) {
	typed.NewWriter(buf).WriteSingleByte(byte(value))
}

func (p *binaryProtocol) WriteInt16(buf *bytes.Buffer, value int16) {
	typed.NewWriter(buf).WriteUint16(uint16(value))
}

func (p *binaryProtocol) WriteInt32(buf *bytes.Buffer, value int32) {
	typed.NewWriter(buf).WriteUint32(uint32(value))
}

func (p *binaryProtocol) WriteInt64(buf *bytes.Buffer, value int64) {
	typed.NewWriter(buf).WriteUint64(uint64(value))
}

func (p *binaryProtocol) WriteDouble(buf *bytes.Buffer, value float64) {
	typed.NewWriter(buf).WriteDouble(value)
}

func (p *binaryProtocol) WriteString(buf *bytes.Buffer, value string) {
	typed.NewWriter(buf).WriteLen32String(value)
}

func (p *binaryProtocol) SupportsUpgrade() bool { return false }

func (p *binaryProtocol) AttemptUpgrade(Transport, *ThriftConnectionState, *bytes.Buffer) ThriftObject {
	return nil
}

func (p *binaryProtocol) CompleteUpgrade(*ThriftConnectionState, ThriftObject) {}
