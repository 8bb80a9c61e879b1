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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryWriteMessageBegin(t *testing.T) {
	tests := []struct {
		msgType MessageType
		want    []byte
	}{
		{
			msgType: MessageTypeCall,
			want: []byte{
				0x80, 0x01, 0x00, 0x01, // version | call
				0x00, 0x00, 0x00, 0x02, 'h', 'i', // method
				0x00, 0x00, 0x00, 0x07, // sequence id
			},
		},
		{
			msgType: MessageTypeReply,
			want: []byte{
				0x80, 0x01, 0x00, 0x02,
				0x00, 0x00, 0x00, 0x02, 'h', 'i',
				0x00, 0x00, 0x00, 0x07,
			},
		},
		{
			msgType: MessageTypeOneway,
			want: []byte{
				0x80, 0x01, 0x00, 0x04,
				0x00, 0x00, 0x00, 0x02, 'h', 'i',
				0x00, 0x00, 0x00, 0x07,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.msgType.String(), func(t *testing.T) {
			proto := newBinaryProtocol()
			var buf bytes.Buffer
			proto.WriteMessageBegin(&buf, &MessageMetadata{
				MethodName:  "hi",
				MessageType: tt.msgType,
				SequenceID:  7,
			})
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestBinaryWriteStruct(t *testing.T) {
	proto := newBinaryProtocol()
	var buf bytes.Buffer

	proto.WriteStructBegin(&buf, "")
	proto.WriteFieldBegin(&buf, "", FieldTypeI32, 1)
	proto.WriteInt32(&buf, 4)
	proto.WriteFieldEnd(&buf)
	proto.WriteFieldBegin(&buf, "", FieldTypeStop, 0)
	proto.WriteStructEnd(&buf)

	assert.Equal(t, []byte{
		0x08, 0x00, 0x01, // field header: i32, id 1
		0x00, 0x00, 0x00, 0x04, // value
		0x00, // stop
	}, buf.Bytes())
}

func TestBinaryWriteValues(t *testing.T) {
	tests := []struct {
		name  string
		write func(proto *binaryProtocol, buf *bytes.Buffer)
		want  []byte
	}{
		{
			name:  "bool true",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteBool(buf, true) },
			want:  []byte{0x01},
		},
		{
			name:  "bool false",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteBool(buf, false) },
			want:  []byte{0x00},
		},
		{
			name:  "byte",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteByte(buf, -1) },
			want:  []byte{0xFF},
		},
		{
			name:  "i16",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteInt16(buf, 3) },
			want:  []byte{0x00, 0x03},
		},
		{
			name:  "i64",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteInt64(buf, 5) },
			want:  []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05},
		},
		{
			name:  "double",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteDouble(buf, 1.0) },
			want:  []byte{0x3F, 0xF0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:  "string",
			write: func(p *binaryProtocol, buf *bytes.Buffer) { p.WriteString(buf, "seven") },
			want:  []byte{0x00, 0x00, 0x00, 0x05, 's', 'e', 'v', 'e', 'n'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.write(newBinaryProtocol(), &buf)
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestBinaryWriteContainers(t *testing.T) {
	proto := newBinaryProtocol()

	var buf bytes.Buffer
	proto.WriteMapBegin(&buf, FieldTypeI32, FieldTypeString, 2)
	assert.Equal(t, []byte{0x08, 0x0B, 0x00, 0x00, 0x00, 0x02}, buf.Bytes())

	buf.Reset()
	proto.WriteListBegin(&buf, FieldTypeI32, 3)
	assert.Equal(t, []byte{0x08, 0x00, 0x00, 0x00, 0x03}, buf.Bytes())

	buf.Reset()
	proto.WriteSetBegin(&buf, FieldTypeI32, 4)
	assert.Equal(t, []byte{0x08, 0x00, 0x00, 0x00, 0x04}, buf.Bytes())
}

func TestBinaryNoUpgrade(t *testing.T) {
	proto := newBinaryProtocol()
	assert.False(t, proto.SupportsUpgrade())

	var buf bytes.Buffer
	assert.Nil(t, proto.AttemptUpgrade(newFramedTransport(), NewThriftConnectionState(), &buf))
	assert.Zero(t, buf.Len())
}
