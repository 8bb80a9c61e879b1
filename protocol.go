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
	"fmt"
)

// ThriftObject incrementally parses a Thrift value from upstream bytes. Used
// for upgrade responses, where the router owns the read side but the protocol
// owns the interpretation.
type ThriftObject interface {
	// OnData consumes bytes from the buffer. It returns true once the
	// object is complete; consumed bytes are drained from the buffer.
	OnData(buf *bytes.Buffer) bool
}

// Protocol is the write side of a Thrift protocol encoding, plus the
// optional connection upgrade hooks. Writes accumulate into a caller-owned
// buffer; buffer writes cannot fail.
type Protocol interface {
	Name() string
	Type() ProtocolType

	WriteMessageBegin(buf *bytes.Buffer, metadata *MessageMetadata)
	WriteMessageEnd(buf *bytes.Buffer)
	WriteStructBegin(buf *bytes.Buffer, name string)
	WriteStructEnd(buf *bytes.Buffer)
	WriteFieldBegin(buf *bytes.Buffer, name string, fieldType FieldType, fieldID int16)
	WriteFieldEnd(buf *bytes.Buffer)
	WriteMapBegin(buf *bytes.Buffer, keyType, valueType FieldType, size int)
	WriteMapEnd(buf *bytes.Buffer)
	WriteListBegin(buf *bytes.Buffer, elemType FieldType, size int)
	WriteListEnd(buf *bytes.Buffer)
	WriteSetBegin(buf *bytes.Buffer, elemType FieldType, size int)
	WriteSetEnd(buf *bytes.Buffer)
	WriteBool(buf *bytes.Buffer, value bool)
	WriteByte(buf *bytes.Buffer, value int8)
	WriteInt16(buf *bytes.Buffer, value int16)
	WriteInt32(buf *bytes.Buffer, value int32)
	WriteInt64(buf *bytes.Buffer, value int64)
	WriteDouble(buf *bytes.Buffer, value float64)
	WriteString(buf *bytes.Buffer, value string)

	// SupportsUpgrade reports whether this protocol can negotiate a
	// connection upgrade before the first message on a fresh connection.
	SupportsUpgrade() bool

	// AttemptUpgrade starts an upgrade exchange. If the connection state
	// shows the upgrade already happened (or is unnecessary), it returns nil
	// and the caller proceeds directly to the request. Otherwise it fills
	// buf with the upgrade request bytes and returns a parser for the
	// upgrade response.
	AttemptUpgrade(transport Transport, state *ThriftConnectionState, buf *bytes.Buffer) ThriftObject

	// CompleteUpgrade persists the outcome of a finished upgrade exchange
	// on the sticky connection state.
	CompleteUpgrade(state *ThriftConnectionState, response ThriftObject)
}

// Transport wraps encoded messages in a transport frame.
type Transport interface {
	Name() string
	Type() TransportType

	// EncodeFrame wraps the message buffer in a transport frame and appends
	// the result to out. The message buffer is drained.
	EncodeFrame(out *bytes.Buffer, metadata *MessageMetadata, message *bytes.Buffer)
}

// TransportFactory creates a transport instance for the given type.
type TransportFactory func(t TransportType) (Transport, error)

// ProtocolFactory creates a protocol instance for the given type.
type ProtocolFactory func(t ProtocolType) (Protocol, error)

// NewTransport is the default TransportFactory.
func NewTransport(t TransportType) (Transport, error) {
	switch t {
	case TransportFramed:
		return newFramedTransport(), nil
	case TransportUnframed:
		return newUnframedTransport(), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %v", t)
	}
}

// NewProtocol is the default ProtocolFactory.
func NewProtocol(t ProtocolType) (Protocol, error) {
	switch t {
	case ProtocolBinary:
		return newBinaryProtocol(), nil
	case ProtocolHeader:
		return newHeaderProtocol(), nil
	default:
		return nil, fmt.Errorf("unsupported protocol type: %v", t)
	}
}
