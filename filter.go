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

import "bytes"

// FilterStatus is returned by every decoder callback to control iteration of
// the downstream decoder.
type FilterStatus int

const (
	// Continue lets the decoder proceed with the next event.
	Continue FilterStatus = iota
	// StopIteration suspends the decoder until the filter signals
	// ContinueDecoding on its callbacks.
	StopIteration
)

func (s FilterStatus) String() string {
	if s == Continue {
		return "continue"
	}
	return "stop-iteration"
}

// DecoderEventHandler receives the structural event stream produced by the
// downstream Thrift decoder. The surface corresponds one-to-one to the wire:
// a transport frame contains a message, a message contains a struct, structs
// contain fields, fields contain values or containers.
type DecoderEventHandler interface {
	// TransportBegin is called when a new transport frame starts. Metadata
	// may be nil for transports that carry none.
	TransportBegin(metadata *MessageMetadata) FilterStatus
	// TransportEnd is called when the current transport frame completes.
	TransportEnd() FilterStatus
	// MessageBegin is called with the message envelope. This is the only
	// callback that may suspend the decoder for an extended period.
	MessageBegin(metadata *MessageMetadata) FilterStatus
	// MessageEnd is called when the message payload is complete.
	MessageEnd() FilterStatus

	StructBegin(name string) FilterStatus
	StructEnd() FilterStatus
	FieldBegin(name string, fieldType FieldType, fieldID int16) FilterStatus
	FieldEnd() FilterStatus

	MapBegin(keyType, valueType FieldType, size int) FilterStatus
	MapEnd() FilterStatus
	ListBegin(elemType FieldType, size int) FilterStatus
	ListEnd() FilterStatus
	SetBegin(elemType FieldType, size int) FilterStatus
	SetEnd() FilterStatus

	BoolValue(value bool) FilterStatus
	ByteValue(value int8) FilterStatus
	Int16Value(value int16) FilterStatus
	Int32Value(value int32) FilterStatus
	Int64Value(value int64) FilterStatus
	DoubleValue(value float64) FilterStatus
	StringValue(value string) FilterStatus
}

// DecoderFilter is a filter in the downstream decoder chain.
type DecoderFilter interface {
	DecoderEventHandler

	// OnDestroy tears the filter down. Any pending upstream state is
	// canceled or closed; no callbacks fire afterwards.
	OnDestroy()

	// SetDecoderFilterCallbacks hands the filter its callbacks handle before
	// any decoder event is delivered.
	SetDecoderFilterCallbacks(callbacks DecoderFilterCallbacks)
}

// DecoderFilterCallbacks is the filter's view of the surrounding connection
// manager. All methods must be invoked from the connection's dispatch
// goroutine.
type DecoderFilterCallbacks interface {
	// Route returns the route matched for the current message, or nil.
	Route() Route

	// DownstreamTransportType and DownstreamProtocolType report the types
	// negotiated on the downstream connection, also used for the upstream
	// codec.
	DownstreamTransportType() TransportType
	DownstreamProtocolType() ProtocolType

	// Connection returns the downstream connection.
	Connection() Connection

	// ContinueDecoding resumes a decoder suspended by StopIteration.
	ContinueDecoding()

	// SendLocalReply delivers a locally-generated response downstream. The
	// connection manager serializes it onto the downstream transport.
	SendLocalReply(response DirectResponse)

	// StartUpstreamResponse configures the response decoder with the
	// upstream transport and protocol before the first response bytes.
	StartUpstreamResponse(transport Transport, proto Protocol)

	// UpstreamData feeds response bytes to the response decoder. It returns
	// true once a complete reply has been parsed.
	UpstreamData(buf *bytes.Buffer) bool

	// ResetDownstreamConnection closes the downstream connection without a
	// reply. Used when partial response data may already have been written.
	ResetDownstreamConnection()
}
