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

// MessageType is the type of a Thrift message envelope.
type MessageType byte

// Thrift message types.
const (
	MessageTypeCall      MessageType = 1
	MessageTypeReply     MessageType = 2
	MessageTypeException MessageType = 3
	MessageTypeOneway    MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCall:
		return "call"
	case MessageTypeReply:
		return "reply"
	case MessageTypeException:
		return "exception"
	case MessageTypeOneway:
		return "oneway"
	default:
		return fmt.Sprintf("messageType-%d", int(t))
	}
}

// FieldType is the wire type of a Thrift struct field.
type FieldType byte

// Thrift field types. Stop is the sentinel that terminates a struct.
const (
	FieldTypeStop   FieldType = 0
	FieldTypeBool   FieldType = 2
	FieldTypeByte   FieldType = 3
	FieldTypeDouble FieldType = 4
	FieldTypeI16    FieldType = 6
	FieldTypeI32    FieldType = 8
	FieldTypeI64    FieldType = 10
	FieldTypeString FieldType = 11
	FieldTypeStruct FieldType = 12
	FieldTypeMap    FieldType = 13
	FieldTypeSet    FieldType = 14
	FieldTypeList   FieldType = 15
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeStop:
		return "stop"
	case FieldTypeBool:
		return "bool"
	case FieldTypeByte:
		return "byte"
	case FieldTypeDouble:
		return "double"
	case FieldTypeI16:
		return "i16"
	case FieldTypeI32:
		return "i32"
	case FieldTypeI64:
		return "i64"
	case FieldTypeString:
		return "string"
	case FieldTypeStruct:
		return "struct"
	case FieldTypeMap:
		return "map"
	case FieldTypeSet:
		return "set"
	case FieldTypeList:
		return "list"
	default:
		return fmt.Sprintf("fieldType-%d", int(t))
	}
}

// TransportType identifies a Thrift transport wrapping.
type TransportType int

// Known transport types.
const (
	TransportUnframed TransportType = iota
	TransportFramed
)

func (t TransportType) String() string {
	switch t {
	case TransportUnframed:
		return "unframed"
	case TransportFramed:
		return "framed"
	default:
		return fmt.Sprintf("transportType-%d", int(t))
	}
}

// ProtocolType identifies a Thrift protocol encoding.
type ProtocolType int

// Known protocol types.
const (
	ProtocolBinary ProtocolType = iota
	ProtocolHeader
)

func (t ProtocolType) String() string {
	switch t {
	case ProtocolBinary:
		return "binary"
	case ProtocolHeader:
		return "header"
	default:
		return fmt.Sprintf("protocolType-%d", int(t))
	}
}

// MessageMetadata is the envelope of a decoded downstream message. It is
// immutable from the router's perspective once MessageBegin has been received.
type MessageMetadata struct {
	MethodName  string
	MessageType MessageType
	SequenceID  int32
}

// AppExceptionType is the numeric type carried by a Thrift application
// exception.
type AppExceptionType int32

// Application exception types, as defined by TApplicationException.
const (
	AppExceptionUnknown          AppExceptionType = 0
	AppExceptionUnknownMethod    AppExceptionType = 1
	AppExceptionInvalidMsgType   AppExceptionType = 2
	AppExceptionWrongMethodName  AppExceptionType = 3
	AppExceptionBadSequenceID    AppExceptionType = 4
	AppExceptionMissingResult    AppExceptionType = 5
	AppExceptionInternalError    AppExceptionType = 6
	AppExceptionProtocolError    AppExceptionType = 7
	AppExceptionInvalidTransform AppExceptionType = 8
	AppExceptionInvalidProtocol  AppExceptionType = 9
	AppExceptionUnsupportedType  AppExceptionType = 10
)

// DirectResponse is a locally-generated reply delivered to the downstream
// connection in place of an upstream response.
type DirectResponse interface {
	// Encode writes the response as a complete Thrift message using the
	// downstream protocol, ready for transport framing.
	Encode(metadata *MessageMetadata, proto Protocol, buf *bytes.Buffer)
}

// AppException is a Thrift application exception returned in place of a
// normal reply. It implements both error and DirectResponse.
type AppException struct {
	Type    AppExceptionType
	Message string
}

// NewAppException constructs an AppException with a formatted message.
func NewAppException(t AppExceptionType, format string, args ...interface{}) *AppException {
	return &AppException{Type: t, Message: fmt.Sprintf(format, args...)}
}

func (e *AppException) Error() string {
	return e.Message
}

// Encode writes the exception as an Exception reply for the original method
// and sequence id, in TApplicationException layout: message (field 1,
// string), type (field 2, i32).
func (e *AppException) Encode(metadata *MessageMetadata, proto Protocol, buf *bytes.Buffer) {
	reply := &MessageMetadata{
		MethodName:  metadata.MethodName,
		MessageType: MessageTypeException,
		SequenceID:  metadata.SequenceID,
	}

	proto.WriteMessageBegin(buf, reply)
	proto.WriteStructBegin(buf, "TApplicationException")

	proto.WriteFieldBegin(buf, "message", FieldTypeString, 1)
	proto.WriteString(buf, e.Message)
	proto.WriteFieldEnd(buf)

	proto.WriteFieldBegin(buf, "type", FieldTypeI32, 2)
	proto.WriteInt32(buf, int32(e.Type))
	proto.WriteFieldEnd(buf)

	proto.WriteFieldBegin(buf, "", FieldTypeStop, 0)
	proto.WriteStructEnd(buf)
	proto.WriteMessageEnd(buf)
}
