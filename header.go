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
	"encoding/binary"
)

// _upgradeMethodName is the reserved method used for the one-time connection
// preamble that negotiates the header protocol.
const _upgradeMethodName = "upgradeHeaderProtocol"

// headerProtocol is a binary-compatible protocol that negotiates a one-time
// connection upgrade before the first message on a fresh connection. The
// upgrade exchange is a framed binary call of the reserved upgrade method;
// a Reply confirms the peer speaks the header protocol.
type headerProtocol struct {
	binaryProtocol
}

func newHeaderProtocol() *headerProtocol { return &headerProtocol{} }

func (p *headerProtocol) Name() string       { return "header" }
func (p *headerProtocol) Type() ProtocolType { return ProtocolHeader }

func (p *headerProtocol) SupportsUpgrade() bool { return true }

func (p *headerProtocol) AttemptUpgrade(transport Transport, state *ThriftConnectionState, buf *bytes.Buffer) ThriftObject {
	if state.upgradeAttempted {
		return nil
	}
	state.upgradeAttempted = true

	metadata := &MessageMetadata{
		MethodName:  _upgradeMethodName,
		MessageType: MessageTypeCall,
		SequenceID:  0,
	}

	var message bytes.Buffer
	p.WriteMessageBegin(&message, metadata)
	p.WriteStructBegin(&message, "")
	p.WriteFieldBegin(&message, "", FieldTypeStop, 0)
	p.WriteStructEnd(&message)
	p.WriteMessageEnd(&message)
	transport.EncodeFrame(buf, metadata, &message)

	return newHeaderUpgradeReply()
}

func (p *headerProtocol) CompleteUpgrade(state *ThriftConnectionState, response ThriftObject) {
	reply, ok := response.(*headerUpgradeReply)
	state.upgradeAttempted = true
	state.upgraded = ok && reply.success()
}

// headerUpgradeReply incrementally parses the framed reply to the upgrade
// request: a 4-byte frame length followed by the frame body, whose first
// word carries the message type in the low byte.
type headerUpgradeReply struct {
	header    [4]byte
	headerLen int
	body      bytes.Buffer
	bodyLen   int
}

func newHeaderUpgradeReply() *headerUpgradeReply {
	return &headerUpgradeReply{}
}

func (r *headerUpgradeReply) OnData(buf *bytes.Buffer) bool {
	for r.headerLen < len(r.header) && buf.Len() > 0 {
		b, _ := buf.ReadByte()
		r.header[r.headerLen] = b
		r.headerLen++
		if r.headerLen == len(r.header) {
			r.bodyLen = int(binary.BigEndian.Uint32(r.header[:]))
		}
	}
	if r.headerLen < len(r.header) {
		return false
	}

	if need := r.bodyLen - r.body.Len(); need > 0 {
		take := need
		if buf.Len() < take {
			take = buf.Len()
		}
		r.body.Write(buf.Next(take))
	}
	return r.body.Len() >= r.bodyLen
}

// success reports whether the parsed frame is a Reply to the upgrade call.
func (r *headerUpgradeReply) success() bool {
	if r.body.Len() < 4 {
		return false
	}
	word := binary.BigEndian.Uint32(r.body.Bytes()[:4])
	return MessageType(word&0xFF) == MessageTypeReply
}
