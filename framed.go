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

// framedTransport prefixes each message with its length as a big-endian
// uint32.
type framedTransport struct{}

func newFramedTransport() *framedTransport { return &framedTransport{} }

func (t *framedTransport) Name() string        { return "framed" }
func (t *framedTransport) Type() TransportType { return TransportFramed }

func (t *framedTransport) EncodeFrame(out *bytes.Buffer, metadata *MessageMetadata, message *bytes.Buffer) {
	w := typed.NewWriter(out)
	w.WriteUint32(uint32(message.Len()))
	w.WriteBytes(message.Bytes())
	message.Reset()
}

// unframedTransport passes messages through without any wrapping.
type unframedTransport struct{}

func newUnframedTransport() *unframedTransport { return &unframedTransport{} }

func (t *unframedTransport) Name() string        { return "unframed" }
func (t *unframedTransport) Type() TransportType { return TransportUnframed }

func (t *unframedTransport) EncodeFrame(out *bytes.Buffer, metadata *MessageMetadata, message *bytes.Buffer) {
	typed.NewWriter(out).WriteBytes(message.Bytes())
	message.Reset()
}
