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
	"io"
	"net"
	"sync"
)

// ConnectionCloseType controls how buffered data is handled on close.
type ConnectionCloseType int

const (
	// FlushWrite flushes pending write data before closing.
	FlushWrite ConnectionCloseType = iota
	// NoFlush discards pending write data and closes immediately.
	NoFlush
)

// ConnectionEvent is raised on the read side of a connection.
type ConnectionEvent int

const (
	// RemoteClose indicates the peer closed the connection.
	RemoteClose ConnectionEvent = iota
	// LocalClose indicates the connection was closed locally.
	LocalClose
	// Connected indicates the connection finished establishing.
	Connected
)

func (e ConnectionEvent) String() string {
	switch e {
	case RemoteClose:
		return "remote-close"
	case LocalClose:
		return "local-close"
	case Connected:
		return "connected"
	default:
		return "unknown-event"
	}
}

// Connection is the write-side surface of a network connection.
type Connection interface {
	// Write writes the buffer's contents. endStream half-closes the write
	// side after the data is flushed.
	Write(buf *bytes.Buffer, endStream bool)

	// Close closes the connection.
	Close(closeType ConnectionCloseType)
}

// UpstreamCallbacks is the read-side owner of a pooled upstream connection.
// Installed via ConnectionData.AddUpstreamCallbacks; exactly one owner may be
// installed per checkout.
type UpstreamCallbacks interface {
	// OnUpstreamData is called with bytes read from the upstream connection.
	// endStream is true when the peer half-closed after this data.
	OnUpstreamData(buf *bytes.Buffer, endStream bool)

	// OnEvent is called for connection lifecycle events.
	OnEvent(event ConnectionEvent)
}

// ThriftConnectionState is sticky per-connection metadata kept on the pool's
// connection record. It survives across successive tenants of the connection
// and is mutated only by the protocol's upgrade hooks: AttemptUpgrade marks
// that an upgrade was started, CompleteUpgrade records its outcome.
type ThriftConnectionState struct {
	upgradeAttempted bool
	upgraded         bool
}

// NewThriftConnectionState returns connection state for a fresh connection
// with no upgrade history.
func NewThriftConnectionState() *ThriftConnectionState {
	return &ThriftConnectionState{}
}

// Upgraded reports whether a protocol upgrade has completed on this
// connection.
func (s *ThriftConnectionState) Upgraded() bool {
	return s.upgraded
}

// UpgradeAttempted reports whether an upgrade exchange was ever started on
// this connection, regardless of outcome.
func (s *ThriftConnectionState) UpgradeAttempted() bool {
	return s.upgradeAttempted
}

// ConnectionData is the pool's handle for a checked-out connection.
type ConnectionData interface {
	// Connection returns the underlying connection.
	Connection() Connection

	// AddUpstreamCallbacks installs the read-side owner for this checkout.
	AddUpstreamCallbacks(callbacks UpstreamCallbacks)

	// ConnectionState returns the sticky per-connection state, or nil if
	// none has been set.
	ConnectionState() *ThriftConnectionState

	// SetConnectionState sets the sticky per-connection state.
	SetConnectionState(state *ThriftConnectionState)
}

const _readBufferSize = 4096

// tcpConnection adapts a net.Conn to the Connection surface and runs the
// read loop that feeds UpstreamCallbacks. Read-side callbacks are posted to
// the owner's Dispatcher; a single router must own the read side between
// checkout and release.
type tcpConnection struct {
	conn     net.Conn
	log      Logger
	dispatch *Dispatcher

	// onClose is invoked exactly once when the connection stops being
	// usable, regardless of which side closed it.
	onClose func()

	mut       sync.Mutex
	callbacks UpstreamCallbacks
	closed    bool
}

func newTCPConnection(conn net.Conn, log Logger, dispatch *Dispatcher, onClose func()) *tcpConnection {
	return &tcpConnection{
		conn:     conn,
		log:      log.WithFields(LogField{"remoteAddr", conn.RemoteAddr().String()}),
		dispatch: dispatch,
		onClose:  onClose,
	}
}

// start begins the read loop. Called once the owner has finished
// registering the connection.
func (c *tcpConnection) start() {
	go c.readLoop()
}

func (c *tcpConnection) Write(buf *bytes.Buffer, endStream bool) {
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		c.log.WithFields(ErrField(err)).Warn("Upstream write failed.")
		c.Close(NoFlush)
		return
	}
	if endStream {
		if hc, ok := c.conn.(interface{ CloseWrite() error }); ok {
			_ = hc.CloseWrite()
		}
	}
}

func (c *tcpConnection) Close(closeType ConnectionCloseType) {
	c.mut.Lock()
	if c.closed {
		c.mut.Unlock()
		return
	}
	c.closed = true
	cb := c.callbacks
	c.mut.Unlock()

	if closeType == NoFlush {
		if tc, ok := c.conn.(*net.TCPConn); ok {
			_ = tc.SetLinger(0)
		}
	}
	_ = c.conn.Close()

	if c.onClose != nil {
		c.onClose()
	}
	if cb != nil {
		cb.OnEvent(LocalClose)
	}
}

func (c *tcpConnection) setCallbacks(callbacks UpstreamCallbacks) {
	c.mut.Lock()
	c.callbacks = callbacks
	c.mut.Unlock()
}

func (c *tcpConnection) currentCallbacks() UpstreamCallbacks {
	c.mut.Lock()
	cb := c.callbacks
	c.mut.Unlock()
	return cb
}

// readLoop reads until the connection dies. A graceful peer half-close is
// delivered as a final OnUpstreamData with endStream=true, so a partial
// reply surfaces as a truncation, before any close event.
func (c *tcpConnection) readLoop() {
	readBuf := make([]byte, _readBufferSize)
	for {
		n, err := c.conn.Read(readBuf)
		endStream := err == io.EOF

		if n > 0 || endStream {
			data := make([]byte, n)
			copy(data, readBuf[:n])
			c.dispatch.Post(func() {
				if cb := c.currentCallbacks(); cb != nil {
					cb.OnUpstreamData(bytes.NewBuffer(data), endStream)
				}
			})
		}

		if err != nil {
			c.mut.Lock()
			alreadyClosed := c.closed
			c.closed = true
			c.mut.Unlock()

			if !alreadyClosed {
				if c.onClose != nil {
					c.onClose()
				}
				c.dispatch.Post(func() {
					if cb := c.currentCallbacks(); cb != nil {
						cb.OnEvent(RemoteClose)
					}
				})
			}
			_ = c.conn.Close()
			return
		}
	}
}
