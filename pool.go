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
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// PoolFailureReason explains why a connection checkout failed.
type PoolFailureReason int

const (
	// RemoteConnectionFailure indicates the remote host refused or dropped
	// the connection attempt.
	RemoteConnectionFailure PoolFailureReason = iota
	// LocalConnectionFailure indicates the connection could not be
	// established locally.
	LocalConnectionFailure
	// Timeout indicates the connection attempt timed out.
	Timeout
	// Overflow indicates the pool is at its connection limit.
	Overflow
)

func (r PoolFailureReason) String() string {
	switch r {
	case RemoteConnectionFailure:
		return "remote-connection-failure"
	case LocalConnectionFailure:
		return "local-connection-failure"
	case Timeout:
		return "timeout"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// PoolCallbacks receives the outcome of a connection checkout. Exactly one
// of the callbacks fires per NewConnection call, possibly synchronously.
type PoolCallbacks interface {
	OnPoolReady(data ConnectionData)
	OnPoolFailure(reason PoolFailureReason, hostPort string)
}

// CancelHandle cancels a pending connection checkout.
type CancelHandle interface {
	Cancel()
}

// ConnPool is a per-cluster facility that multiplexes callers onto a bounded
// set of upstream TCP connections with explicit check-out and check-in.
type ConnPool interface {
	// NewConnection requests a connection. If the request completes
	// synchronously (idle reuse or immediate failure), the callbacks fire
	// before NewConnection returns and the handle is nil.
	NewConnection(callbacks PoolCallbacks) CancelHandle

	// Released returns a borrowed connection to the pool for reuse.
	Released(conn Connection)
}

const (
	// DefaultMaxConnections bounds concurrent upstream connections per pool.
	DefaultMaxConnections = 1024
	// DefaultConnectTimeout bounds a single upstream connection attempt.
	DefaultConnectTimeout = 5 * time.Second
)

// ConnPoolOptions configures a connection pool.
type ConnPoolOptions struct {
	// MaxConnections bounds the number of concurrent connections; checkout
	// beyond the bound fails with Overflow.
	MaxConnections int

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration

	// MaxIdleTime and IdleCheckInterval control the idle sweeper. Both must
	// be set to enable sweeping.
	MaxIdleTime       time.Duration
	IdleCheckInterval time.Duration

	// Dispatcher is the event loop that asynchronous pool and read-side
	// callbacks are posted to. Pools sharing a worker share one. If unset,
	// the pool creates and owns its own.
	Dispatcher *Dispatcher

	Logger Logger
	Stats  StatsReporter
}

func (o *ConnPoolOptions) withDefaults() ConnPoolOptions {
	opts := ConnPoolOptions{}
	if o != nil {
		opts = *o
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = NullLogger
	}
	if opts.Stats == nil {
		opts.Stats = SimpleStatsReporter
	}
	return opts
}

// pooledConn is the pool's record of a single connection. It implements
// ConnectionData for the duration of a checkout and carries the sticky
// per-connection state across tenants.
type pooledConn struct {
	pool *connPool
	host *poolHost
	conn *tcpConnection

	state      *ThriftConnectionState
	checkedOut bool
	idleSince  time.Time
}

func (pc *pooledConn) Connection() Connection { return pc.conn }

func (pc *pooledConn) AddUpstreamCallbacks(callbacks UpstreamCallbacks) {
	pc.conn.setCallbacks(callbacks)
}

func (pc *pooledConn) ConnectionState() *ThriftConnectionState { return pc.state }

func (pc *pooledConn) SetConnectionState(state *ThriftConnectionState) { pc.state = state }

// connPool implements ConnPool over real TCP connections to a fixed set of
// hosts, selecting the least-loaded host for new connections.
type connPool struct {
	opts ConnPoolOptions
	log  Logger

	dial func(hostPort string, timeout time.Duration) (net.Conn, error)

	dispatch     *Dispatcher
	ownsDispatch bool

	mut    sync.Mutex
	hosts  hostHeap
	idle   []*pooledConn
	byConn map[Connection]*pooledConn
	closed bool

	active  atomic.Int32
	pending atomic.Int32

	sweep *idleSweep
}

// NewConnPool creates a pool over the given upstream host:ports.
func NewConnPool(hostPorts []string, opts *ConnPoolOptions) ConnPool {
	return newConnPool(hostPorts, opts)
}

func newConnPool(hostPorts []string, opts *ConnPoolOptions) *connPool {
	o := opts.withDefaults()
	p := &connPool{
		opts:   o,
		log:    o.Logger,
		byConn: make(map[Connection]*pooledConn),
		dial: func(hostPort string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", hostPort, timeout)
		},
	}
	for _, hp := range hostPorts {
		p.hosts.push(&poolHost{hostPort: hp})
	}
	p.dispatch = o.Dispatcher
	if p.dispatch == nil {
		p.dispatch = NewDispatcher()
		p.ownsDispatch = true
	}
	p.sweep = newIdleSweep(p, o.MaxIdleTime, o.IdleCheckInterval)
	p.sweep.Start()
	return p
}

func (p *connPool) NewConnection(callbacks PoolCallbacks) CancelHandle {
	p.mut.Lock()

	if p.closed || p.hosts.Len() == 0 {
		p.mut.Unlock()
		callbacks.OnPoolFailure(LocalConnectionFailure, "")
		return nil
	}

	// Prefer an idle connection; reuse is synchronous.
	if n := len(p.idle); n > 0 {
		pc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		pc.checkedOut = true
		p.mut.Unlock()

		p.opts.Stats.IncCounter(StatConnPoolCheckout, nil, 1)
		callbacks.OnPoolReady(pc)
		return nil
	}

	if int(p.active.Load())+int(p.pending.Load()) >= p.opts.MaxConnections {
		p.mut.Unlock()
		p.opts.Stats.IncCounter(StatPoolOverflow, nil, 1)
		callbacks.OnPoolFailure(Overflow, "")
		return nil
	}

	host := p.hosts.peek()
	host.active++
	p.hosts.update(host)
	p.pending.Inc()
	p.mut.Unlock()

	pending := &pendingConn{pool: p, host: host, callbacks: callbacks}
	go pending.connect()
	return pending
}

func (p *connPool) Released(conn Connection) {
	p.mut.Lock()
	pc, ok := p.byConn[conn]
	if !ok || !pc.checkedOut {
		p.mut.Unlock()
		p.log.Warn("Released connection that is not checked out.")
		return
	}
	pc.checkedOut = false
	pc.idleSince = time.Now()
	pc.conn.setCallbacks(nil)
	p.idle = append(p.idle, pc)
	p.mut.Unlock()

	p.opts.Stats.IncCounter(StatConnPoolRelease, nil, 1)
}

// remove drops a connection from the pool's records, e.g. after it closed.
func (p *connPool) remove(conn Connection) {
	p.mut.Lock()
	pc, ok := p.byConn[conn]
	if ok {
		delete(p.byConn, conn)
		pc.host.active--
		p.hosts.update(pc.host)
		for i, ic := range p.idle {
			if ic == pc {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
		p.active.Dec()
	}
	p.mut.Unlock()
}

// closeIdle closes idle connections unused since the deadline and returns
// how many were closed.
func (p *connPool) closeIdle(olderThan time.Time) int {
	p.mut.Lock()
	var expired []*pooledConn
	remaining := p.idle[:0]
	for _, pc := range p.idle {
		if pc.idleSince.Before(olderThan) {
			expired = append(expired, pc)
		} else {
			remaining = append(remaining, pc)
		}
	}
	p.idle = remaining
	p.mut.Unlock()

	for _, pc := range expired {
		pc.conn.Close(NoFlush)
		p.opts.Stats.IncCounter(StatConnPoolIdleClosed, nil, 1)
	}
	return len(expired)
}

// Close shuts the pool down, closing every connection it owns.
func (p *connPool) Close() error {
	p.mut.Lock()
	if p.closed {
		p.mut.Unlock()
		return nil
	}
	p.closed = true
	conns := make([]*pooledConn, 0, len(p.byConn))
	for _, pc := range p.byConn {
		conns = append(conns, pc)
	}
	p.idle = nil
	p.byConn = make(map[Connection]*pooledConn)
	p.mut.Unlock()

	p.sweep.Stop()

	var err error
	for _, pc := range conns {
		if cerr := pc.conn.conn.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}
	if p.ownsDispatch {
		p.dispatch.Close()
	}
	return err
}

// pendingConn tracks an in-flight dial. Cancel prevents delivery of the
// ready callback; a connection that completes after cancellation is closed.
type pendingConn struct {
	pool      *connPool
	host      *poolHost
	callbacks PoolCallbacks
	canceled  atomic.Bool
}

func (pd *pendingConn) Cancel() {
	pd.canceled.Store(true)
}

// connect dials on its own goroutine, then posts the outcome to the
// dispatcher so the callbacks run on the event loop. The cancellation check
// happens on the loop, where Cancel is issued from.
func (pd *pendingConn) connect() {
	p := pd.pool
	conn, err := p.dial(pd.host.hostPort, p.opts.ConnectTimeout)
	p.pending.Dec()

	if err != nil {
		p.mut.Lock()
		pd.host.active--
		p.hosts.update(pd.host)
		p.mut.Unlock()

		reason := RemoteConnectionFailure
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			reason = Timeout
		}
		p.dispatch.Post(func() {
			if pd.canceled.Load() {
				return
			}
			p.opts.Stats.IncCounter(StatPoolFailure, nil, 1)
			pd.callbacks.OnPoolFailure(reason, pd.host.hostPort)
		})
		return
	}

	p.dispatch.Post(func() {
		if pd.canceled.Load() || p.isClosed() {
			_ = conn.Close()
			p.mut.Lock()
			pd.host.active--
			p.hosts.update(pd.host)
			p.mut.Unlock()
			return
		}

		pc := &pooledConn{
			pool:       p,
			host:       pd.host,
			checkedOut: true,
		}
		pc.conn = newTCPConnection(conn, p.log, p.dispatch, func() { p.remove(pc.conn) })

		p.mut.Lock()
		p.byConn[pc.conn] = pc
		p.mut.Unlock()
		p.active.Inc()
		pc.conn.start()

		p.opts.Stats.IncCounter(StatConnPoolCheckout, nil, 1)
		pd.callbacks.OnPoolReady(pc)
	})
}

func (p *connPool) isClosed() bool {
	p.mut.Lock()
	closed := p.closed
	p.mut.Unlock()
	return closed
}
