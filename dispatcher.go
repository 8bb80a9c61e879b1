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

import "sync"

const _dispatcherBacklog = 1024

// Dispatcher is the per-worker event loop the routers run in. Pool dials
// and connection reads complete on their own goroutines; their callbacks are
// posted here so that all router state is mutated from a single goroutine,
// without locks. Synchronous callbacks (idle reuse, overflow) run inline,
// since their caller is already on the loop.
type Dispatcher struct {
	mut    sync.Mutex
	events chan func()
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher and starts its event loop.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		events: make(chan func(), _dispatcherBacklog),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

// Post enqueues f to run on the dispatch goroutine. Events posted after
// Close are dropped.
func (d *Dispatcher) Post(f func()) {
	d.mut.Lock()
	if d.closed {
		d.mut.Unlock()
		return
	}
	d.events <- f
	d.mut.Unlock()
}

// Close drains queued events and stops the loop. Must not be called from
// the dispatch goroutine itself.
func (d *Dispatcher) Close() {
	d.mut.Lock()
	if d.closed {
		d.mut.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mut.Unlock()

	<-d.done
}

func (d *Dispatcher) loop() {
	for f := range d.events {
		f()
	}
	close(d.done)
}
