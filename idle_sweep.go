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
	"time"
)

// idleSweep controls a periodic task that closes idle pooled connections.
// NOTE: This struct is not thread-safe on its own. Calls to Start() and
// Stop() are serialized by the owning pool's lifecycle.
type idleSweep struct {
	pool              *connPool
	maxIdleTime       time.Duration
	idleCheckInterval time.Duration
	stopCh            chan struct{}
	started           bool
}

func newIdleSweep(pool *connPool, maxIdleTime, idleCheckInterval time.Duration) *idleSweep {
	return &idleSweep{
		pool:              pool,
		maxIdleTime:       maxIdleTime,
		idleCheckInterval: idleCheckInterval,
	}
}

// Start runs the goroutine responsible for checking idle connections.
func (is *idleSweep) Start() {
	if is.started || is.idleCheckInterval <= 0 {
		return
	}

	if is.maxIdleTime <= 0 {
		is.pool.log.Warn("To enable automatically closing idle connections, you must " +
			"set both IdleCheckInterval and MaxIdleTime.")
		return
	}

	is.pool.log.WithFields(
		LogField{"idleCheckInterval", is.idleCheckInterval},
		LogField{"maxIdleTime", is.maxIdleTime},
	).Info("Starting idle connections poller.")

	is.stopCh = make(chan struct{})
	is.started = true
	go is.pollerLoop()
}

// Stop kills the poller checking for idle connections.
func (is *idleSweep) Stop() {
	if !is.started {
		return
	}

	is.started = false
	close(is.stopCh)
	is.pool.log.Info("Idle connections poller stopped.")
}

func (is *idleSweep) pollerLoop() {
	ticker := time.NewTicker(is.idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			is.checkIdleConnections()
		case <-is.stopCh:
			return
		}
	}
}

func (is *idleSweep) checkIdleConnections() {
	closed := is.pool.closeIdle(time.Now().Add(-is.maxIdleTime))
	if closed > 0 {
		is.pool.log.WithFields(LogField{"closed", closed}).Debug("Closed idle connections.")
	}
}
