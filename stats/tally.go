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

// Package stats provides StatsReporter implementations over common metrics
// backends.
package stats

import (
	"sync"
	"time"

	"github.com/uber-go/tally"

	"github.com/quayside/thriftproxy"
)

type wrapper struct {
	sync.RWMutex

	scope     tally.Scope
	byCluster map[string]*taggedScope
}

type taggedScope struct {
	sync.RWMutex

	scope tally.Scope // already tagged with the cluster

	counters map[string]tally.Counter
	gauges   map[string]tally.Gauge
	timers   map[string]tally.Timer
}

// NewTallyReporter takes a tally.Scope and wraps it so it can be used as a
// StatsReporter. Metrics carrying a "cluster" tag are emitted on a
// cluster-tagged sub-scope.
func NewTallyReporter(scope tally.Scope) thriftproxy.StatsReporter {
	return &wrapper{
		scope:     scope,
		byCluster: make(map[string]*taggedScope),
	}
}

func (w *wrapper) IncCounter(name string, tags map[string]string, value int64) {
	ts := w.getTaggedScope(tags)
	ts.getCounter(name).Inc(value)
}

func (w *wrapper) UpdateGauge(name string, tags map[string]string, value int64) {
	ts := w.getTaggedScope(tags)
	ts.getGauge(name).Update(float64(value))
}

func (w *wrapper) RecordTimer(name string, tags map[string]string, d time.Duration) {
	ts := w.getTaggedScope(tags)
	ts.getTimer(name).Record(d)
}

func (w *wrapper) getTaggedScope(tags map[string]string) *taggedScope {
	cluster := tags["cluster"]

	w.RLock()
	ts, ok := w.byCluster[cluster]
	w.RUnlock()
	if ok {
		return ts
	}

	w.Lock()
	defer w.Unlock()

	// Always double-check under the write-lock.
	if ts, ok := w.byCluster[cluster]; ok {
		return ts
	}

	scope := w.scope
	if cluster != "" {
		scope = scope.Tagged(map[string]string{"cluster": cluster})
	}
	ts = &taggedScope{
		scope:    scope,
		counters: make(map[string]tally.Counter),
		gauges:   make(map[string]tally.Gauge),
		timers:   make(map[string]tally.Timer),
	}
	w.byCluster[cluster] = ts
	return ts
}

func (ts *taggedScope) getCounter(name string) tally.Counter {
	ts.RLock()
	c, ok := ts.counters[name]
	ts.RUnlock()
	if ok {
		return c
	}

	ts.Lock()
	defer ts.Unlock()

	if c, ok := ts.counters[name]; ok {
		return c
	}
	c = ts.scope.Counter(name)
	ts.counters[name] = c
	return c
}

func (ts *taggedScope) getGauge(name string) tally.Gauge {
	ts.RLock()
	g, ok := ts.gauges[name]
	ts.RUnlock()
	if ok {
		return g
	}

	ts.Lock()
	defer ts.Unlock()

	if g, ok := ts.gauges[name]; ok {
		return g
	}
	g = ts.scope.Gauge(name)
	ts.gauges[name] = g
	return g
}

func (ts *taggedScope) getTimer(name string) tally.Timer {
	ts.RLock()
	t, ok := ts.timers[name]
	ts.RUnlock()
	if ok {
		return t
	}

	ts.Lock()
	defer ts.Unlock()

	if t, ok := ts.timers[name]; ok {
		return t
	}
	t = ts.scope.Timer(name)
	ts.timers[name] = t
	return t
}
