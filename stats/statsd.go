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

package stats

import (
	"time"

	"github.com/cactus/go-statsd-client/statsd"

	"github.com/quayside/thriftproxy"
)

type statsdReporter struct {
	client statsd.Statter
}

// NewStatsdReporter wraps a statsd client as a StatsReporter. The cluster
// tag, when present, is appended to the metric name since plain statsd has
// no tag support.
func NewStatsdReporter(client statsd.Statter) thriftproxy.StatsReporter {
	return &statsdReporter{client: client}
}

func (r *statsdReporter) IncCounter(name string, tags map[string]string, value int64) {
	_ = r.client.Inc(metricName(name, tags), value, 1.0)
}

func (r *statsdReporter) UpdateGauge(name string, tags map[string]string, value int64) {
	_ = r.client.Gauge(metricName(name, tags), value, 1.0)
}

func (r *statsdReporter) RecordTimer(name string, tags map[string]string, d time.Duration) {
	_ = r.client.TimingDuration(metricName(name, tags), d, 1.0)
}

func metricName(name string, tags map[string]string) string {
	if cluster := tags["cluster"]; cluster != "" {
		return name + "." + cluster
	}
	return name
}
