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

import "time"

// Counter names emitted by the router and the connection pool. Reporters
// receive these with a "cluster" tag where one applies.
const (
	StatRouteMissing        = "route.missing"
	StatClusterUnknown      = "cluster.unknown"
	StatClusterMaintenance  = "cluster.maintenance"
	StatNoHealthyUpstream   = "upstream.no_healthy"
	StatPoolFailure         = "upstream.pool_failure"
	StatPoolOverflow        = "upstream.pool_overflow"
	StatUpgradeStarted      = "upstream.upgrade_started"
	StatUpgradeCompleted    = "upstream.upgrade_completed"
	StatRequestCall         = "request.call"
	StatRequestOneway       = "request.oneway"
	StatResponseComplete    = "response.complete"
	StatResponseTruncated   = "response.truncated"
	StatUpstreamConnFailure = "upstream.connection_failure"
	StatDownstreamReset     = "downstream.reset"
	StatConnPoolCheckout    = "connpool.checkout"
	StatConnPoolRelease     = "connpool.release"
	StatConnPoolIdleClosed  = "connpool.idle_closed"
)

// StatsReporter is a sink for proxy metrics.
type StatsReporter interface {
	IncCounter(name string, tags map[string]string, value int64)
	UpdateGauge(name string, tags map[string]string, value int64)
	RecordTimer(name string, tags map[string]string, d time.Duration)
}

// SimpleStatsReporter is a no-op StatsReporter.
var SimpleStatsReporter StatsReporter = simpleStatsReporter{}

type simpleStatsReporter struct{}

func (simpleStatsReporter) IncCounter(string, map[string]string, int64)          {}
func (simpleStatsReporter) UpdateGauge(string, map[string]string, int64)         {}
func (simpleStatsReporter) RecordTimer(string, map[string]string, time.Duration) {}

func clusterTags(cluster string) map[string]string {
	if cluster == "" {
		return nil
	}
	return map[string]string{"cluster": cluster}
}
