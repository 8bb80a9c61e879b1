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

// RouteEntry resolves a matched message to an upstream cluster. Opaque to
// the router beyond ClusterName.
type RouteEntry interface {
	ClusterName() string
}

// Route is the result of route matching. RouteEntry may return nil when the
// route carries no usable entry.
type Route interface {
	RouteEntry() RouteEntry
}

type routeEntry struct {
	cluster string
}

func (e *routeEntry) ClusterName() string    { return e.cluster }
func (e *routeEntry) RouteEntry() RouteEntry { return e }

// RouteMatcher maps Thrift method names to upstream clusters. An optional
// default cluster catches methods with no exact match.
type RouteMatcher struct {
	sync.RWMutex

	routes       map[string]*routeEntry
	defaultRoute *routeEntry
}

// NewRouteMatcher creates an empty RouteMatcher.
func NewRouteMatcher() *RouteMatcher {
	return &RouteMatcher{}
}

// Add registers a method to cluster mapping, replacing any existing mapping
// for the method.
func (m *RouteMatcher) Add(method, cluster string) {
	m.Lock()
	defer m.Unlock()

	if m.routes == nil {
		m.routes = make(map[string]*routeEntry)
	}
	m.routes[method] = &routeEntry{cluster: cluster}
}

// SetDefault registers the catch-all cluster for unmatched methods.
func (m *RouteMatcher) SetDefault(cluster string) {
	m.Lock()
	m.defaultRoute = &routeEntry{cluster: cluster}
	m.Unlock()
}

// Route returns the route for the message, or nil if no mapping matches.
func (m *RouteMatcher) Route(metadata *MessageMetadata) Route {
	m.RLock()
	defer m.RUnlock()

	if e, ok := m.routes[metadata.MethodName]; ok {
		return e
	}
	if m.defaultRoute != nil {
		return m.defaultRoute
	}
	return nil
}
