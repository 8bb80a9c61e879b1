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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteMatcherExactMatch(t *testing.T) {
	m := NewRouteMatcher()
	m.Add("getUser", "users")
	m.Add("getOrder", "orders")

	route := m.Route(&MessageMetadata{MethodName: "getUser"})
	require.NotNil(t, route)
	assert.Equal(t, "users", route.RouteEntry().ClusterName())

	route = m.Route(&MessageMetadata{MethodName: "getOrder"})
	require.NotNil(t, route)
	assert.Equal(t, "orders", route.RouteEntry().ClusterName())
}

func TestRouteMatcherNoMatch(t *testing.T) {
	m := NewRouteMatcher()
	m.Add("getUser", "users")

	assert.Nil(t, m.Route(&MessageMetadata{MethodName: "deleteUser"}))
}

func TestRouteMatcherDefault(t *testing.T) {
	m := NewRouteMatcher()
	m.Add("getUser", "users")
	m.SetDefault("fallback")

	route := m.Route(&MessageMetadata{MethodName: "anything"})
	require.NotNil(t, route)
	assert.Equal(t, "fallback", route.RouteEntry().ClusterName())

	// Exact matches still win over the default.
	route = m.Route(&MessageMetadata{MethodName: "getUser"})
	require.NotNil(t, route)
	assert.Equal(t, "users", route.RouteEntry().ClusterName())
}

func TestRouteMatcherReplace(t *testing.T) {
	m := NewRouteMatcher()
	m.Add("getUser", "users")
	m.Add("getUser", "users-v2")

	route := m.Route(&MessageMetadata{MethodName: "getUser"})
	require.NotNil(t, route)
	assert.Equal(t, "users-v2", route.RouteEntry().ClusterName())
}

func TestRouteMatcherEmpty(t *testing.T) {
	m := NewRouteMatcher()
	assert.Nil(t, m.Route(&MessageMetadata{MethodName: "getUser"}))
}
