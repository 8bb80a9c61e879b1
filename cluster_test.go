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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterRegistryMaintenanceMode(t *testing.T) {
	registry := NewClusterRegistry(nil)
	defer registry.Close()

	registry.AddCluster("users", nil)

	cluster := registry.Get("users")
	require.NotNil(t, cluster)
	assert.Equal(t, "users", cluster.Name())
	assert.False(t, cluster.MaintenanceMode())

	registry.SetMaintenanceMode("users", true)
	assert.True(t, registry.Get("users").MaintenanceMode())

	registry.SetMaintenanceMode("users", false)
	assert.False(t, registry.Get("users").MaintenanceMode())

	// Unknown clusters are a no-op.
	registry.SetMaintenanceMode("nowhere", true)
}

func TestClusterRegistryReplaceCluster(t *testing.T) {
	registry := NewClusterRegistry(nil)
	defer registry.Close()

	registry.AddCluster("users", []string{"127.0.0.1:9090"})
	first := registry.TCPConnPoolForCluster("users")
	require.NotNil(t, first)

	registry.AddCluster("users", []string{"127.0.0.1:9091"})
	second := registry.TCPConnPoolForCluster("users")
	require.NotNil(t, second)
	assert.NotEqual(t, first, second)
}

func TestIntrospectState(t *testing.T) {
	registry := NewClusterRegistry(nil)
	defer registry.Close()

	registry.AddCluster("users", []string{"127.0.0.1:9090", "127.0.0.1:9091"})
	registry.AddCluster("empty", nil)
	registry.SetMaintenanceMode("empty", true)

	state := registry.IntrospectState()
	require.Len(t, state.Clusters, 2)

	users := state.Clusters["users"]
	assert.Equal(t, "users", users.Name)
	assert.False(t, users.MaintenanceMode)
	assert.Len(t, users.Pool.Hosts, 2)
	assert.Zero(t, users.Pool.ActiveConnections)

	empty := state.Clusters["empty"]
	assert.True(t, empty.MaintenanceMode)

	// The snapshot must serialize cleanly for debug endpoints.
	_, err := json.Marshal(state)
	assert.NoError(t, err)
}
