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
	"sync"

	"go.uber.org/multierr"
)

// Cluster describes an upstream cluster known to the cluster manager.
type Cluster interface {
	Name() string

	// MaintenanceMode reports whether the cluster is drained of traffic.
	MaintenanceMode() bool
}

// ClusterManager resolves cluster names to cluster info and connection
// pools.
type ClusterManager interface {
	// Get returns the cluster with the given name, or nil if unknown.
	Get(cluster string) Cluster

	// TCPConnPoolForCluster returns the connection pool for the cluster, or
	// nil if no healthy upstream host is available.
	TCPConnPoolForCluster(cluster string) ConnPool
}

type clusterEntry struct {
	name string

	mut         sync.RWMutex
	maintenance bool
	hosts       []string
	pool        *connPool
}

func (c *clusterEntry) Name() string { return c.name }

func (c *clusterEntry) MaintenanceMode() bool {
	c.mut.RLock()
	m := c.maintenance
	c.mut.RUnlock()
	return m
}

// ClusterRegistry is a ClusterManager over a static set of clusters, each
// owning one connection pool. All pools share one Dispatcher, modeling the
// worker they run on.
type ClusterRegistry struct {
	mut      sync.RWMutex
	clusters map[string]*clusterEntry

	poolOpts     ConnPoolOptions
	dispatch     *Dispatcher
	ownsDispatch bool
}

// NewClusterRegistry creates an empty registry. Pool options apply to every
// cluster's pool.
func NewClusterRegistry(poolOpts *ConnPoolOptions) *ClusterRegistry {
	r := &ClusterRegistry{
		clusters: make(map[string]*clusterEntry),
		poolOpts: poolOpts.withDefaults(),
	}
	r.dispatch = r.poolOpts.Dispatcher
	if r.dispatch == nil {
		r.dispatch = NewDispatcher()
		r.ownsDispatch = true
		r.poolOpts.Dispatcher = r.dispatch
	}
	return r
}

// Dispatcher returns the event loop shared by the registry's pools; routers
// served by these pools must be driven from it.
func (r *ClusterRegistry) Dispatcher() *Dispatcher {
	return r.dispatch
}

// AddCluster registers a cluster with its upstream hosts, replacing any
// existing cluster of the same name.
func (r *ClusterRegistry) AddCluster(name string, hostPorts []string) {
	entry := &clusterEntry{
		name:  name,
		hosts: hostPorts,
	}
	if len(hostPorts) > 0 {
		opts := r.poolOpts
		entry.pool = newConnPool(hostPorts, &opts)
	}

	r.mut.Lock()
	old := r.clusters[name]
	r.clusters[name] = entry
	r.mut.Unlock()

	if old != nil && old.pool != nil {
		_ = old.pool.Close()
	}
}

// SetMaintenanceMode marks a cluster as drained or active.
func (r *ClusterRegistry) SetMaintenanceMode(name string, maintenance bool) {
	r.mut.RLock()
	entry := r.clusters[name]
	r.mut.RUnlock()

	if entry == nil {
		return
	}
	entry.mut.Lock()
	entry.maintenance = maintenance
	entry.mut.Unlock()
}

// Get returns the cluster with the given name, or nil if unknown.
func (r *ClusterRegistry) Get(cluster string) Cluster {
	r.mut.RLock()
	entry := r.clusters[cluster]
	r.mut.RUnlock()

	if entry == nil {
		return nil
	}
	return entry
}

// TCPConnPoolForCluster returns the cluster's pool, or nil when the cluster
// is unknown or has no hosts to connect to.
func (r *ClusterRegistry) TCPConnPoolForCluster(cluster string) ConnPool {
	r.mut.RLock()
	entry := r.clusters[cluster]
	r.mut.RUnlock()

	if entry == nil || entry.pool == nil {
		return nil
	}
	return entry.pool
}

// Close shuts down every cluster's pool.
func (r *ClusterRegistry) Close() error {
	r.mut.Lock()
	clusters := r.clusters
	r.clusters = make(map[string]*clusterEntry)
	r.mut.Unlock()

	var err error
	for _, entry := range clusters {
		if entry.pool != nil {
			err = multierr.Append(err, entry.pool.Close())
		}
	}
	if r.ownsDispatch {
		r.dispatch.Close()
	}
	return err
}
