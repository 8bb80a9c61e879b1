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

// RuntimeState is a snapshot of the proxy's upstream state.
// Note: this is purely for debugging and monitoring, and may slow down the
// data path while the snapshot is taken.
type RuntimeState struct {
	Clusters map[string]ClusterRuntimeState `json:"clusters"`
}

// ClusterRuntimeState is the runtime state of a single cluster.
type ClusterRuntimeState struct {
	Name            string           `json:"name"`
	MaintenanceMode bool             `json:"maintenanceMode"`
	Pool            PoolRuntimeState `json:"pool"`
}

// PoolRuntimeState is the runtime state of a cluster's connection pool.
type PoolRuntimeState struct {
	ActiveConnections  int32              `json:"activeConnections"`
	PendingConnections int32              `json:"pendingConnections"`
	IdleConnections    int                `json:"idleConnections"`
	Hosts              []HostRuntimeState `json:"hosts"`
}

// HostRuntimeState is the runtime state of a single upstream host.
type HostRuntimeState struct {
	HostPort          string `json:"hostPort"`
	ActiveConnections int    `json:"activeConnections"`
}

// IntrospectState returns the RuntimeState for all registered clusters.
func (r *ClusterRegistry) IntrospectState() *RuntimeState {
	r.mut.RLock()
	entries := make([]*clusterEntry, 0, len(r.clusters))
	for _, entry := range r.clusters {
		entries = append(entries, entry)
	}
	r.mut.RUnlock()

	state := &RuntimeState{Clusters: make(map[string]ClusterRuntimeState, len(entries))}
	for _, entry := range entries {
		cs := ClusterRuntimeState{
			Name:            entry.name,
			MaintenanceMode: entry.MaintenanceMode(),
		}
		if entry.pool != nil {
			cs.Pool = entry.pool.introspectState()
		}
		state.Clusters[entry.name] = cs
	}
	return state
}

func (p *connPool) introspectState() PoolRuntimeState {
	p.mut.Lock()
	state := PoolRuntimeState{
		ActiveConnections:  p.active.Load(),
		PendingConnections: p.pending.Load(),
		IdleConnections:    len(p.idle),
		Hosts:              make([]HostRuntimeState, 0, p.hosts.Len()),
	}
	for _, host := range p.hosts {
		state.Hosts = append(state.Hosts, HostRuntimeState{
			HostPort:          host.hostPort,
			ActiveConnections: host.active,
		})
	}
	p.mut.Unlock()
	return state
}
