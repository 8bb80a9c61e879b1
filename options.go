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
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// RouteConfig maps one Thrift method to a cluster.
type RouteConfig struct {
	Method  string `yaml:"method"`
	Cluster string `yaml:"cluster"`
}

// ClusterConfig declares a cluster and its upstream hosts.
type ClusterConfig struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
}

// PoolConfig tunes the per-cluster connection pools.
type PoolConfig struct {
	MaxConnections    int           `yaml:"maxConnections"`
	ConnectTimeout    time.Duration `yaml:"connectTimeout"`
	MaxIdleTime       time.Duration `yaml:"maxIdleTime"`
	IdleCheckInterval time.Duration `yaml:"idleCheckInterval"`
}

// ProxyOptions is the proxy's static configuration.
type ProxyOptions struct {
	Routes         []RouteConfig   `yaml:"routes"`
	DefaultCluster string          `yaml:"defaultCluster"`
	Clusters       []ClusterConfig `yaml:"clusters"`
	Pool           PoolConfig      `yaml:"pool"`
}

// LoadProxyOptions parses and validates yaml configuration.
func LoadProxyOptions(data []byte) (*ProxyOptions, error) {
	var opts ProxyOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parse proxy options: %v", err)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (o *ProxyOptions) validate() error {
	known := make(map[string]struct{}, len(o.Clusters))
	for _, c := range o.Clusters {
		if c.Name == "" {
			return fmt.Errorf("cluster with empty name")
		}
		if _, ok := known[c.Name]; ok {
			return fmt.Errorf("duplicate cluster %q", c.Name)
		}
		known[c.Name] = struct{}{}
	}
	for _, r := range o.Routes {
		if r.Method == "" {
			return fmt.Errorf("route with empty method")
		}
		if _, ok := known[r.Cluster]; !ok {
			return fmt.Errorf("route %q references unknown cluster %q", r.Method, r.Cluster)
		}
	}
	if o.DefaultCluster != "" {
		if _, ok := known[o.DefaultCluster]; !ok {
			return fmt.Errorf("default cluster %q is not declared", o.DefaultCluster)
		}
	}
	return nil
}

// BuildRouteMatcher creates the route table described by the options.
func (o *ProxyOptions) BuildRouteMatcher() *RouteMatcher {
	m := NewRouteMatcher()
	for _, r := range o.Routes {
		m.Add(r.Method, r.Cluster)
	}
	if o.DefaultCluster != "" {
		m.SetDefault(o.DefaultCluster)
	}
	return m
}

// BuildClusterRegistry creates the cluster registry described by the
// options.
func (o *ProxyOptions) BuildClusterRegistry(log Logger, stats StatsReporter) *ClusterRegistry {
	poolOpts := ConnPoolOptions{
		MaxConnections:    o.Pool.MaxConnections,
		ConnectTimeout:    o.Pool.ConnectTimeout,
		MaxIdleTime:       o.Pool.MaxIdleTime,
		IdleCheckInterval: o.Pool.IdleCheckInterval,
		Logger:            log,
		Stats:             stats,
	}
	registry := NewClusterRegistry(&poolOpts)
	for _, c := range o.Clusters {
		registry.AddCluster(c.Name, c.Hosts)
	}
	return registry
}
