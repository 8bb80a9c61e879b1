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
	"bytes"

	"github.com/opentracing/opentracing-go"
)

var (
	_ DecoderFilter     = (*Router)(nil)
	_ UpstreamCallbacks = (*Router)(nil)
	_ PoolCallbacks     = (*Router)(nil)
)

// releasePolicy determines when the upstream connection goes back to the
// pool: after the request is written (oneway) or after the response has been
// fully parsed (call).
type releasePolicy int

const (
	releaseAfterWrite releasePolicy = iota
	releaseAfterResponse
)

// RouterOptions configures a Router. The zero value is usable.
type RouterOptions struct {
	// TransportFactory and ProtocolFactory build the upstream codec.
	// Defaults to NewTransport and NewProtocol.
	TransportFactory TransportFactory
	ProtocolFactory  ProtocolFactory

	Logger Logger
	Stats  StatsReporter

	// Tracer, when set, records one span per routed request.
	Tracer opentracing.Tracer
}

func (o *RouterOptions) withDefaults() RouterOptions {
	opts := RouterOptions{}
	if o != nil {
		opts = *o
	}
	if opts.TransportFactory == nil {
		opts.TransportFactory = NewTransport
	}
	if opts.ProtocolFactory == nil {
		opts.ProtocolFactory = NewProtocol
	}
	if opts.Logger == nil {
		opts.Logger = NullLogger
	}
	if opts.Stats == nil {
		opts.Stats = SimpleStatsReporter
	}
	return opts
}

// Router is the Thrift request routing filter. It receives the decoded
// downstream event stream, selects an upstream cluster per message, encodes
// the message onto a pooled connection, and feeds the response back to the
// downstream decoder.
//
// A Router handles at most one in-flight upstream request and holds no
// locks: it must be driven from its worker's Dispatcher goroutine. The pool
// and upstream connections post their asynchronous completions back onto
// that Dispatcher, so decoder, pool, and upstream read callbacks all run on
// the same event loop.
type Router struct {
	clusterManager ClusterManager
	log            Logger
	stats          StatsReporter
	tracer         opentracing.Tracer
	transports     TransportFactory
	protocols      ProtocolFactory
	buffers        *bufferPool

	callbacks      DecoderFilterCallbacks
	metadata       *MessageMetadata
	upstream       *upstreamRequest
	localReplySent bool
	span           opentracing.Span
}

// NewRouter creates a router over the given cluster manager.
func NewRouter(clusterManager ClusterManager, opts *RouterOptions) *Router {
	o := opts.withDefaults()
	return &Router{
		clusterManager: clusterManager,
		log:            o.Logger,
		stats:          o.Stats,
		tracer:         o.Tracer,
		transports:     o.TransportFactory,
		protocols:      o.ProtocolFactory,
		buffers:        newBufferPool(),
	}
}

// SetDecoderFilterCallbacks implements DecoderFilter.
func (r *Router) SetDecoderFilterCallbacks(callbacks DecoderFilterCallbacks) {
	r.callbacks = callbacks
}

// DownstreamConnection returns the downstream connection once callbacks are
// installed.
func (r *Router) DownstreamConnection() Connection {
	if r.callbacks == nil {
		return nil
	}
	return r.callbacks.Connection()
}

// ComputeHashKey returns the consistent-hashing key for the current request.
// Not implemented; reserved for load-balancer integration.
func (r *Router) ComputeHashKey() (uint64, bool) {
	return 0, false
}

// MetadataMatchCriteria returns subset load-balancing criteria. Not
// implemented; reserved for load-balancer integration.
func (r *Router) MetadataMatchCriteria() interface{} {
	return nil
}

// DownstreamHeaders returns the downstream request headers. Not implemented;
// reserved for load-balancer integration.
func (r *Router) DownstreamHeaders() map[string]string {
	return nil
}

// OnDestroy implements DecoderFilter. Pending pool acquisitions are
// canceled; a held connection is closed without returning it to the pool.
func (r *Router) OnDestroy() {
	if ur := r.upstream; ur != nil {
		if ur.handle != nil {
			ur.handle.Cancel()
			ur.handle = nil
		}
		if ur.conn != nil && !ur.released {
			conn := ur.conn
			ur.conn = nil
			ur.connData = nil
			conn.Close(NoFlush)
		}
		ur.releaseBuffer()
		r.upstream = nil
	}
	r.finishSpan()
}

// ResetUpstreamConnection closes the upstream connection immediately,
// without returning it to the pool. Used by the downstream filter chain when
// the response can no longer be delivered.
func (r *Router) ResetUpstreamConnection() {
	ur := r.upstream
	if ur == nil {
		return
	}
	if ur.handle != nil {
		ur.handle.Cancel()
		ur.handle = nil
	}
	if ur.conn != nil && !ur.released {
		conn := ur.conn
		ur.conn = nil
		ur.connData = nil
		conn.Close(NoFlush)
	}
}

// TransportBegin implements DecoderEventHandler.
func (r *Router) TransportBegin(*MessageMetadata) FilterStatus {
	return Continue
}

// TransportEnd implements DecoderEventHandler.
func (r *Router) TransportEnd() FilterStatus {
	return Continue
}

// MessageBegin resolves the route and cluster for the message and requests
// an upstream connection. It is the only callback that may suspend the
// decoder for an extended period.
func (r *Router) MessageBegin(metadata *MessageMetadata) FilterStatus {
	r.metadata = metadata

	route := r.callbacks.Route()
	if route == nil || route.RouteEntry() == nil {
		r.stats.IncCounter(StatRouteMissing, nil, 1)
		r.log.WithFields(LogField{"method", metadata.MethodName}).Debug("No route for method.")
		r.sendLocalReply(NewAppException(AppExceptionUnknownMethod,
			"no route for method '%s'", metadata.MethodName))
		return StopIteration
	}

	clusterName := route.RouteEntry().ClusterName()
	cluster := r.clusterManager.Get(clusterName)
	if cluster == nil {
		r.stats.IncCounter(StatClusterUnknown, clusterTags(clusterName), 1)
		r.sendLocalReply(NewAppException(AppExceptionInternalError,
			"unknown cluster '%s'", clusterName))
		return StopIteration
	}
	if cluster.MaintenanceMode() {
		r.stats.IncCounter(StatClusterMaintenance, clusterTags(clusterName), 1)
		r.sendLocalReply(NewAppException(AppExceptionInternalError,
			"maintenance mode for cluster '%s'", clusterName))
		return StopIteration
	}

	pool := r.clusterManager.TCPConnPoolForCluster(clusterName)
	if pool == nil {
		r.stats.IncCounter(StatNoHealthyUpstream, clusterTags(clusterName), 1)
		r.sendLocalReply(NewAppException(AppExceptionInternalError,
			"no healthy upstream for '%s'", clusterName))
		return StopIteration
	}

	transport, err := r.transports(r.callbacks.DownstreamTransportType())
	if err != nil {
		r.sendLocalReply(NewAppException(AppExceptionInternalError, "%v", err))
		return StopIteration
	}
	proto, err := r.protocols(r.callbacks.DownstreamProtocolType())
	if err != nil {
		r.sendLocalReply(NewAppException(AppExceptionInternalError, "%v", err))
		return StopIteration
	}

	if metadata.MessageType == MessageTypeOneway {
		r.stats.IncCounter(StatRequestOneway, clusterTags(clusterName), 1)
	} else {
		r.stats.IncCounter(StatRequestCall, clusterTags(clusterName), 1)
	}
	r.startSpan(metadata, clusterName)

	r.upstream = newUpstreamRequest(r, pool, clusterName, metadata, transport, proto)
	return r.upstream.start()
}

// MessageEnd finishes the upstream encoding, frames the message, and writes
// it to the upstream connection.
func (r *Router) MessageEnd() FilterStatus {
	ur := r.upstream

	ur.protocol.WriteMessageEnd(ur.buffer)

	out := r.buffers.Get()
	ur.transport.EncodeFrame(out, ur.metadata, ur.buffer)
	ur.conn.Write(out, false)
	r.buffers.Release(out)

	ur.requestComplete = true
	if ur.releaseAt == releaseAfterWrite {
		ur.releaseConnection()
		r.finishSpan()
	}
	return Continue
}

// StructBegin implements DecoderEventHandler.
func (r *Router) StructBegin(name string) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteStructBegin(ur.buffer, name)
	return Continue
}

// StructEnd emits the terminating stop field before closing the struct.
func (r *Router) StructEnd() FilterStatus {
	ur := r.upstream
	ur.protocol.WriteFieldBegin(ur.buffer, "", FieldTypeStop, 0)
	ur.protocol.WriteStructEnd(ur.buffer)
	return Continue
}

// FieldBegin implements DecoderEventHandler.
func (r *Router) FieldBegin(name string, fieldType FieldType, fieldID int16) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteFieldBegin(ur.buffer, name, fieldType, fieldID)
	return Continue
}

// FieldEnd implements DecoderEventHandler.
func (r *Router) FieldEnd() FilterStatus {
	ur := r.upstream
	ur.protocol.WriteFieldEnd(ur.buffer)
	return Continue
}

// MapBegin implements DecoderEventHandler.
func (r *Router) MapBegin(keyType, valueType FieldType, size int) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteMapBegin(ur.buffer, keyType, valueType, size)
	return Continue
}

// MapEnd implements DecoderEventHandler.
func (r *Router) MapEnd() FilterStatus {
	ur := r.upstream
	ur.protocol.WriteMapEnd(ur.buffer)
	return Continue
}

// ListBegin implements DecoderEventHandler.
func (r *Router) ListBegin(elemType FieldType, size int) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteListBegin(ur.buffer, elemType, size)
	return Continue
}

// ListEnd implements DecoderEventHandler.
func (r *Router) ListEnd() FilterStatus {
	ur := r.upstream
	ur.protocol.WriteListEnd(ur.buffer)
	return Continue
}

// SetBegin implements DecoderEventHandler.
func (r *Router) SetBegin(elemType FieldType, size int) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteSetBegin(ur.buffer, elemType, size)
	return Continue
}

// SetEnd implements DecoderEventHandler.
func (r *Router) SetEnd() FilterStatus {
	ur := r.upstream
	ur.protocol.WriteSetEnd(ur.buffer)
	return Continue
}

// BoolValue implements DecoderEventHandler.
func (r *Router) BoolValue(value bool) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteBool(ur.buffer, value)
	return Continue
}

// ByteValue implements DecoderEventHandler.
func (r *Router) ByteValue(value int8) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteByte(ur.buffer, value)
	return Continue
}

// Int16Value implements DecoderEventHandler.
func (r *Router) Int16Value(value int16) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteInt16(ur.buffer, value)
	return Continue
}

// Int32Value implements DecoderEventHandler.
func (r *Router) Int32Value(value int32) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteInt32(ur.buffer, value)
	return Continue
}

// Int64Value implements DecoderEventHandler.
func (r *Router) Int64Value(value int64) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteInt64(ur.buffer, value)
	return Continue
}

// DoubleValue implements DecoderEventHandler.
func (r *Router) DoubleValue(value float64) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteDouble(ur.buffer, value)
	return Continue
}

// StringValue implements DecoderEventHandler.
func (r *Router) StringValue(value string) FilterStatus {
	ur := r.upstream
	ur.protocol.WriteString(ur.buffer, value)
	return Continue
}

// OnUpstreamData implements UpstreamCallbacks. During an upgrade the bytes
// feed the upgrade parser; afterwards they feed the downstream response
// decoder until a complete reply has been parsed.
func (r *Router) OnUpstreamData(buf *bytes.Buffer, endStream bool) {
	ur := r.upstream
	if ur == nil || ur.released || ur.responseComplete {
		return
	}

	if ur.upgradeResponse != nil {
		if ur.upgradeResponse.OnData(buf) {
			ur.protocol.CompleteUpgrade(ur.connState, ur.upgradeResponse)
			ur.upgradeResponse = nil
			r.stats.IncCounter(StatUpgradeCompleted, clusterTags(ur.clusterName), 1)
			ur.onRequestStart()
		}
		return
	}

	if !ur.responseStarted {
		r.callbacks.StartUpstreamResponse(ur.transport, ur.protocol)
		ur.responseStarted = true
	}

	if r.callbacks.UpstreamData(buf) {
		ur.onResponseComplete()
		return
	}

	if endStream {
		// The upstream half-closed with a partial reply buffered. Some of
		// it may already have reached the client, so there is no safe way
		// to deliver an exception instead.
		r.stats.IncCounter(StatResponseTruncated, clusterTags(ur.clusterName), 1)
		ur.responseComplete = true
		ur.releaseConnection()
		r.callbacks.ResetDownstreamConnection()
		r.finishSpan()
	}
}

// OnEvent implements UpstreamCallbacks. Close events after the response has
// completed are benign; earlier ones terminate the request.
func (r *Router) OnEvent(event ConnectionEvent) {
	if event == Connected {
		return
	}

	ur := r.upstream
	if ur == nil || ur.released || ur.responseComplete || ur.conn == nil {
		return
	}

	// The connection is gone; it can be neither released nor closed again.
	ur.conn = nil
	ur.connData = nil
	ur.upgradeResponse = nil
	ur.responseComplete = true

	r.stats.IncCounter(StatUpstreamConnFailure, clusterTags(ur.clusterName), 1)
	r.log.WithFields(
		LogField{"cluster", ur.clusterName},
		LogField{"event", event},
	).Warn("Upstream connection closed mid-request.")
	r.onFailure(NewAppException(AppExceptionInternalError, "connection failure"))
}

// OnPoolReady implements PoolCallbacks.
func (r *Router) OnPoolReady(data ConnectionData) {
	ur := r.upstream
	ur.handle = nil
	ur.connData = data
	ur.conn = data.Connection()
	data.AddUpstreamCallbacks(r)

	if ur.protocol.SupportsUpgrade() {
		state := data.ConnectionState()
		if state == nil {
			state = NewThriftConnectionState()
			data.SetConnectionState(state)
		}
		ur.connState = state

		buf := r.buffers.Get()
		ur.upgradeResponse = ur.protocol.AttemptUpgrade(ur.transport, state, buf)
		if ur.upgradeResponse != nil {
			r.stats.IncCounter(StatUpgradeStarted, clusterTags(ur.clusterName), 1)
			ur.conn.Write(buf, false)
			r.buffers.Release(buf)
			return
		}
		r.buffers.Release(buf)
	}

	ur.onRequestStart()
}

// OnPoolFailure implements PoolCallbacks.
func (r *Router) OnPoolFailure(reason PoolFailureReason, hostPort string) {
	ur := r.upstream
	ur.handle = nil
	ur.failed = true

	r.log.WithFields(
		LogField{"cluster", ur.clusterName},
		LogField{"reason", reason},
		LogField{"hostPort", hostPort},
	).Warn("Upstream connection pool failure.")

	switch reason {
	case Overflow:
		r.onFailure(NewAppException(AppExceptionInternalError, "too many connections"))
	default:
		r.onFailure(NewAppException(AppExceptionInternalError, "connection failure"))
	}
}

// onFailure surfaces a terminal request failure downstream. Calls get an
// application exception; oneways have no reply channel, so the only signal
// is dropping the downstream connection.
func (r *Router) onFailure(ex *AppException) {
	if r.metadata != nil && r.metadata.MessageType == MessageTypeOneway {
		r.stats.IncCounter(StatDownstreamReset, nil, 1)
		r.callbacks.ResetDownstreamConnection()
	} else {
		r.sendLocalReply(ex)
	}
	r.finishSpan()
}

func (r *Router) sendLocalReply(ex *AppException) {
	if r.localReplySent {
		return
	}
	r.localReplySent = true
	r.callbacks.SendLocalReply(ex)
}

func (r *Router) startSpan(metadata *MessageMetadata, clusterName string) {
	if r.tracer == nil {
		return
	}
	r.span = r.tracer.StartSpan(metadata.MethodName)
	r.span.SetTag("cluster", clusterName)
	r.span.SetTag("message.type", metadata.MessageType.String())
}

func (r *Router) finishSpan() {
	if r.span != nil {
		r.span.Finish()
		r.span = nil
	}
}

// upstreamRequest owns a single in-flight upstream interaction: the pool
// handle while acquisition is pending, then the connection, the encoder
// buffer, and the upgrade state.
type upstreamRequest struct {
	router      *Router
	pool        ConnPool
	clusterName string
	metadata    *MessageMetadata
	transport   Transport
	protocol    Protocol

	buffer *bytes.Buffer

	handle          CancelHandle
	connData        ConnectionData
	conn            Connection
	connState       *ThriftConnectionState
	upgradeResponse ThriftObject

	releaseAt        releasePolicy
	starting         bool
	failed           bool
	requestComplete  bool
	responseStarted  bool
	responseComplete bool
	released         bool
}

func newUpstreamRequest(r *Router, pool ConnPool, clusterName string, metadata *MessageMetadata,
	transport Transport, protocol Protocol) *upstreamRequest {
	releaseAt := releaseAfterResponse
	if metadata.MessageType == MessageTypeOneway {
		releaseAt = releaseAfterWrite
	}
	return &upstreamRequest{
		router:      r,
		pool:        pool,
		clusterName: clusterName,
		metadata:    metadata,
		transport:   transport,
		protocol:    protocol,
		buffer:      r.buffers.Get(),
		releaseAt:   releaseAt,
	}
}

// start requests a pooled connection. The pool may complete synchronously,
// in which case the decoder is never suspended.
func (ur *upstreamRequest) start() FilterStatus {
	ur.starting = true
	handle := ur.pool.NewConnection(ur.router)
	ur.starting = false

	if handle != nil {
		ur.handle = handle
		return StopIteration
	}
	if ur.failed || ur.upgradeResponse != nil {
		return StopIteration
	}
	return Continue
}

// onRequestStart begins encoding the user message once the connection is
// usable (pool ready and any upgrade finished). If the decoder was
// suspended, it is resumed.
func (ur *upstreamRequest) onRequestStart() {
	ur.protocol.WriteMessageBegin(ur.buffer, ur.metadata)
	if !ur.starting {
		ur.router.callbacks.ContinueDecoding()
	}
}

func (ur *upstreamRequest) onResponseComplete() {
	ur.responseComplete = true
	ur.router.stats.IncCounter(StatResponseComplete, clusterTags(ur.clusterName), 1)
	ur.releaseConnection()
	ur.router.finishSpan()
}

// releaseConnection returns the connection to the pool exactly once; a
// connection that was reset or lost is never released.
func (ur *upstreamRequest) releaseConnection() {
	if ur.conn == nil || ur.released {
		return
	}
	ur.released = true
	conn := ur.conn
	ur.conn = nil
	ur.connData = nil
	ur.pool.Released(conn)
}

func (ur *upstreamRequest) releaseBuffer() {
	ur.router.buffers.Release(ur.buffer)
	ur.buffer = nil
}
