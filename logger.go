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

import "go.uber.org/zap"

// LogField is a single key-value pair attached to a log line.
type LogField struct {
	Key   string
	Value interface{}
}

// ErrField wraps an error as a LogField named "error".
func ErrField(err error) LogField {
	return LogField{"error", err}
}

// Logger is the logging interface used throughout the proxy. It mirrors the
// levels the proxy actually emits and supports structured fields.
type Logger interface {
	Error(msg string)
	Warn(msg string)
	Info(msg string)
	Debug(msg string)

	// WithFields returns a logger with the given fields attached to every
	// subsequent line.
	WithFields(fields ...LogField) Logger
}

// NullLogger discards everything.
var NullLogger Logger = nullLogger{}

type nullLogger struct{}

func (nullLogger) Error(string)                  {}
func (nullLogger) Warn(string)                   {}
func (nullLogger) Info(string)                   {}
func (nullLogger) Debug(string)                  {}
func (nullLogger) WithFields(...LogField) Logger { return NullLogger }

// zapLogger adapts a zap.Logger to the Logger interface.
type zapLogger struct {
	log *zap.Logger
}

// NewZapLogger wraps a zap.Logger for use as the proxy's Logger.
func NewZapLogger(log *zap.Logger) Logger {
	return zapLogger{log: log}
}

func (l zapLogger) Error(msg string) { l.log.Error(msg) }
func (l zapLogger) Warn(msg string)  { l.log.Warn(msg) }
func (l zapLogger) Info(msg string)  { l.log.Info(msg) }
func (l zapLogger) Debug(msg string) { l.log.Debug(msg) }

func (l zapLogger) WithFields(fields ...LogField) Logger {
	zfields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zfields = append(zfields, zap.Any(f.Key, f.Value))
	}
	return zapLogger{log: l.log.With(zfields...)}
}
