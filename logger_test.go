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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNullLogger(t *testing.T) {
	log := NullLogger.WithFields(LogField{"key", "value"})
	log.Error("ignored")
	log.Warn("ignored")
	log.Info("ignored")
	log.Debug("ignored")
}

func TestErrField(t *testing.T) {
	err := errors.New("boom")
	f := ErrField(err)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, err, f.Value)
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapLogger(zap.New(core))

	log.WithFields(LogField{"cluster", "users"}).Warn("pool failure")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "pool failure", entries[0].Message)
	assert.Equal(t, "users", entries[0].ContextMap()["cluster"])
}
