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

import "container/heap"

type poolHost struct {
	hostPort string
	active   int
	index    int
}

// hostHeap maintains a MIN heap of hosts keyed by active connection count,
// so checkout always lands on the least-loaded host.
type hostHeap []*poolHost

func (hh hostHeap) Len() int { return len(hh) }

func (hh hostHeap) Less(i, j int) bool {
	return hh[i].active < hh[j].active
}

func (hh hostHeap) Swap(i, j int) {
	hh[i], hh[j] = hh[j], hh[i]
	hh[i].index = i
	hh[j].index = j
}

// Push implements heap Push interface
func (hh *hostHeap) Push(x interface{}) {
	n := len(*hh)
	item := x.(*poolHost)
	item.index = n
	*hh = append(*hh, item)
}

// Pop implements heap Pop interface
func (hh *hostHeap) Pop() interface{} {
	old := *hh
	n := len(old)
	item := old[n-1]
	item.index = -1 // for safety
	*hh = old[0 : n-1]
	return item
}

func (hh *hostHeap) update(host *poolHost) {
	heap.Fix(hh, host.index)
}

func (hh *hostHeap) push(host *poolHost) {
	heap.Push(hh, host)
}

func (hh *hostHeap) peek() *poolHost {
	return (*hh)[0]
}
