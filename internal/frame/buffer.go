// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFrameBufferAllocation is returned when a frame does not fit into a
// transmit buffer.
var ErrFrameBufferAllocation = errors.New("frame buffer allocation failed")

// TxBuffer is a fixed-capacity buffer holding one outgoing frame.
// It must be released exactly once with Release.
type TxBuffer struct {
	pool *BufferPool
	buf  *[]byte
	n    int
}

// Bytes returns the frame held by the buffer. The slice is only valid until
// Release is called.
func (b *TxBuffer) Bytes() []byte {
	if b.buf == nil {
		return nil
	}
	return (*b.buf)[:b.n]
}

// Len returns the number of frame bytes held
func (b *TxBuffer) Len() int {
	return b.n
}

// Release clears the buffer and returns it to its pool. Further calls are
// no-ops.
func (b *TxBuffer) Release() {
	if b.buf == nil {
		return
	}
	full := (*b.buf)[:cap(*b.buf)]
	for i := range full {
		full[i] = 0
	}
	b.pool.pool.Put(b.buf)
	b.buf = nil
	b.n = 0
}

// BufferPool hands out transmit buffers of a single fixed capacity.
type BufferPool struct {
	pool     sync.Pool
	capacity int
}

// NewBufferPool creates a pool of buffers with the given capacity.
func NewBufferPool(capacity int) *BufferPool {
	p := &BufferPool{capacity: capacity}
	p.pool.New = func() any {
		buf := make([]byte, capacity)
		return &buf
	}
	return p
}

// Capacity returns the size of buffers handed out by the pool
func (p *BufferPool) Capacity() int {
	return p.capacity
}

// Acquire copies a frame into a pooled buffer. Frames larger than the pool
// capacity fail with ErrFrameBufferAllocation.
func (p *BufferPool) Acquire(data []byte) (*TxBuffer, error) {
	if len(data) == 0 || len(data) > p.capacity {
		return nil, fmt.Errorf("%w: %d bytes requested, capacity %d",
			ErrFrameBufferAllocation, len(data), p.capacity)
	}
	bufPtr, ok := p.pool.Get().(*[]byte)
	if !ok || cap(*bufPtr) < p.capacity {
		buf := make([]byte, p.capacity)
		bufPtr = &buf
	}
	n := copy((*bufPtr)[:p.capacity], data)
	return &TxBuffer{pool: p, buf: bufPtr, n: n}, nil
}

var defaultPool = NewBufferPool(TxBufferSize)

// AcquireTx acquires a transmit buffer from the default pool
func AcquireTx(data []byte) (*TxBuffer, error) {
	return defaultPool.Acquire(data)
}
