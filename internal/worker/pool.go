/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package worker

import "context"

// defaultCommandBuffer bounds how many pending closures a worker will queue
// before Go blocks its caller.
const defaultCommandBuffer = 64

// Pool is a fixed set of workers, one per logical "thread" the repository
// shards its caches across.
type Pool struct {
	workers []*Worker
	cancel  context.CancelFunc
}

// NewPool starts n workers and begins driving their command loops. Stop
// must be called to release them.
func NewPool(parent context.Context, n int) *Pool {
	ctx, cancel := context.WithCancel(parent)
	p := &Pool{workers: make([]*Worker, n), cancel: cancel}
	for i := 0; i < n; i++ {
		w := New(i, defaultCommandBuffer)
		p.workers[i] = w
		go w.Run(ctx)
	}
	return p
}

// Len returns the number of workers in the pool.
func (p *Pool) Len() int { return len(p.workers) }

// Worker returns the i'th worker.
func (p *Pool) Worker(i int) *Worker { return p.workers[i] }

// All returns every worker, in index order.
func (p *Pool) All() []*Worker { return p.workers }

// Stop stops every worker's command loop. Closures already queued when the
// stop lands still run before a loop returns; a Go or GoSync issued after a
// worker's loop has returned never runs (and that GoSync never returns), so
// callers must drain outstanding work (see internal/drain) before calling
// Stop.
func (p *Pool) Stop() {
	p.cancel()
}
