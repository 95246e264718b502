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

import (
	"context"
	"testing"
	"time"
)

func TestWorker_GoPreservesArrivalOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(0, 16)
	go w.Run(ctx)

	const n = 50
	got := make([]int, 0, n)
	for i := 0; i < n; i++ {
		i := i
		w.Go(func() { got = append(got, i) })
	}

	done := make(chan struct{})
	w.Go(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker never ran the queued commands")
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("command order violated at index %d: got %d", i, v)
		}
	}
}

func TestWorker_GoSyncBlocksUntilRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(0, 16)
	go w.Run(ctx)

	ran := false
	w.GoSync(func() { ran = true })
	if !ran {
		t.Fatal("GoSync returned before the closure ran")
	}
}

func TestWorker_RunFlushesQueuedCommandsOnStop(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	w := New(0, 16)

	ran := make(chan struct{})
	w.Go(func() { close(ran) })

	// Cancel before Run ever starts: the queued command must still be
	// flushed rather than stranded.
	cancel()
	go w.Run(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued command was dropped on stop")
	}
}

func TestPool_WorkersHaveStableIDs(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(ctx, 4)
	defer p.Stop()

	if p.Len() != 4 {
		t.Fatalf("expected 4 workers, got %d", p.Len())
	}
	for i := 0; i < p.Len(); i++ {
		if got := p.Worker(i).ID(); got != i {
			t.Fatalf("worker %d reports ID %d", i, got)
		}
	}
}
