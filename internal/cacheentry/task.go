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

package cacheentry

import (
	"context"
	"log/slog"
	"time"

	"go.corp.nvidia.com/nsrepo/internal/model"
	"go.corp.nvidia.com/nsrepo/internal/reactorwatch"
	"go.corp.nvidia.com/nsrepo/internal/worker"
)

// Deps bundles everything the lifecycle task needs beyond the Entry itself.
// Worker, Table, Regions, ReactorCards, ReactorCache, Builder and OnErase
// are required. Instrumentation and Audit are ambient and may be nil; Home,
// Logger and Expiration fall back to Worker, slog.Default() and
// model.NamespaceInterfaceExpiration when unset.
type Deps struct {
	// Worker is the entry's owning worker; every touch of Entry's fields
	// happens inside a closure dispatched here.
	Worker *worker.Worker

	// Home is the repository's home worker, where the cross-thread
	// reactor-card narrowing of stage 1 runs. The reactorwatch.Cache is
	// only ever touched from Home's loop, which is what keeps it safe
	// without a lock even though every table's task passes through it.
	Home *worker.Worker

	Table model.TableID

	Messaging    model.MessagingHandle
	Regions      func() model.RegionMap[model.MachineID]
	ReactorCards model.DirectoryWatchable
	ReactorCache *reactorwatch.Cache
	Builder      model.NamespaceInterfaceBuilder

	// OnErase is called, inside a closure on Worker, once the task has
	// decided the entry is dead. It must remove the entry from the
	// worker's table map -- cacheentry has no map of its own to do this
	// with, since the owning map belongs to the caller (the repository).
	OnErase func()

	// Expiration overrides the idle-retention window; zero means
	// model.NamespaceInterfaceExpiration. Only tests shorten it.
	Expiration time.Duration

	Logger          *slog.Logger
	Instrumentation model.Instrumentation
	Audit           model.AuditSink
}

// Run drives entry through its full lifecycle: cross-thread setup,
// interface construction, readiness, publish, the keep-alive loop, and
// teardown. ctx is the repository-wide drain signal (internal/drain); Run
// honors it at every suspension point and treats its firing as a normal,
// non-error shutdown rather than a failure. Construction failures are
// likewise not Run errors: they reach the blocked Get callers through
// entry.ConstructErr, and returning them here as well would make a single
// table's flaky peer look like a repository-wide fault at Close time.
//
// Run must be launched on its own goroutine (e.g. via drain.Group.Go); it
// blocks for the entry's entire lifetime, which may span the 60-second idle
// window many times over if callers keep re-acquiring references.
func Run(ctx context.Context, entry *Entry, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.Int("worker", deps.Worker.ID()), slog.String("table", string(deps.Table)))

	audit(ctx, deps, model.LifecycleCreated)
	start := time.Now()

	// Stage 1: cross-thread setup. Narrowing the global directory watch to
	// this table runs on the repository's home worker, because the
	// reactorwatch.Cache it reads is owned by that worker's loop.
	home := deps.Home
	if home == nil {
		home = deps.Worker
	}
	var reactorCards model.DirectoryWatchable
	home.GoSync(func() {
		reactorCards = deps.ReactorCache.Build(deps.ReactorCards, deps.Table)
	})

	// Stage 2: interface construction. Runs off-worker; the builder may
	// block on network I/O and must not stall the owning worker's command
	// loop.
	iface, err := deps.Builder(ctx, deps.Messaging, deps.Regions, reactorCards, deps.Table)
	if err != nil {
		entry.ConstructErr.Publish(err)
		if inst := deps.Instrumentation; inst != nil {
			inst.EntryErased(deps.Table, "construction_failed")
		}
		deps.Worker.GoSync(deps.OnErase)
		logger.Warn("namespace interface construction failed", slog.String("error", err.Error()))
		return nil
	}

	// Stage 3: await readiness, honoring the drain signal.
	select {
	case <-iface.Ready():
	case <-ctx.Done():
		entry.ConstructErr.Publish(ctx.Err())
		_ = iface.Close()
		deps.Worker.GoSync(deps.OnErase)
		audit(ctx, deps, model.LifecycleDrained)
		return nil
	}

	// Stage 4: publish. Every caller blocked in a Get for this table
	// observes iface from here on.
	entry.Slot.Publish(iface)
	if inst := deps.Instrumentation; inst != nil {
		inst.EntryCreated(deps.Table)
		inst.ActiveEntries(1)
		inst.GetLatency(time.Since(start))
	}
	audit(ctx, deps, model.LifecyclePublished)
	logger.Debug("namespace interface published")

	// Stage 5: keep-alive loop. Alternates waiting for ref_count to drop to
	// zero with a race between a fresh reference arriving and the idle
	// timer expiring: a reference taken before the timer fires cancels the
	// expiration and the loop returns to waiting for zero again.
	//
	// When the timer wins, the task does not get to erase unconditionally:
	// the timer fires on the task's goroutine while Get callers keep
	// running on the worker, so a reference may land between the timer
	// firing and the erase. The zero-check and the map removal therefore
	// happen inside one worker closure -- the Get path's find-or-create
	// also increments inside its one closure, so whichever closure the
	// worker runs first wins and the other observes a consistent entry.
	expiration := deps.Expiration
	if expiration <= 0 {
		expiration = model.NamespaceInterfaceExpiration
	}
	reason := "idle_expired"
	erased := false
	for !erased {
		if err := waitForZero(ctx, deps.Worker, entry); err != nil {
			reason = "drained"
			break
		}
		expired, err := waitForNonzeroOrExpiry(ctx, deps.Worker, entry, expiration)
		if err != nil {
			reason = "drained"
			break
		}
		if !expired {
			// A fresh reference arrived before expiry; wait for the ref
			// count to return to zero.
			continue
		}
		deps.Worker.GoSync(func() {
			if entry.RefCount() == 0 {
				deps.OnErase()
				erased = true
			}
		})
	}

	// Stage 6: teardown. On the idle-expiry path the entry is already out
	// of the map, removed in the same closure that confirmed ref_count 0,
	// so no Get can observe it between here and Close. On the drain path
	// ref_count is trusted, not asserted, to be zero: it holds by the
	// contract that no AccessHandle outlives the repository, and asserting
	// it instead would make Close hang or panic on a caller bug rather
	// than drain promptly.
	if !erased {
		deps.Worker.GoSync(deps.OnErase)
	}
	if err := iface.Close(); err != nil {
		logger.Warn("namespace interface close failed", slog.String("error", err.Error()))
	}

	if inst := deps.Instrumentation; inst != nil {
		inst.EntryErased(deps.Table, reason)
		inst.ActiveEntries(-1)
	}
	if reason == "drained" {
		audit(ctx, deps, model.LifecycleDrained)
	} else {
		audit(ctx, deps, model.LifecycleIdleExpired)
	}
	logger.Debug("namespace interface erased", slog.String("reason", reason))
	return nil
}

// waitForZero arms a fresh zero-trigger on the owning worker and blocks
// until ref_count reaches zero or ctx is done.
func waitForZero(ctx context.Context, w *worker.Worker, entry *Entry) error {
	var trigger interface{ Wait() <-chan struct{} }
	w.GoSync(func() { trigger = entry.armZero() })
	select {
	case <-trigger.Wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForNonzeroOrExpiry arms a fresh nonzero-trigger on the owning worker
// and races it against timeout. It returns expired=true if timeout wins,
// expired=false if a reference arrived first.
func waitForNonzeroOrExpiry(ctx context.Context, w *worker.Worker, entry *Entry, timeout time.Duration) (expired bool, err error) {
	var trigger interface{ Wait() <-chan struct{} }
	w.GoSync(func() { trigger = entry.armNonzero() })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-trigger.Wait():
		return false, nil
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func audit(ctx context.Context, deps Deps, event model.LifecycleEvent) {
	if deps.Audit == nil {
		return
	}
	if err := deps.Audit.Record(ctx, deps.Worker.ID(), deps.Table, event, time.Now()); err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("audit record failed", slog.String("event", string(event)), slog.String("error", err.Error()))
		}
	}
}
