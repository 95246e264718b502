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

// Package drain implements the entry-drainer: a cooperative-shutdown token
// that links entry lifecycle tasks to the repository. On Drain, every
// linked task is signaled via context cancellation and Drain blocks until
// all have returned.
package drain

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrDrained is the cause attached to the drainer's context when Drain is
// called. Entry lifecycle tasks observe it at their next suspension point
// and treat it as a normal (non-error) shutdown signal.
var ErrDrained = errors.New("nsrepo: repository draining")

// Group is the entry-drainer.
type Group struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	eg     *errgroup.Group
}

// New returns a Group whose tasks observe cancellation of parent until
// Drain is called explicitly. The errgroup is deliberately not built with
// errgroup.WithContext: one task erroring must not cancel its siblings --
// every other entry's lifecycle keeps running until Drain.
func New(parent context.Context) *Group {
	ctx, cancel := context.WithCancelCause(parent)
	return &Group{ctx: ctx, cancel: cancel, eg: &errgroup.Group{}}
}

// Context returns the drain signal. Entry lifecycle tasks pass this (or a
// context derived from it) to every suspending wait.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go runs fn as a linked task. fn should return nil on a clean exit,
// including exit via the drain signal -- drain is not an error.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		return fn(g.ctx)
	})
}

// Drain signals every linked task and blocks until all have returned.
// Safe to call once; the repository destructor calls it exactly once.
func (g *Group) Drain() error {
	g.cancel(ErrDrained)
	return g.eg.Wait()
}

// Drained reports whether the drain signal has already fired, for code
// paths that want to fail fast instead of queuing work behind a doomed
// worker.
func (g *Group) Drained() bool {
	select {
	case <-g.ctx.Done():
		return true
	default:
		return false
	}
}
