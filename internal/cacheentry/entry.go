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

// Package cacheentry implements the per-table cache entry and the
// lifecycle task that drives one entry from creation through idle
// expiration. Every method on Entry that touches the reference count or
// the trigger pair must only be invoked from a closure dispatched on the
// entry's owning worker -- Entry itself holds no lock, trusting that
// single-writer discipline the way internal/regionstore.Store trusts its
// caller.
package cacheentry

import (
	"go.corp.nvidia.com/nsrepo/internal/edgetrigger"
	"go.corp.nvidia.com/nsrepo/internal/future"
	"go.corp.nvidia.com/nsrepo/internal/model"
)

// Entry is one table's cache entry: a reference count, the eventual
// NamespaceInterface, and the pair of edge-triggers the keep-alive loop
// waits on to detect a zero-to-positive-to-zero ref_count cycle.
type Entry struct {
	Table model.TableID

	refCount int

	// Slot resolves at most once, at stage 4, when the constructed interface
	// has become ready and is published.
	// Concurrent GoSync callers that find this Entry already in the map
	// hold a reference to the same Slot and Await it without reentering
	// the worker.
	Slot *future.Future[model.NamespaceInterface]

	// ConstructErr resolves instead of Slot if construction fails or the
	// repository drains before the interface becomes ready. Exactly one of
	// Slot, ConstructErr ever resolves for a given Entry.
	ConstructErr *future.Future[error]

	// notifyZero/notifyNonzero are reinstalled by the keep-alive loop
	// (stage 5) each time it starts waiting; AddRef/Release pulse whichever
	// one applies to the transition they just made.
	notifyZero    *edgetrigger.Trigger
	notifyNonzero *edgetrigger.Trigger
}

// New returns an Entry with ref_count 1 (the caller that triggered creation
// always holds the first reference) and a fresh, unpublished Slot.
func New(table model.TableID) *Entry {
	return &Entry{
		Table:         table,
		refCount:      1,
		Slot:          future.New[model.NamespaceInterface](),
		ConstructErr:  future.New[error](),
		notifyZero:    edgetrigger.New(),
		notifyNonzero: edgetrigger.New(),
	}
}

// AddRef increments ref_count. Must run on the owning worker.
func (e *Entry) AddRef() {
	e.refCount++
	if e.refCount == 1 {
		e.notifyNonzero.Pulse()
	}
}

// Release decrements ref_count. Must run on the owning worker. Panics if
// called with ref_count already at zero -- that is a caller bug (a double
// release), not a recoverable runtime condition.
func (e *Entry) Release() {
	if e.refCount <= 0 {
		panic("cacheentry: Release called with ref_count already zero")
	}
	e.refCount--
	if e.refCount == 0 {
		e.notifyZero.Pulse()
	}
}

// RefCount returns the current reference count. Must run on the owning
// worker.
func (e *Entry) RefCount() int { return e.refCount }

// armZero installs a fresh zero-trigger and returns it, replacing whatever
// trigger the previous keep-alive cycle used. Must run on the owning
// worker.
func (e *Entry) armZero() *edgetrigger.Trigger {
	e.notifyZero = edgetrigger.New()
	if e.refCount == 0 {
		e.notifyZero.Pulse()
	}
	return e.notifyZero
}

// armNonzero installs a fresh nonzero-trigger and returns it. Must run on
// the owning worker.
func (e *Entry) armNonzero() *edgetrigger.Trigger {
	e.notifyNonzero = edgetrigger.New()
	if e.refCount > 0 {
		e.notifyNonzero.Pulse()
	}
	return e.notifyNonzero
}
