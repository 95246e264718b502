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

package nsrepo

import (
	"sync/atomic"

	"go.corp.nvidia.com/nsrepo/internal/cacheentry"
	"go.corp.nvidia.com/nsrepo/internal/worker"
)

// AccessHandle is a caller's reference to a table's NamespaceInterface. It
// must be released exactly once, via Release, or the underlying entry's
// reference count never returns to zero and the table is pinned in memory
// forever.
type AccessHandle struct {
	worker *worker.Worker
	entry  *cacheentry.Entry
	iface  NamespaceInterface

	released atomic.Bool
}

// Interface returns the live NamespaceInterface this handle references.
// The returned value remains valid until Release is called.
func (h *AccessHandle) Interface() NamespaceInterface {
	return h.iface
}

// Clone returns a second, independent AccessHandle to the same
// NamespaceInterface, incrementing the entry's reference count. Both
// handles must be released independently.
func (h *AccessHandle) Clone() *AccessHandle {
	h.worker.Go(func() { h.entry.AddRef() })
	return &AccessHandle{worker: h.worker, entry: h.entry, iface: h.iface}
}

// Release decrements the entry's reference count. Calling Release more
// than once on the same handle panics -- that is a caller bug, not a
// recoverable runtime condition, mirroring the double-publish invariant in
// internal/future.
func (h *AccessHandle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		panic(errInvariantViolation("AccessHandle.Release called twice"))
	}
	h.worker.Go(func() { h.entry.Release() })
}
