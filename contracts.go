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

import "go.corp.nvidia.com/nsrepo/internal/model"

// TableBlueprint is the authoritative mapping of machines to roles per key
// range for one table, as published by the semilattice view.
type TableBlueprint = model.TableBlueprint

// SemilatticeView publishes a snapshot of every table's metadata plus a
// change-notification stream. It is an external collaborator: this
// repository only reads it, never writes it.
type SemilatticeView = model.SemilatticeView

// DirectoryWatchable publishes PeerID -> per-table ReactorCard for every
// connected peer, and supports narrowing that to a single table's view.
type DirectoryWatchable = model.DirectoryWatchable

// MessagingHandle is the opaque transport a NamespaceInterface uses to reach
// replicas. This repository never inspects it; it is only threaded through
// to NamespaceInterface construction.
type MessagingHandle = model.MessagingHandle

// NamespaceInterface is the routing object owned for one table: it exposes
// read/write operations by forwarding to replicas. Its construction and
// readiness signal are the only parts this repository governs; its read and
// write API is external.
type NamespaceInterface = model.NamespaceInterface

// NamespaceInterfaceBuilder constructs a NamespaceInterface for one table on
// one worker. It is supplied by the caller (e.g. an adapter in
// adapters/grpciface) because the concrete interface type is external to
// this repository's contract.
type NamespaceInterfaceBuilder = model.NamespaceInterfaceBuilder

// LifecycleEvent names a transition a cache entry goes through, used by an
// optional AuditSink for operational forensics. Not part of the cache's own
// contract -- persistence of any kind stays out of scope for the cache
// itself; this is an ambient observability hook only.
type LifecycleEvent = model.LifecycleEvent

const (
	LifecycleCreated     = model.LifecycleCreated
	LifecyclePublished   = model.LifecyclePublished
	LifecycleIdleExpired = model.LifecycleIdleExpired
	LifecycleDrained     = model.LifecycleDrained
)

// AuditSink optionally records entry lifecycle transitions. A nil sink
// disables auditing entirely; callers supply a concrete sink (e.g.
// adapters/pgaudit) through Config.
type AuditSink = model.AuditSink

// Instrumentation receives repository-internal events for metrics
// recording. A nil Instrumentation disables metrics entirely. See the
// metrics package for the OpenTelemetry-backed implementation.
type Instrumentation = model.Instrumentation
