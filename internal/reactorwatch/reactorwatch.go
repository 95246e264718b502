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

// Package reactorwatch builds the narrowed directory views entry lifecycle
// tasks construct on the repository's home worker: the global directory
// (PeerID -> ReactorCard) restricted to one table. Tables cycle through
// the cache quickly under bursty load (create, idle-expire, re-create
// within the 60s window), so recently-built views are kept in a bounded,
// TTL-expiring LRU and a rapid re-create reuses the same view object. A
// view holds no subscription of its own: every Subscribe on it is passed
// through to the source directory.
package reactorwatch

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"go.corp.nvidia.com/nsrepo/internal/model"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = model.NamespaceInterfaceExpiration
)

// Cache bounds the set of cross-thread projected watchables a repository's
// home worker keeps alive, keyed by table.
type Cache struct {
	lru *lru.LRU[model.TableID, model.DirectoryWatchable]
}

// NewCache returns a Cache with the default size/TTL.
func NewCache() *Cache {
	return &Cache{lru: lru.NewLRU[model.TableID, model.DirectoryWatchable](defaultCacheSize, nil, defaultCacheTTL)}
}

// Build returns a DirectoryWatchable narrowed to table, reusing a cached
// one if a sufficiently recent build exists. Must be called from the
// repository's home worker; Cache itself does not add synchronization
// because its caller already serializes access via worker.GoSync.
func (c *Cache) Build(source model.DirectoryWatchable, table model.TableID) model.DirectoryWatchable {
	if v, ok := c.lru.Get(table); ok {
		return v
	}
	v := &narrowed{table: table, source: source}
	c.lru.Add(table, v)
	return v
}

// narrowed implements model.DirectoryWatchable by delegating to source
// with table fixed, so downstream NamespaceInterface construction never
// sees other tables' reactor cards.
type narrowed struct {
	table  model.TableID
	source model.DirectoryWatchable
}

func (n *narrowed) Snapshot(_ model.TableID) map[model.PeerID]model.ReactorCard {
	return n.source.Snapshot(n.table)
}

func (n *narrowed) Subscribe(ctx context.Context, _ model.TableID) (<-chan struct{}, func()) {
	return n.source.Subscribe(ctx, n.table)
}
