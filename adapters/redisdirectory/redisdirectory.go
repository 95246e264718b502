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

// Package redisdirectory implements nsrepo.DirectoryWatchable over a Redis
// Stream per table. Each stream entry is a JSON-encoded directoryEvent; a
// background goroutine per watched table tails its stream with XRead and
// folds entries into an in-memory PeerID -> ReactorCard map, the same way
// k8sdirectory folds ConfigMap events.
package redisdirectory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"go.corp.nvidia.com/nsrepo"
)

const streamPrefix = "{nsrepo}:directory:"

func streamKey(table nsrepo.TableID) string {
	return streamPrefix + string(table)
}

// directoryEvent is the JSON payload carried in each stream entry.
type directoryEvent struct {
	Peer     nsrepo.PeerID `json:"peer"`
	Deleted  bool          `json:"deleted"`
	Internal []byte        `json:"internal,omitempty"`
}

// Watcher implements nsrepo.DirectoryWatchable by tailing a Redis Stream
// per table.
type Watcher struct {
	client *redis.Client
	logger *slog.Logger

	mu      sync.RWMutex
	byTable map[nsrepo.TableID]map[nsrepo.PeerID]nsrepo.ReactorCard
	subs    map[nsrepo.TableID][]chan struct{}
	tailing map[nsrepo.TableID]bool
}

var _ nsrepo.DirectoryWatchable = (*Watcher)(nil)

// New returns a Watcher backed by client. Tailing goroutines are started
// lazily, one per table, the first time that table is observed (via
// Snapshot or Subscribe).
func New(client *redis.Client, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		client:  client,
		logger:  logger,
		byTable: make(map[nsrepo.TableID]map[nsrepo.PeerID]nsrepo.ReactorCard),
		subs:    make(map[nsrepo.TableID][]chan struct{}),
		tailing: make(map[nsrepo.TableID]bool),
	}
}

// Snapshot returns the current PeerID -> ReactorCard map for table,
// starting its tailing goroutine if this is the first observation of it.
func (w *Watcher) Snapshot(table nsrepo.TableID) map[nsrepo.PeerID]nsrepo.ReactorCard {
	w.ensureTailing(table)

	w.mu.RLock()
	defer w.mu.RUnlock()
	src := w.byTable[table]
	out := make(map[nsrepo.PeerID]nsrepo.ReactorCard, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Subscribe registers a change channel for table.
func (w *Watcher) Subscribe(ctx context.Context, table nsrepo.TableID) (<-chan struct{}, func()) {
	w.ensureTailing(table)

	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.subs[table] = append(w.subs[table], ch)
	w.mu.Unlock()

	unsubscribe := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		list := w.subs[table]
		for i, c := range list {
			if c == ch {
				w.subs[table] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch, unsubscribe
}

// Push appends a directory event for table. Callers (e.g. a replica
// heartbeat process) use this to publish their reactor card; it is not
// part of the nsrepo.DirectoryWatchable contract, only this adapter's own
// write path.
func (w *Watcher) Push(ctx context.Context, table nsrepo.TableID, peer nsrepo.PeerID, internal []byte, deleted bool) error {
	payload, err := json.Marshal(directoryEvent{Peer: peer, Deleted: deleted, Internal: internal})
	if err != nil {
		return fmt.Errorf("redisdirectory: marshal event: %w", err)
	}
	return w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(table),
		Values: map[string]interface{}{"event": string(payload)},
	}).Err()
}

func (w *Watcher) ensureTailing(table nsrepo.TableID) {
	w.mu.Lock()
	if w.tailing[table] {
		w.mu.Unlock()
		return
	}
	w.tailing[table] = true
	w.mu.Unlock()

	go w.tail(table)
}

func (w *Watcher) tail(table nsrepo.TableID) {
	lastID := "$"
	stream := streamKey(table)
	ctx := context.Background()

	for {
		res, err := w.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   5 * time.Second,
			Count:   100,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return
			}
			w.logger.Warn("redisdirectory: XRead failed", slog.String("stream", stream), slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}

		changed := false
		for _, streamResult := range res {
			for _, entry := range streamResult.Messages {
				lastID = entry.ID
				raw, ok := entry.Values["event"].(string)
				if !ok {
					continue
				}
				var ev directoryEvent
				if err := json.Unmarshal([]byte(raw), &ev); err != nil {
					continue
				}
				w.apply(table, ev)
				changed = true
			}
		}
		if changed {
			w.notify(table)
		}
	}
}

func (w *Watcher) apply(table nsrepo.TableID, ev directoryEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.byTable[table] == nil {
		w.byTable[table] = make(map[nsrepo.PeerID]nsrepo.ReactorCard)
	}
	if ev.Deleted {
		delete(w.byTable[table], ev.Peer)
		return
	}
	w.byTable[table][ev.Peer] = nsrepo.ReactorCard{
		PeerID:   ev.Peer,
		TableID:  table,
		Internal: ev.Internal,
	}
}

func (w *Watcher) notify(table nsrepo.TableID) {
	w.mu.RLock()
	subs := w.subs[table]
	w.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
