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

package redisdirectory

import (
	"bytes"
	"testing"

	"go.corp.nvidia.com/nsrepo"
)

// newTestWatcher builds a Watcher without a Redis client: the stream-fold
// logic (apply) never touches the network and is driven with hand-built
// directoryEvents, so the tailing goroutine stays out of the picture.
func newTestWatcher() *Watcher {
	return &Watcher{
		byTable: make(map[nsrepo.TableID]map[nsrepo.PeerID]nsrepo.ReactorCard),
		subs:    make(map[nsrepo.TableID][]chan struct{}),
		tailing: make(map[nsrepo.TableID]bool),
	}
}

func TestApply_UpsertAddsCard(t *testing.T) {
	t.Parallel()
	w := newTestWatcher()

	w.apply("t1", directoryEvent{Peer: "peer-a", Internal: []byte("payload")})

	card, ok := w.byTable["t1"]["peer-a"]
	if !ok {
		t.Fatalf("expected card for peer-a, got %+v", w.byTable["t1"])
	}
	if card.TableID != "t1" || card.PeerID != "peer-a" {
		t.Fatalf("card identity mismatch: %+v", card)
	}
	if !bytes.Equal(card.Internal, []byte("payload")) {
		t.Fatalf("card payload = %q, want payload", card.Internal)
	}
}

func TestApply_UpsertReplacesCard(t *testing.T) {
	t.Parallel()
	w := newTestWatcher()

	w.apply("t1", directoryEvent{Peer: "peer-a", Internal: []byte("old")})
	w.apply("t1", directoryEvent{Peer: "peer-a", Internal: []byte("new")})

	if got := w.byTable["t1"]["peer-a"].Internal; !bytes.Equal(got, []byte("new")) {
		t.Fatalf("card payload = %q, want new", got)
	}
}

func TestApply_DeleteRemovesCard(t *testing.T) {
	t.Parallel()
	w := newTestWatcher()

	w.apply("t1", directoryEvent{Peer: "peer-a", Internal: []byte("payload")})
	w.apply("t1", directoryEvent{Peer: "peer-a", Deleted: true})

	if cards := w.byTable["t1"]; len(cards) != 0 {
		t.Fatalf("expected card removed, got %+v", cards)
	}
}

func TestApply_DeleteUnknownPeerIsNoop(t *testing.T) {
	t.Parallel()
	w := newTestWatcher()

	w.apply("t1", directoryEvent{Peer: "never-seen", Deleted: true})

	if cards := w.byTable["t1"]; len(cards) != 0 {
		t.Fatalf("expected no cards, got %+v", cards)
	}
}

func TestApply_TablesAreIndependent(t *testing.T) {
	t.Parallel()
	w := newTestWatcher()

	w.apply("t1", directoryEvent{Peer: "peer-a", Internal: []byte("one")})
	w.apply("t2", directoryEvent{Peer: "peer-a", Internal: []byte("two")})
	w.apply("t1", directoryEvent{Peer: "peer-a", Deleted: true})

	if cards := w.byTable["t1"]; len(cards) != 0 {
		t.Fatalf("t1 should be empty, got %+v", cards)
	}
	if got := w.byTable["t2"]["peer-a"].Internal; !bytes.Equal(got, []byte("two")) {
		t.Fatalf("t2 card payload = %q, want two", got)
	}
}
