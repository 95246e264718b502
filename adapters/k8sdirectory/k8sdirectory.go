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

// Package k8sdirectory implements nsrepo.DirectoryWatchable and
// nsrepo.SemilatticeView over SharedIndexInformers watching ConfigMaps.
// For the directory, each ConfigMap represents one peer's reactor card for
// one table: its labels carry the table and peer identity, and its binary
// data carries the opaque internal routing payload. For the semilattice
// view, each ConfigMap carries one table's blueprint as JSON (see
// blueprintview.go).
package k8sdirectory

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"go.corp.nvidia.com/nsrepo"
)

const (
	// LabelTable names the ConfigMap label carrying the table a reactor
	// card belongs to.
	LabelTable = "nsrepo.nvidia.com/table"
	// LabelPeer names the ConfigMap label carrying the peer identity.
	LabelPeer = "nsrepo.nvidia.com/peer"
	// DataKeyInternal names the BinaryData key carrying the opaque routing
	// payload.
	DataKeyInternal = "internal"
)

// Watcher implements nsrepo.DirectoryWatchable by watching ConfigMaps in
// one namespace.
type Watcher struct {
	mu      sync.RWMutex
	byTable map[nsrepo.TableID]map[nsrepo.PeerID]nsrepo.ReactorCard
	subs    map[nsrepo.TableID][]chan struct{}

	informer cache.SharedIndexInformer
}

var _ nsrepo.DirectoryWatchable = (*Watcher)(nil)

// New builds a Watcher over ConfigMaps in namespace, starts its informer,
// and blocks until the initial list-and-watch sync completes.
func New(ctx context.Context, clientset kubernetes.Interface, namespace string) (*Watcher, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(
		clientset,
		0,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.LabelSelector = LabelTable
		}),
	)
	informer := factory.Core().V1().ConfigMaps().Informer()

	w := &Watcher{
		byTable:  make(map[nsrepo.TableID]map[nsrepo.PeerID]nsrepo.ReactorCard),
		subs:     make(map[nsrepo.TableID][]chan struct{}),
		informer: informer,
	}

	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { w.handleUpsert(obj) },
		UpdateFunc: func(_, newObj interface{}) { w.handleUpsert(newObj) },
		DeleteFunc: func(obj interface{}) { w.handleDelete(obj) },
	})
	if err != nil {
		return nil, fmt.Errorf("k8sdirectory: add event handler: %w", err)
	}

	factory.Start(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), informer.HasSynced) {
		return nil, fmt.Errorf("k8sdirectory: informer cache sync failed")
	}

	return w, nil
}

// Snapshot returns the current PeerID -> ReactorCard map for table.
func (w *Watcher) Snapshot(table nsrepo.TableID) map[nsrepo.PeerID]nsrepo.ReactorCard {
	w.mu.RLock()
	defer w.mu.RUnlock()
	src := w.byTable[table]
	out := make(map[nsrepo.PeerID]nsrepo.ReactorCard, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Subscribe registers a change channel for table. The channel receives a
// value (non-blocking; slow consumers miss intermediate notifications, not
// the eventual one) each time a ConfigMap for that table is added, updated,
// or removed.
func (w *Watcher) Subscribe(ctx context.Context, table nsrepo.TableID) (<-chan struct{}, func()) {
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

func (w *Watcher) handleUpsert(obj interface{}) {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		return
	}
	table := nsrepo.TableID(cm.Labels[LabelTable])
	peer := nsrepo.PeerID(cm.Labels[LabelPeer])
	if table == "" || peer == "" {
		return
	}
	card := nsrepo.ReactorCard{
		PeerID:   peer,
		TableID:  table,
		Internal: cm.BinaryData[DataKeyInternal],
	}

	w.mu.Lock()
	if w.byTable[table] == nil {
		w.byTable[table] = make(map[nsrepo.PeerID]nsrepo.ReactorCard)
	}
	w.byTable[table][peer] = card
	w.mu.Unlock()

	w.notify(table)
}

func (w *Watcher) handleDelete(obj interface{}) {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		tombstone, ok := obj.(cache.DeletedFinalStateUnknown)
		if !ok {
			return
		}
		cm, ok = tombstone.Obj.(*corev1.ConfigMap)
		if !ok {
			return
		}
	}
	table := nsrepo.TableID(cm.Labels[LabelTable])
	peer := nsrepo.PeerID(cm.Labels[LabelPeer])
	if table == "" || peer == "" {
		return
	}

	w.mu.Lock()
	delete(w.byTable[table], peer)
	w.mu.Unlock()

	w.notify(table)
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
