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

package k8sdirectory

import (
	"context"
	"encoding/json"
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
	// LabelBlueprintTable names the ConfigMap label identifying a blueprint
	// document and the table it describes.
	LabelBlueprintTable = "nsrepo.nvidia.com/blueprint-table"
	// DataKeyBlueprint names the Data key carrying the blueprint JSON.
	DataKeyBlueprint = "blueprint"
)

// blueprintDoc is the JSON shape a blueprint ConfigMap carries. RegionMap
// keys are structs, so the wire form is a list of region entries rather
// than a map.
type blueprintDoc struct {
	Deleted    bool               `json:"deleted,omitempty"`
	InConflict bool               `json:"in_conflict,omitempty"`
	Machines   []machineBlueprint `json:"machines,omitempty"`
}

type machineBlueprint struct {
	Machine string            `json:"machine"`
	Regions []regionBlueprint `json:"regions"`
}

type regionBlueprint struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
	Role  string `json:"role"`
}

// BlueprintView implements nsrepo.SemilatticeView by watching blueprint
// ConfigMaps in one namespace, one ConfigMap per table.
type BlueprintView struct {
	mu      sync.RWMutex
	byTable map[nsrepo.TableID]nsrepo.TableBlueprint
	subs    []chan struct{}

	informer cache.SharedIndexInformer
}

var _ nsrepo.SemilatticeView = (*BlueprintView)(nil)

// NewBlueprintView builds a BlueprintView over blueprint ConfigMaps in
// namespace, starts its informer, and blocks until the initial
// list-and-watch sync completes.
func NewBlueprintView(ctx context.Context, clientset kubernetes.Interface, namespace string) (*BlueprintView, error) {
	factory := informers.NewSharedInformerFactoryWithOptions(
		clientset,
		0,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.LabelSelector = LabelBlueprintTable
		}),
	)
	informer := factory.Core().V1().ConfigMaps().Informer()

	v := &BlueprintView{
		byTable:  make(map[nsrepo.TableID]nsrepo.TableBlueprint),
		informer: informer,
	}

	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { v.handleUpsert(obj) },
		UpdateFunc: func(_, newObj interface{}) { v.handleUpsert(newObj) },
		DeleteFunc: func(obj interface{}) { v.handleDelete(obj) },
	})
	if err != nil {
		return nil, fmt.Errorf("k8sdirectory: add blueprint event handler: %w", err)
	}

	factory.Start(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), informer.HasSynced) {
		return nil, fmt.Errorf("k8sdirectory: blueprint informer cache sync failed")
	}

	return v, nil
}

// Snapshot returns the current table map. The returned map must not be
// mutated by the caller.
func (v *BlueprintView) Snapshot() map[nsrepo.TableID]nsrepo.TableBlueprint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[nsrepo.TableID]nsrepo.TableBlueprint, len(v.byTable))
	for k, bp := range v.byTable {
		out[k] = bp
	}
	return out
}

// Subscribe registers a change channel. The channel receives a value
// (non-blocking; slow consumers miss intermediate notifications, not the
// eventual one) each time any blueprint ConfigMap changes.
func (v *BlueprintView) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	v.mu.Lock()
	v.subs = append(v.subs, ch)
	v.mu.Unlock()

	unsubscribe := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, c := range v.subs {
			if c == ch {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
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

func (v *BlueprintView) handleUpsert(obj interface{}) {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		return
	}
	table := nsrepo.TableID(cm.Labels[LabelBlueprintTable])
	if table == "" {
		return
	}
	var doc blueprintDoc
	if err := json.Unmarshal([]byte(cm.Data[DataKeyBlueprint]), &doc); err != nil {
		return
	}

	bp := nsrepo.TableBlueprint{
		Deleted:     doc.Deleted,
		InConflict:  doc.InConflict,
		MachineRole: make(map[nsrepo.MachineID]nsrepo.RegionMap[nsrepo.Role], len(doc.Machines)),
	}
	for _, m := range doc.Machines {
		rm := make(nsrepo.RegionMap[nsrepo.Role], len(m.Regions))
		for _, region := range m.Regions {
			role := nsrepo.RoleSecondary
			if region.Role == "primary" {
				role = nsrepo.RolePrimary
			}
			rm[nsrepo.KeyRange{Start: region.Start, End: region.End}] = role
		}
		bp.MachineRole[nsrepo.MachineID(m.Machine)] = rm
	}

	v.mu.Lock()
	v.byTable[table] = bp
	v.mu.Unlock()

	v.notifyAll()
}

func (v *BlueprintView) handleDelete(obj interface{}) {
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
	table := nsrepo.TableID(cm.Labels[LabelBlueprintTable])
	if table == "" {
		return
	}

	// A removed blueprint ConfigMap reads as a deleted table, which the
	// projector turns into a removal from every worker's region store.
	v.mu.Lock()
	v.byTable[table] = nsrepo.TableBlueprint{Deleted: true}
	v.mu.Unlock()

	v.notifyAll()
}

func (v *BlueprintView) notifyAll() {
	v.mu.RLock()
	subs := v.subs
	v.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
