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

// Package edgetrigger implements single-shot, edge-triggered signals: a
// fresh Trigger is installed by the waiter immediately before it suspends,
// and is pulsed by the (one) mutator exactly on the state transition it
// cares about -- never on every mutation.
package edgetrigger

import "sync"

// Trigger is a one-shot notifier. The zero value is not usable; use New.
type Trigger struct {
	ch   chan struct{}
	once sync.Once
}

// New returns a fresh, unpulsed Trigger.
func New() *Trigger {
	return &Trigger{ch: make(chan struct{})}
}

// Pulse fires the trigger. Safe to call more than once; only the first call
// has an effect, matching "pulsed at most once" semantics of the slots this
// primitive backs.
func (t *Trigger) Pulse() {
	t.once.Do(func() { close(t.ch) })
}

// Wait returns the channel that closes when Pulse is called.
func (t *Trigger) Wait() <-chan struct{} {
	return t.ch
}
