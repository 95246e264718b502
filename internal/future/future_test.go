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

package future

import (
	"context"
	"testing"
	"time"
)

func TestFuture_AwaitBlocksUntilPublish(t *testing.T) {
	t.Parallel()
	f := New[int]()

	result := make(chan int, 1)
	go func() {
		v, err := f.Await(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		result <- v
	}()

	select {
	case <-result:
		t.Fatal("Await returned before Publish")
	case <-time.After(20 * time.Millisecond):
	}

	f.Publish(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Publish")
	}
}

func TestFuture_AwaitRespectsContext(t *testing.T) {
	t.Parallel()
	f := New[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestFuture_DoublePublishPanics(t *testing.T) {
	t.Parallel()
	f := New[int]()
	f.Publish(1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double publish")
		}
	}()
	f.Publish(2)
}

func TestFuture_MultipleAwaitersObserveSameValue(t *testing.T) {
	t.Parallel()
	f := New[string]()

	const n = 5
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := f.Await(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- v
		}()
	}

	f.Publish("hello")

	for i := 0; i < n; i++ {
		select {
		case v := <-results:
			if v != "hello" {
				t.Fatalf("expected hello, got %q", v)
			}
		case <-time.After(time.Second):
			t.Fatal("awaiter never resolved")
		}
	}
}

func TestFuture_Resolved(t *testing.T) {
	t.Parallel()
	f := New[int]()
	if f.Resolved() {
		t.Fatal("fresh future should not be resolved")
	}
	f.Publish(1)
	if !f.Resolved() {
		t.Fatal("future should be resolved after Publish")
	}
}
