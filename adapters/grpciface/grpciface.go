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

// Package grpciface implements nsrepo.NamespaceInterfaceBuilder over plain
// gRPC client connections, one per replica discovered through a table's
// DirectoryWatchable: a thin object that owns live connections, exposes a
// readiness signal, and follows the directory so replicas that appear or
// disappear after construction get dialed or pruned.
package grpciface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"go.corp.nvidia.com/nsrepo"
)

// Metrics holds the Prometheus collectors this builder registers
// connection-count observations against. A nil *Metrics disables
// recording.
type Metrics struct {
	ActiveConnections prometheus.Gauge
}

// NewMetrics registers and returns a Metrics bound to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsrepo_grpciface_active_connections",
			Help: "Number of live gRPC connections held open by grpciface.Interface instances.",
		}),
	}
	reg.MustRegister(m.ActiveConnections)
	return m
}

// Builder constructs Interfaces. Its Build satisfies
// nsrepo.NamespaceInterfaceBuilder when used as a method value.
type Builder struct {
	metrics *Metrics
	logger  *slog.Logger
}

// NewBuilder returns a Builder recording connection counts to metrics, if
// non-nil.
func NewBuilder(metrics *Metrics, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{metrics: metrics, logger: logger}
}

// Build implements nsrepo.NamespaceInterfaceBuilder: it dials every peer
// currently known for table and subscribes to the directory so replicas
// added later get dialed too.
func (b *Builder) Build(
	ctx context.Context,
	messaging nsrepo.MessagingHandle,
	regions func() nsrepo.RegionMap[nsrepo.MachineID],
	reactorCards nsrepo.DirectoryWatchable,
	table nsrepo.TableID,
) (nsrepo.NamespaceInterface, error) {
	iface := &Interface{
		table:     table,
		regions:   regions,
		cards:     reactorCards,
		conns:     make(map[nsrepo.PeerID]*grpc.ClientConn),
		ready:     make(chan struct{}),
		closed:    make(chan struct{}),
		metrics:   b.metrics,
		logger:    b.logger,
		messaging: messaging,
	}

	ifaceCtx, cancel := context.WithCancel(context.Background())
	iface.cancel = cancel

	if err := iface.dialAll(ctx); err != nil {
		cancel()
		return nil, err
	}
	close(iface.ready)

	changes, unsubscribe := reactorCards.Subscribe(ifaceCtx, table)
	iface.unsubscribe = unsubscribe
	go iface.watch(ifaceCtx, changes)

	return iface, nil
}

// Interface is a NamespaceInterface implementation that keeps one gRPC
// connection open per known replica of a table.
type Interface struct {
	table     nsrepo.TableID
	messaging nsrepo.MessagingHandle
	regions   func() nsrepo.RegionMap[nsrepo.MachineID]
	cards     nsrepo.DirectoryWatchable
	metrics   *Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	conns map[nsrepo.PeerID]*grpc.ClientConn

	ready  chan struct{}
	closed chan struct{}

	cancel      context.CancelFunc
	unsubscribe func()
}

var _ nsrepo.NamespaceInterface = (*Interface)(nil)

// Ready returns a channel closed once the initial dial pass completes.
func (i *Interface) Ready() <-chan struct{} { return i.ready }

// Close tears down every connection this interface opened.
func (i *Interface) Close() error {
	i.cancel()
	if i.unsubscribe != nil {
		i.unsubscribe()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var firstErr error
	for peer, conn := range i.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("grpciface: close connection to %s: %w", peer, err)
		}
		delete(i.conns, peer)
		if i.metrics != nil {
			i.metrics.ActiveConnections.Dec()
		}
	}
	return firstErr
}

func (i *Interface) dialAll(ctx context.Context) error {
	cards := i.cards.Snapshot(i.table)

	i.mu.Lock()
	defer i.mu.Unlock()

	for peer, card := range cards {
		if _, ok := i.conns[peer]; ok {
			continue
		}
		conn, err := i.dial(ctx, card)
		if err != nil {
			return fmt.Errorf("grpciface: dial peer %s: %w", peer, err)
		}
		i.conns[peer] = conn
		if i.metrics != nil {
			i.metrics.ActiveConnections.Inc()
		}
	}
	return nil
}

func (i *Interface) dial(ctx context.Context, card nsrepo.ReactorCard) (*grpc.ClientConn, error) {
	target, err := cardTarget(card)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// cardTarget extracts the dialable gRPC target from a reactor card. The
// card's internal payload is a serialized structpb.Struct whose "address"
// field carries the target; a payload that does not decode as one is
// treated as the bare address bytes.
func cardTarget(card nsrepo.ReactorCard) (string, error) {
	var meta structpb.Struct
	if err := proto.Unmarshal(card.Internal, &meta); err == nil {
		if f, ok := meta.Fields["address"]; ok {
			if addr := f.GetStringValue(); addr != "" {
				return addr, nil
			}
		}
	}
	if len(card.Internal) == 0 {
		return "", fmt.Errorf("grpciface: reactor card for peer %s carries no address", card.PeerID)
	}
	return string(card.Internal), nil
}

func (i *Interface) watch(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			// A failed redial leaves the table under-connected until the
			// next directory change; that must be visible in the logs, not
			// swallowed.
			if err := i.dialAll(ctx); err != nil {
				i.logger.Warn("grpciface: redial after directory change failed",
					slog.String("table", string(i.table)), slog.String("error", err.Error()))
			}
			i.pruneStale()
		}
	}
}

func (i *Interface) pruneStale() {
	current := i.cards.Snapshot(i.table)

	i.mu.Lock()
	defer i.mu.Unlock()
	for peer, conn := range i.conns {
		if _, ok := current[peer]; ok {
			continue
		}
		_ = conn.Close()
		delete(i.conns, peer)
		if i.metrics != nil {
			i.metrics.ActiveConnections.Dec()
		}
	}
}
