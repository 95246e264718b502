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

// Package metrics implements nsrepo.Instrumentation on top of OpenTelemetry,
// exporting via OTLP/gRPC the same way every other OSMO service does. An
// Instrumentation receives five event kinds -- entry creation, entry
// erasure (with a reason), active-entry count deltas, projection rebuilds,
// and construction latency -- and maps each to a counter, an up-down
// counter, or a histogram, lazily created and cached the first time a given
// metric name is recorded.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"go.corp.nvidia.com/nsrepo"
)

// Config configures the OTLP exporter backing an Instrumentation.
type Config struct {
	OTLPEndpoint     string
	ExportIntervalMS int
	ServiceName      string
	ServiceVersion   string
	GlobalTags       map[string]string
}

// Instrumentation records repository lifecycle events as OpenTelemetry
// metrics. It implements nsrepo.Instrumentation. The zero value is not
// usable; use New.
type Instrumentation struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	globalTags    map[string]string

	counterCache       sync.Map // map[string]metric.Int64Counter
	upDownCounterCache sync.Map // map[string]metric.Int64UpDownCounter
	histogramCache     sync.Map // map[string]metric.Float64Histogram
}

var _ nsrepo.Instrumentation = (*Instrumentation)(nil)

// New builds an Instrumentation exporting to cfg.OTLPEndpoint. The returned
// Instrumentation's methods never return errors to callers -- nsrepo.
// Instrumentation's interface has no error returns -- so recording failures
// are swallowed; a metrics backend being briefly unreachable must never
// affect cache correctness.
func New(cfg Config) (*Instrumentation, error) {
	ctx := context.Background()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create resource: %w", err)
	}

	interval := time.Duration(cfg.ExportIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 6 * time.Second
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	return NewWithProvider(provider, cfg.ServiceName, cfg.ServiceVersion, cfg.GlobalTags), nil
}

// NewWithProvider builds an Instrumentation on an existing MeterProvider.
// New wires one to the OTLP exporter; tests pass a provider backed by a
// manual reader instead.
func NewWithProvider(provider *sdkmetric.MeterProvider, serviceName, serviceVersion string, tags map[string]string) *Instrumentation {
	globalTags := make(map[string]string, len(tags))
	for k, v := range tags {
		globalTags[k] = v
	}

	meterName := serviceName
	if serviceVersion != "" {
		meterName = serviceName + "@" + serviceVersion
	}

	return &Instrumentation{
		meterProvider: provider,
		meter:         provider.Meter(meterName),
		globalTags:    globalTags,
	}
}

// EntryCreated records that a new cache entry's interface was published for
// table.
func (m *Instrumentation) EntryCreated(table nsrepo.TableID) {
	m.addCounter(context.Background(), "nsrepo.entries.created", 1, map[string]string{"table": string(table)})
}

// EntryErased records that an entry was removed, tagged with why.
func (m *Instrumentation) EntryErased(table nsrepo.TableID, reason string) {
	m.addCounter(context.Background(), "nsrepo.entries.erased", 1, map[string]string{
		"table":  string(table),
		"reason": reason,
	})
}

// ActiveEntries adjusts the live-entry gauge by delta (+1 on create, -1 on
// erase).
func (m *Instrumentation) ActiveEntries(delta int) {
	m.addUpDownCounter(context.Background(), "nsrepo.entries.active", int64(delta), nil)
}

// ProjectionRebuilt records that the directory projector recomputed and
// fanned out a new PrimaryProjection.
func (m *Instrumentation) ProjectionRebuilt() {
	m.addCounter(context.Background(), "nsrepo.projection.rebuilds", 1, nil)
}

// GetLatency records the time from cold-get dispatch to NamespaceInterface
// publish.
func (m *Instrumentation) GetLatency(d time.Duration) {
	m.recordHistogram(context.Background(), "nsrepo.get.latency_ms", float64(d.Milliseconds()), nil)
}

// Shutdown flushes pending metrics and stops the exporter.
func (m *Instrumentation) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}

func (m *Instrumentation) addCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	cached, ok := m.counterCache.Load(name)
	if !ok {
		counter, err := m.meter.Int64Counter(name)
		if err != nil {
			return
		}
		cached, _ = m.counterCache.LoadOrStore(name, counter)
	}
	cached.(metric.Int64Counter).Add(ctx, value, metric.WithAttributes(m.buildAttributes(tags)...))
}

func (m *Instrumentation) addUpDownCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	cached, ok := m.upDownCounterCache.Load(name)
	if !ok {
		counter, err := m.meter.Int64UpDownCounter(name)
		if err != nil {
			return
		}
		cached, _ = m.upDownCounterCache.LoadOrStore(name, counter)
	}
	cached.(metric.Int64UpDownCounter).Add(ctx, value, metric.WithAttributes(m.buildAttributes(tags)...))
}

func (m *Instrumentation) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	cached, ok := m.histogramCache.Load(name)
	if !ok {
		hist, err := m.meter.Float64Histogram(name)
		if err != nil {
			return
		}
		cached, _ = m.histogramCache.LoadOrStore(name, hist)
	}
	cached.(metric.Float64Histogram).Record(ctx, value, metric.WithAttributes(m.buildAttributes(tags)...))
}

func (m *Instrumentation) buildAttributes(callTags map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.globalTags)+len(callTags))
	for k, v := range m.globalTags {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range callTags {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
