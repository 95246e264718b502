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

// Package pgaudit implements nsrepo.AuditSink on top of pgxpool. Auditing
// is strictly ambient: the core cache never requires it, never blocks on
// it, and a Sink is entirely optional wiring a caller may add on top of a
// Repository for operational forensics.
package pgaudit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go.corp.nvidia.com/nsrepo"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS nsrepo_entry_lifecycle (
	id         BIGSERIAL PRIMARY KEY,
	worker     INTEGER     NOT NULL,
	table_id   TEXT        NOT NULL,
	event      TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO nsrepo_entry_lifecycle (worker, table_id, event, occurred_at)
VALUES ($1, $2, $3, $4)`

// Config holds connection configuration for the audit database.
type Config struct {
	ConnString string
	MaxConns   int32
}

// Sink records entry lifecycle events into a Postgres table via pgxpool.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ nsrepo.AuditSink = (*Sink)(nil)

// New connects to Postgres and ensures the audit table exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgaudit: parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgaudit: create connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgaudit: ensure audit table: %w", err)
	}

	return &Sink{pool: pool, logger: logger}, nil
}

// Record inserts one lifecycle event row. Call sites treat a failure as
// non-fatal to the cache; the caller (internal/cacheentry) already logs and
// swallows the error.
func (s *Sink) Record(ctx context.Context, worker int, table nsrepo.TableID, event nsrepo.LifecycleEvent, at time.Time) error {
	_, err := s.pool.Exec(ctx, insertSQL, worker, string(table), string(event), at)
	if err != nil {
		return fmt.Errorf("pgaudit: insert lifecycle row: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
	s.logger.Info("pgaudit connection pool closed")
}
