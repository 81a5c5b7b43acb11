// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InitializeSchema creates the system-of-record tables. Safe to call on
// every server start; all statements are idempotent.
func InitializeSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS readers(
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  username TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  display_name TEXT NOT NULL,
  assignment_version INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("create readers: %w", err)
		}

		if _, err := tx.Exec(ctx,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS meters(
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  account_number TEXT NOT NULL,
  sequence TEXT NOT NULL,
  meter_number TEXT NOT NULL,
  category TEXT NOT NULL,
  subscriber_name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  record TEXT NOT NULL,
  block TEXT NOT NULL,
  property TEXT NOT NULL,
  previous_reading INTEGER NOT NULL,
  previous_reading_date TIMESTAMPTZ NOT NULL,
  current_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
  debts NUMERIC(12,2) NOT NULL DEFAULT 0,
  total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
  reader_id UUID REFERENCES readers(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("create meters: %w", err)
		}

		if _, err := tx.Exec(ctx,
			/*language=postgresql*/ `
CREATE TABLE IF NOT EXISTS readings(
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  meter_id UUID NOT NULL REFERENCES meters(id),
  reader_id UUID NOT NULL REFERENCES readers(id),
  new_reading INTEGER,
  photo_path TEXT,
  notes TEXT,
  skip_reason TEXT,
  is_completed BOOLEAN NOT NULL DEFAULT true,
  reading_date TIMESTAMPTZ NOT NULL DEFAULT now(),
  latitude NUMERIC(10,7),
  longitude NUMERIC(10,7),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("create readings: %w", err)
		}

		if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_meters_reader ON meters(reader_id, sequence)`); err != nil {
			logger.Warn("Failed to create meters reader index", "error", err)
			return err
		}
		if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_readings_meter_created ON readings(meter_id, created_at DESC)`); err != nil {
			logger.Warn("Failed to create readings meter index", "error", err)
			return err
		}
		if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_readings_reader_created ON readings(reader_id, created_at DESC)`); err != nil {
			logger.Warn("Failed to create readings reader index", "error", err)
			return err
		}

		return nil
	})
}
