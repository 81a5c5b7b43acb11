// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterclient

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// Store is the on-device persistent store for captured readings and
// cached meters. It is constructed once at app startup and passed to
// the sync engine and the view layer; there is no package-level handle.
//
// Every operation swallows storage faults: it logs the error and
// returns a safe default instead of propagating. A broken local cache
// must never crash the capture flow, but callers are expected to check
// boolean results and surface a user-facing error when a save fails.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenDatabase opens the local SQLite database file with the pragmas
// the store expects. The connection is meant to be opened once per
// process and reused.
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: all access is effectively single-threaded and
	// this prevents SQLite locking issues
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, _ = db.Exec(`PRAGMA busy_timeout = 5000`)
	_, _ = db.Exec(`PRAGMA journal_mode = WAL`)
	_, _ = db.Exec(`PRAGMA synchronous = NORMAL`)
	_, _ = db.Exec(`PRAGMA foreign_keys = ON`)

	return db, nil
}

// storedTimeFormat keeps a fixed number of fractional digits so that
// ORDER BY on the created_at TEXT column is chronological. RFC3339Nano
// trims trailing zeros, which breaks lexicographic ordering within a
// second.
const storedTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// NewStore creates a store over an open database and idempotently
// ensures the schema exists. Safe to call on every app start. Unlike
// the runtime operations, a schema init failure is returned rather
// than swallowed: a store that cannot create its tables is unusable.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}
	return s, nil
}

func (s *Store) initializeSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id TEXT PRIMARY KEY NOT NULL,
			meter_id TEXT NOT NULL,
			reader_id TEXT NOT NULL,
			new_reading INTEGER,
			photo_uri TEXT NOT NULL DEFAULT '',
			photo_file_name TEXT NOT NULL DEFAULT '',
			photo_path TEXT,
			notes TEXT,
			skip_reason TEXT,
			latitude REAL,
			longitude REAL,
			created_at TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0,
			synced INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS meters (
			id TEXT PRIMARY KEY NOT NULL,
			account_number TEXT NOT NULL,
			sequence TEXT NOT NULL DEFAULT '',
			meter_number TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			subscriber_name TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			record TEXT NOT NULL DEFAULT '',
			block TEXT NOT NULL DEFAULT '',
			property TEXT NOT NULL DEFAULT '',
			previous_reading INTEGER NOT NULL DEFAULT 0,
			previous_reading_date TEXT,
			current_amount TEXT NOT NULL DEFAULT '',
			debts TEXT NOT NULL DEFAULT '',
			total_amount TEXT NOT NULL DEFAULT '',
			reader_id TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// SaveReading inserts a capture event with synced=false, replacing any
// existing row with the same identity. The upsert makes the call safe
// to retry after a crash between capture steps. Returns false on any
// storage fault.
func (s *Store) SaveReading(ctx context.Context, r Reading) bool {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO readings
		(id, meter_id, reader_id, new_reading, photo_uri, photo_file_name, photo_path,
		 notes, skip_reason, latitude, longitude, created_at, is_completed, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0)`,
		r.ID, r.MeterID, r.ReaderID, r.NewReading, r.PhotoURI, r.PhotoFileName, r.PhotoPath,
		r.Notes, r.SkipReason, r.Latitude, r.Longitude, createdAt.UTC().Format(storedTimeFormat))
	if err != nil {
		s.logger.Error("Failed to save reading to local store", "error", err, "reading_id", r.ID)
		return false
	}

	s.logger.Debug("Reading saved to local store", "reading_id", r.ID, "meter_id", r.MeterID)
	return true
}

const readingColumns = `id, meter_id, reader_id, new_reading, photo_uri, photo_file_name,
	photo_path, notes, skip_reason, latitude, longitude, created_at, is_completed, synced`

func scanReading(row interface{ Scan(...any) error }) (Reading, error) {
	var (
		r         Reading
		createdAt string
	)
	err := row.Scan(&r.ID, &r.MeterID, &r.ReaderID, &r.NewReading, &r.PhotoURI, &r.PhotoFileName,
		&r.PhotoPath, &r.Notes, &r.SkipReason, &r.Latitude, &r.Longitude, &createdAt,
		&r.IsCompleted, &r.Synced)
	if err != nil {
		return Reading{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

// PendingReadings returns every reading not yet acknowledged by the
// server, newest first. Returns an empty list on storage fault.
func (s *Store) PendingReadings(ctx context.Context) []Reading {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+readingColumns+`
		FROM readings WHERE synced = 0
		ORDER BY created_at DESC`)
	if err != nil {
		s.logger.Error("Failed to query pending readings", "error", err)
		return []Reading{}
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			s.logger.Error("Failed to scan pending reading", "error", err)
			return []Reading{}
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Error iterating pending readings", "error", err)
		return []Reading{}
	}
	return readings
}

// ReadingByMeter returns the most recent local reading for a meter
// regardless of sync state, or nil when none exists
func (s *Store) ReadingByMeter(ctx context.Context, meterID string) *Reading {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+readingColumns+`
		FROM readings WHERE meter_id = ?
		ORDER BY created_at DESC LIMIT 1`, meterID)

	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to load reading for meter", "error", err, "meter_id", meterID)
		return nil
	}
	return &r
}

// MarkReadingSynced flips a reading's synced flag to true. The
// transition happens at most once and never reverts. Marking an
// unknown identity is a no-op so sync can be retried after a partial
// previous run.
func (s *Store) MarkReadingSynced(ctx context.Context, id string) bool {
	_, err := s.db.ExecContext(ctx, `UPDATE readings SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		s.logger.Error("Failed to mark reading synced", "error", err, "reading_id", id)
		return false
	}
	s.logger.Debug("Reading marked as synced", "reading_id", id)
	return true
}

// SaveMeterCache upserts a cached meter row so the list can be shown
// while offline. Returns false on storage fault.
func (s *Store) SaveMeterCache(ctx context.Context, m meterserver.MeterRecord) bool {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO meters
		(id, account_number, sequence, meter_number, category, subscriber_name, address,
		 record, block, property, previous_reading, previous_reading_date,
		 current_amount, debts, total_amount, reader_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AccountNumber, m.Sequence, m.MeterNumber, m.Category, m.SubscriberName, m.Address,
		m.Record, m.Block, m.Property, m.PreviousReading, m.PreviousReadingDate.UTC().Format(storedTimeFormat),
		m.CurrentAmount, m.Debts, m.TotalAmount, m.ReaderID)
	if err != nil {
		s.logger.Error("Failed to cache meter", "error", err, "meter_id", m.ID)
		return false
	}
	return true
}

// MetersForReader returns the reader's cached meters, each joined with
// its most recent local reading (synced or not), so a just-captured
// reading is reflected instantly without talking to the network.
// Returns an empty list on storage fault.
func (s *Store) MetersForReader(ctx context.Context, readerID string) []meterserver.MeterWithReading {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.account_number, m.sequence, m.meter_number, m.category,
		       m.subscriber_name, m.address, m.record, m.block, m.property,
		       m.previous_reading, m.previous_reading_date,
		       m.current_amount, m.debts, m.total_amount, m.reader_id
		FROM meters m
		WHERE m.reader_id = ?
		ORDER BY m.sequence`, readerID)
	if err != nil {
		s.logger.Error("Failed to query cached meters", "error", err, "reader_id", readerID)
		return []meterserver.MeterWithReading{}
	}
	defer rows.Close()

	meters := []meterserver.MeterWithReading{}
	for rows.Next() {
		var (
			m        meterserver.MeterRecord
			prevDate sql.NullString
		)
		err := rows.Scan(&m.ID, &m.AccountNumber, &m.Sequence, &m.MeterNumber, &m.Category,
			&m.SubscriberName, &m.Address, &m.Record, &m.Block, &m.Property,
			&m.PreviousReading, &prevDate,
			&m.CurrentAmount, &m.Debts, &m.TotalAmount, &m.ReaderID)
		if err != nil {
			s.logger.Error("Failed to scan cached meter", "error", err)
			return []meterserver.MeterWithReading{}
		}
		if prevDate.Valid {
			if t, err := time.Parse(time.RFC3339Nano, prevDate.String); err == nil {
				m.PreviousReadingDate = t
			}
		}
		meters = append(meters, meterserver.MeterWithReading{MeterRecord: m})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Error iterating cached meters", "error", err)
		return []meterserver.MeterWithReading{}
	}

	for i := range meters {
		if local := s.ReadingByMeter(ctx, meters[i].ID); local != nil {
			meters[i].LatestReading = local.AsRecord()
		}
	}
	return meters
}

// PendingCount returns the number of unsynced readings, for the badge
func (s *Store) PendingCount(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings WHERE synced = 0`).Scan(&count); err != nil {
		s.logger.Error("Failed to count pending readings", "error", err)
		return 0
	}
	return count
}

// ClearAll wipes both tables. Used for tests and account resets, not
// part of the normal capture flow.
func (s *Store) ClearAll(ctx context.Context) bool {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings`); err != nil {
		s.logger.Error("Failed to clear readings", "error", err)
		return false
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meters`); err != nil {
		s.logger.Error("Failed to clear meters", "error", err)
		return false
	}
	return true
}
