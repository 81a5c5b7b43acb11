// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader is a reader account row, including credentials. Only the
// ReaderProfile projection ever leaves the server.
type Reader struct {
	ID                string
	Username          string
	Password          string
	DisplayName       string
	AssignmentVersion int
	CreatedAt         time.Time
}

// Profile returns the public projection of a reader account
func (r *Reader) Profile() *ReaderProfile {
	return &ReaderProfile{
		ID:                r.ID,
		Username:          r.Username,
		DisplayName:       r.DisplayName,
		AssignmentVersion: r.AssignmentVersion,
	}
}

// NewReader holds the fields required to create a reader account
type NewReader struct {
	Username    string
	Password    string
	DisplayName string
}

// NewMeter holds the fields required to register a meter
type NewMeter struct {
	AccountNumber       string
	Sequence            string
	MeterNumber         string
	Category            string
	SubscriberName      string
	Address             string
	Record              string
	Block               string
	Property            string
	PreviousReading     int
	PreviousReadingDate time.Time
	CurrentAmount       string
	Debts               string
	TotalAmount         string
	ReaderID            string
}

// Storage is the persistence contract the HTTP handlers depend on.
// Lookup methods return (nil, nil) when the row does not exist.
type Storage interface {
	ReaderByID(ctx context.Context, id string) (*Reader, error)
	ReaderByUsername(ctx context.Context, username string) (*Reader, error)
	CreateReader(ctx context.Context, nr NewReader) (*Reader, error)

	MetersByReader(ctx context.Context, readerID string) ([]MeterWithReading, error)
	MeterByID(ctx context.Context, id string) (*MeterRecord, error)
	CreateMeter(ctx context.Context, nm NewMeter) (*MeterRecord, error)

	ReadingsByMeter(ctx context.Context, meterID string) ([]ReadingRecord, error)
	ReadingsByReader(ctx context.Context, readerID string) ([]ReadingRecord, error)
	LatestReadingByMeter(ctx context.Context, meterID string) (*ReadingRecord, error)
	CreateReading(ctx context.Context, req CreateReadingRequest) (*ReadingRecord, error)
}

// PostgresStorage implements Storage on top of a pgx connection pool
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStorage creates a storage backed by the given pool
func NewPostgresStorage(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStorage{pool: pool, logger: logger}
}

const readerColumns = `id::text, username, password, display_name, assignment_version, created_at`

func scanReader(row pgx.Row) (*Reader, error) {
	var r Reader
	err := row.Scan(&r.ID, &r.Username, &r.Password, &r.DisplayName, &r.AssignmentVersion, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reader: %w", err)
	}
	return &r, nil
}

// ReaderByID returns the reader with the given id, or nil when absent
func (s *PostgresStorage) ReaderByID(ctx context.Context, id string) (*Reader, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+readerColumns+` FROM readers WHERE id = $1`, id)
	return scanReader(row)
}

// ReaderByUsername returns the reader with the given username, or nil when absent
func (s *PostgresStorage) ReaderByUsername(ctx context.Context, username string) (*Reader, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+readerColumns+` FROM readers WHERE username = $1`, username)
	return scanReader(row)
}

// CreateReader inserts a reader account and returns the stored row
func (s *PostgresStorage) CreateReader(ctx context.Context, nr NewReader) (*Reader, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO readers (username, password, display_name)
		VALUES ($1, $2, $3)
		RETURNING `+readerColumns,
		nr.Username, nr.Password, nr.DisplayName)

	var r Reader
	if err := row.Scan(&r.ID, &r.Username, &r.Password, &r.DisplayName, &r.AssignmentVersion, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	return &r, nil
}

const meterColumns = `id::text, account_number, sequence, meter_number, category, subscriber_name,
	address, record, block, property, previous_reading, previous_reading_date,
	current_amount::text, debts::text, total_amount::text, COALESCE(reader_id::text, ''), created_at`

func scanMeter(row pgx.Row) (*MeterRecord, error) {
	var m MeterRecord
	err := row.Scan(&m.ID, &m.AccountNumber, &m.Sequence, &m.MeterNumber, &m.Category,
		&m.SubscriberName, &m.Address, &m.Record, &m.Block, &m.Property,
		&m.PreviousReading, &m.PreviousReadingDate,
		&m.CurrentAmount, &m.Debts, &m.TotalAmount, &m.ReaderID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meter: %w", err)
	}
	return &m, nil
}

// MetersByReader returns the reader's meters in route order, each paired
// with its most recent reading
func (s *PostgresStorage) MetersByReader(ctx context.Context, readerID string) ([]MeterWithReading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+meterColumns+`
		FROM meters WHERE reader_id = $1
		ORDER BY sequence`, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var meters []MeterWithReading
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		meters = append(meters, MeterWithReading{MeterRecord: *m})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meters: %w", err)
	}

	for i := range meters {
		latest, err := s.LatestReadingByMeter(ctx, meters[i].ID)
		if err != nil {
			return nil, err
		}
		meters[i].LatestReading = latest
	}

	return meters, nil
}

// MeterByID returns a single meter, or nil when absent
func (s *PostgresStorage) MeterByID(ctx context.Context, id string) (*MeterRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+meterColumns+` FROM meters WHERE id = $1`, id)
	return scanMeter(row)
}

// CreateMeter registers a meter and returns the stored row
func (s *PostgresStorage) CreateMeter(ctx context.Context, nm NewMeter) (*MeterRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO meters (account_number, sequence, meter_number, category, subscriber_name,
			address, record, block, property, previous_reading, previous_reading_date,
			current_amount, debts, total_amount, reader_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13::numeric, $14::numeric, $15)
		RETURNING `+meterColumns,
		nm.AccountNumber, nm.Sequence, nm.MeterNumber, nm.Category, nm.SubscriberName,
		nm.Address, nm.Record, nm.Block, nm.Property, nm.PreviousReading, nm.PreviousReadingDate,
		nm.CurrentAmount, nm.Debts, nm.TotalAmount, nm.ReaderID)
	m, err := scanMeter(row)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("failed to create meter: no row returned")
	}
	return m, nil
}

const readingColumns = `id::text, meter_id::text, reader_id::text, new_reading, photo_path, notes,
	skip_reason, is_completed, reading_date, latitude::text, longitude::text, created_at`

func scanReading(row pgx.Row) (*ReadingRecord, error) {
	var r ReadingRecord
	err := row.Scan(&r.ID, &r.MeterID, &r.ReaderID, &r.NewReading, &r.PhotoPath, &r.Notes,
		&r.SkipReason, &r.IsCompleted, &r.ReadingDate, &r.Latitude, &r.Longitude, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	return &r, nil
}

func (s *PostgresStorage) queryReadings(ctx context.Context, query string, args ...any) ([]ReadingRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []ReadingRecord
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	return readings, nil
}

// ReadingsByMeter returns every reading for a meter, newest first
func (s *PostgresStorage) ReadingsByMeter(ctx context.Context, meterID string) ([]ReadingRecord, error) {
	return s.queryReadings(ctx, `
		SELECT `+readingColumns+` FROM readings
		WHERE meter_id = $1 ORDER BY created_at DESC`, meterID)
}

// ReadingsByReader returns every reading captured by a reader, newest first
func (s *PostgresStorage) ReadingsByReader(ctx context.Context, readerID string) ([]ReadingRecord, error) {
	return s.queryReadings(ctx, `
		SELECT `+readingColumns+` FROM readings
		WHERE reader_id = $1 ORDER BY created_at DESC`, readerID)
}

// LatestReadingByMeter returns the most recent reading for a meter, or nil
func (s *PostgresStorage) LatestReadingByMeter(ctx context.Context, meterID string) (*ReadingRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+readingColumns+` FROM readings
		WHERE meter_id = $1 ORDER BY created_at DESC LIMIT 1`, meterID)
	return scanReading(row)
}

// CreateReading inserts a reading row. Duplicate submissions from a
// retried sync produce additional rows; the client avoids retrying items
// it has already marked synced.
func (s *PostgresStorage) CreateReading(ctx context.Context, req CreateReadingRequest) (*ReadingRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO readings (meter_id, reader_id, new_reading, photo_path, notes, skip_reason, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric)
		RETURNING `+readingColumns,
		req.MeterID, req.ReaderID, req.NewReading, req.PhotoPath, req.Notes, req.SkipReason,
		req.Latitude, req.Longitude)
	r, err := scanReading(row)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("failed to create reading: no row returned")
	}
	return r, nil
}
