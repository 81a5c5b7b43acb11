// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package meterclient implements the device side of the meter-reading
// app: a durable SQLite store for captured readings and cached meters,
// photo staging, the user-triggered sync engine, and the merge layer
// that blends locally pending captures into the displayed meter list.
package meterclient

import (
	"strconv"
	"time"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// Reading is one locally captured inspection event. NewReading is nil
// when the meter was skipped; SkipReason is nil for a normal reading.
// The capture flow validates that exactly one of the two is present
// before the row is saved.
type Reading struct {
	ID            string // locally generated identity, independent of any server id
	MeterID       string
	ReaderID      string
	NewReading    *int
	PhotoURI      string  // device-local file path of the captured photo
	PhotoFileName string  // deterministic remote name, see PhotoFileName
	PhotoPath     *string // server-side path, populated after upload
	Notes         *string
	SkipReason    *string
	Latitude      *float64
	Longitude     *float64
	CreatedAt     time.Time
	IsCompleted   bool
	Synced        bool
}

// AsRecord builds the wire representation of this reading for display
// overlays: the shape a server-fetched latest reading would have.
func (r *Reading) AsRecord() *meterserver.ReadingRecord {
	rec := &meterserver.ReadingRecord{
		ID:          r.ID,
		MeterID:     r.MeterID,
		ReaderID:    r.ReaderID,
		NewReading:  r.NewReading,
		Notes:       r.Notes,
		SkipReason:  r.SkipReason,
		IsCompleted: r.IsCompleted,
		ReadingDate: r.CreatedAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.PhotoPath != nil {
		rec.PhotoPath = r.PhotoPath
	} else if r.PhotoFileName != "" {
		name := r.PhotoFileName
		rec.PhotoPath = &name
	}
	if r.Latitude != nil {
		lat := formatCoordinate(*r.Latitude)
		rec.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := formatCoordinate(*r.Longitude)
		rec.Longitude = &lon
	}
	return rec
}

// formatCoordinate renders a decimal-degree coordinate the way the
// server stores it (numeric with 7 fractional digits)
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
