// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import "time"

// REST API models for the meter-reading sync protocol.
// JSON field names match the wire format consumed by the mobile client.

// LoginRequest is the payload for POST /api/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ReaderProfile is the public view of a reader account
type ReaderProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	DisplayName       string `json:"displayName"`
	AssignmentVersion int    `json:"assignmentVersion"`
}

// LoginResponse is returned by POST /api/login
type LoginResponse struct {
	Success bool           `json:"success"`
	Reader  *ReaderProfile `json:"reader,omitempty"`
	Token   string         `json:"token,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// MeterRecord is the wire representation of a billing meter
type MeterRecord struct {
	ID                  string    `json:"id"`
	AccountNumber       string    `json:"accountNumber"`
	Sequence            string    `json:"sequence"`
	MeterNumber         string    `json:"meterNumber"`
	Category            string    `json:"category"`
	SubscriberName      string    `json:"subscriberName"`
	Address             string    `json:"address"`
	Record              string    `json:"record"`
	Block               string    `json:"block"`
	Property            string    `json:"property"`
	PreviousReading     int       `json:"previousReading"`
	PreviousReadingDate time.Time `json:"previousReadingDate"`
	CurrentAmount       string    `json:"currentAmount"`
	Debts               string    `json:"debts"`
	TotalAmount         string    `json:"totalAmount"`
	ReaderID            string    `json:"readerId"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ReadingRecord is the wire representation of one capture event.
// NewReading is null when the meter was skipped; SkipReason is null for a
// normal reading. Latitude/Longitude travel as decimal strings.
type ReadingRecord struct {
	ID          string    `json:"id"`
	MeterID     string    `json:"meterId"`
	ReaderID    string    `json:"readerId"`
	NewReading  *int      `json:"newReading"`
	PhotoPath   *string   `json:"photoPath"`
	Notes       *string   `json:"notes"`
	SkipReason  *string   `json:"skipReason"`
	IsCompleted bool      `json:"isCompleted"`
	ReadingDate time.Time `json:"readingDate"`
	Latitude    *string   `json:"latitude"`
	Longitude   *string   `json:"longitude"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MeterWithReading pairs a meter with its most recent reading, if any
type MeterWithReading struct {
	MeterRecord
	LatestReading *ReadingRecord `json:"latestReading"`
}

// CreateReadingRequest is the payload for POST /api/readings.
// Exactly one of NewReading / SkipReason is expected for a meaningful
// capture; the handler enforces this.
type CreateReadingRequest struct {
	MeterID    string  `json:"meterId"`
	ReaderID   string  `json:"readerId"`
	NewReading *int    `json:"newReading"`
	PhotoPath  *string `json:"photoPath"`
	Notes      *string `json:"notes"`
	SkipReason *string `json:"skipReason"`
	Latitude   *string `json:"latitude"`
	Longitude  *string `json:"longitude"`
}

// PhotoUploadRequest is the payload for POST /api/upload-photo
type PhotoUploadRequest struct {
	PhotoBase64 string `json:"photoBase64"`
	FileName    string `json:"fileName"`
}

// PhotoUploadResponse is returned by POST /api/upload-photo
type PhotoUploadResponse struct {
	Success   bool   `json:"success"`
	PhotoPath string `json:"photoPath"`
}

// CheckSyncResponse is returned by GET /api/meters/{readerId}/check-sync
type CheckSyncResponse struct {
	MeterIDs  []string  `json:"meterIds"`
	Timestamp time.Time `json:"timestamp"`
}

// ConfigResponse is returned by GET /api/config
type ConfigResponse struct {
	ServerDomain string    `json:"serverDomain"`
	AppName      string    `json:"appName,omitempty"`
	Version      string    `json:"version"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ReaderStats summarizes a reader's progress
type ReaderStats struct {
	TotalMeters     int `json:"totalMeters"`
	CompletedMeters int `json:"completedMeters"`
	TotalReadings   int `json:"totalReadings"`
}

// ReaderDetailResponse is returned by GET /api/reader/{id}
type ReaderDetailResponse struct {
	ID                string      `json:"id"`
	Username          string      `json:"username"`
	DisplayName       string      `json:"displayName"`
	AssignmentVersion int         `json:"assignmentVersion"`
	Stats             ReaderStats `json:"stats"`
}

// ExportAddress groups the address components in export output
type ExportAddress struct {
	Record   string `json:"record"`
	Block    string `json:"block"`
	Property string `json:"property"`
}

// ExportAmounts groups the billing amounts in export output
type ExportAmounts struct {
	CurrentAmount string `json:"currentAmount"`
	Debts         string `json:"debts"`
	TotalAmount   string `json:"totalAmount"`
}

// ExportReading is one reading row in export output
type ExportReading struct {
	NewReading *int      `json:"newReading"`
	PhotoPath  *string   `json:"photoPath"`
	Notes      *string   `json:"notes"`
	SkipReason *string   `json:"skipReason"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ExportMeter is one meter with its readings in export output
type ExportMeter struct {
	AccountNumber       string          `json:"accountNumber"`
	Sequence            string          `json:"sequence"`
	MeterNumber         string          `json:"meterNumber"`
	Category            string          `json:"category"`
	SubscriberName      string          `json:"subscriberName"`
	Address             ExportAddress   `json:"address"`
	PreviousReading     int             `json:"previousReading"`
	PreviousReadingDate time.Time       `json:"previousReadingDate"`
	Amounts             ExportAmounts   `json:"amounts"`
	Readings            []ExportReading `json:"readings"`
}

// ExportResponse is returned by GET /api/export/{readerId}
type ExportResponse struct {
	ExportDate        time.Time     `json:"exportDate"`
	ReaderID          string        `json:"readerId"`
	TotalMeters       int           `json:"totalMeters"`
	CompletedReadings int           `json:"completedReadings"`
	Meters            []ExportMeter `json:"meters"`
}

// SeedResponse is returned by POST /api/seed
type SeedResponse struct {
	ReaderID   string `json:"readerId"`
	Username   string `json:"username"`
	MeterCount int    `json:"meterCount"`
}
