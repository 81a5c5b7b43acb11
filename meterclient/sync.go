// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// ErrSyncInProgress is returned when a sync is triggered while a
// previous run has not finished. Overlapping runs could submit the
// same unsynced reading twice.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncResult aggregates the outcome of one sync run
type SyncResult struct {
	SuccessCount int
	FailCount    int
	Errors       []string
}

// Engine uploads pending readings to the server, exactly one logical
// submission per reading. It is triggered explicitly by user action,
// never from a background loop.
type Engine struct {
	store  *Store
	api    *Client
	logger *slog.Logger

	// In-flight guard (atomic): a second trigger while a run is active
	// gets ErrSyncInProgress instead of a duplicate run
	syncing int32
}

// NewEngine creates a sync engine over the local store and API client
func NewEngine(store *Store, api *Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		api:    api,
		logger: logger,
	}
}

// InProgress reports whether a sync run is currently active
func (e *Engine) InProgress() bool {
	return atomic.LoadInt32(&e.syncing) == 1
}

// SyncPendingReadings processes every pending reading sequentially:
// photo upload first (when the reading has one), then the reading
// submission, then the local synced mark. Items are independent; one
// failure never aborts the rest of the queue. An empty pending list is
// success, not an error.
//
// A reading whose submission succeeds is marked synced even when its
// photo upload failed that pass - the photo path falls back to the
// original file name and the image stays in the device gallery. The
// numeric reading is the billing-critical part and must not be held
// hostage by a flaky photo endpoint.
func (e *Engine) SyncPendingReadings(ctx context.Context) (*SyncResult, error) {
	if !atomic.CompareAndSwapInt32(&e.syncing, 0, 1) {
		return nil, ErrSyncInProgress
	}
	defer atomic.StoreInt32(&e.syncing, 0)

	pending := e.store.PendingReadings(ctx)
	result := &SyncResult{}

	if len(pending) == 0 {
		e.logger.Info("Nothing to sync")
		return result, nil
	}

	e.logger.Info("🔄 Starting sync", "pending", len(pending))

	for _, reading := range pending {
		photoPath := reading.PhotoFileName
		if reading.PhotoURI != "" && reading.PhotoFileName != "" {
			uploaded, err := e.api.UploadPhoto(ctx, reading.PhotoURI, reading.PhotoFileName)
			if err != nil {
				// Keep going with the bare file name; a later sync of a
				// still-failing reading will retry the upload
				e.logger.Warn("Photo upload failed, continuing with local file name",
					"reading_id", reading.ID, "error", err)
			} else {
				photoPath = uploaded
			}
		}

		if _, err := e.api.SubmitReading(ctx, buildSubmission(reading, photoPath)); err != nil {
			e.logger.Error("Failed to sync reading", "reading_id", reading.ID, "error", err)
			result.FailCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("فشل رفع قراءة %s: %v", reading.MeterID, err))
			continue
		}

		e.store.MarkReadingSynced(ctx, reading.ID)
		result.SuccessCount++
		e.logger.Info("Reading synced", "reading_id", reading.ID, "meter_id", reading.MeterID)
	}

	e.logger.Info("✅ Sync finished",
		"success", result.SuccessCount,
		"failed", result.FailCount)

	return result, nil
}

// buildSubmission maps a locally stored reading to the wire request
func buildSubmission(r Reading, photoPath string) meterserver.CreateReadingRequest {
	req := meterserver.CreateReadingRequest{
		MeterID:    r.MeterID,
		ReaderID:   r.ReaderID,
		NewReading: r.NewReading,
		Notes:      r.Notes,
		SkipReason: r.SkipReason,
	}
	if photoPath != "" {
		req.PhotoPath = &photoPath
	}
	if r.Latitude != nil {
		lat := strconv.FormatFloat(*r.Latitude, 'f', -1, 64)
		req.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := strconv.FormatFloat(*r.Longitude, 'f', -1, 64)
		req.Longitude = &lon
	}
	return req
}
