// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/abdulazizh/Meter-Reader/internal/auth"
)

// ErrorResponse is the error body returned by every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPHandlers provides the HTTP API consumed by the mobile client
type HTTPHandlers struct {
	storage      Storage
	photos       *PhotoStore
	jwtAuth      *JWTAuth
	serverDomain string
	appName      string
	version      string
	tokenExpiry  time.Duration
	logger       *slog.Logger
}

// HandlerConfig holds configuration for the HTTP handlers
type HandlerConfig struct {
	ServerDomain string        // Advertised via GET /api/config
	AppName      string        // Deployment name advertised via GET /api/config
	Version      string        // App version advertised via GET /api/config
	TokenExpiry  time.Duration // Reader session token lifetime
}

// NewHTTPHandlers creates a new instance of the API handlers
func NewHTTPHandlers(storage Storage, photos *PhotoStore, jwtAuth *JWTAuth, cfg *HandlerConfig, logger *slog.Logger) *HTTPHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &HandlerConfig{}
	}
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}
	tokenExpiry := cfg.TokenExpiry
	if tokenExpiry == 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &HTTPHandlers{
		storage:      storage,
		photos:       photos,
		jwtAuth:      jwtAuth,
		serverDomain: cfg.ServerDomain,
		appName:      cfg.AppName,
		version:      version,
		tokenExpiry:  tokenExpiry,
		logger:       logger,
	}
}

// Routes returns the full API route table
func (h *HTTPHandlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/config", h.HandleConfig)
	mux.HandleFunc("POST /api/login", h.HandleLogin)
	mux.HandleFunc("POST /api/seed", h.HandleSeed)

	mux.HandleFunc("GET /api/photo/{name}", h.HandleGetPhoto)
	mux.HandleFunc("GET /api/meters/{readerId}", h.HandleMetersByReader)
	mux.HandleFunc("GET /api/meters/{readerId}/check-sync", h.HandleCheckSync)
	mux.HandleFunc("GET /api/meter/{id}", h.HandleMeterByID)
	mux.HandleFunc("GET /api/readings/{meterId}", h.HandleReadingsByMeter)
	mux.HandleFunc("GET /api/reader/{id}", h.HandleReaderDetail)
	mux.HandleFunc("GET /api/export/{readerId}", h.HandleExport)

	// Mutating endpoints require a reader session token
	mux.Handle("POST /api/readings", h.jwtAuth.Middleware(http.HandlerFunc(h.HandleCreateReading)))
	mux.Handle("POST /api/upload-photo", h.jwtAuth.Middleware(http.HandlerFunc(h.HandleUploadPhoto)))

	return mux
}

// HandleHealth responds to liveness probes
func (h *HTTPHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleConfig serves the remote configuration document
func (h *HTTPHandlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ConfigResponse{
		ServerDomain: h.serverDomain,
		AppName:      h.appName,
		Version:      h.version,
		UpdatedAt:    time.Now().UTC(),
	})
}

// HandleLogin authenticates a reader and issues a session token
func (h *HTTPHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoginRequest
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, LoginResponse{Success: false, Error: "اسم المستخدم وكلمة المرور مطلوبان"})
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeJSON(w, http.StatusBadRequest, LoginResponse{Success: false, Error: "اسم المستخدم وكلمة المرور مطلوبان"})
		return
	}

	reader, err := h.storage.ReaderByUsername(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("Login lookup failed", "error", err, "username", req.Username)
		h.writeJSON(w, http.StatusInternalServerError, LoginResponse{Success: false, Error: "حدث خطأ في الخادم"})
		return
	}
	if reader == nil {
		h.writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Error: "اسم المستخدم غير موجود"})
		return
	}
	if reader.Password != req.Password {
		h.writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Error: "كلمة المرور غير صحيحة"})
		return
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}
	token, err := h.jwtAuth.GenerateToken(reader.ID, deviceID, h.tokenExpiry)
	if err != nil {
		h.logger.Error("Token generation failed", "error", err, "reader_id", reader.ID)
		h.writeJSON(w, http.StatusInternalServerError, LoginResponse{Success: false, Error: "حدث خطأ في الخادم"})
		return
	}

	h.writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Reader:  reader.Profile(),
		Token:   token,
	})
}

// HandleSeed creates the demo reader and sample meters if missing
func (h *HTTPHandlers) HandleSeed(w http.ResponseWriter, r *http.Request) {
	resp, err := SeedDemoData(r.Context(), h.storage)
	if err != nil {
		h.logger.Error("Seeding failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to seed data")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleMetersByReader returns the reader's meters with latest readings
func (h *HTTPHandlers) HandleMetersByReader(w http.ResponseWriter, r *http.Request) {
	readerID := r.PathValue("readerId")
	meters, err := h.storage.MetersByReader(r.Context(), readerID)
	if err != nil {
		h.logger.Error("Failed to fetch meters", "error", err, "reader_id", readerID)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch meters")
		return
	}
	if meters == nil {
		meters = []MeterWithReading{}
	}
	h.writeJSON(w, http.StatusOK, meters)
}

// HandleCheckSync returns the ids of the reader's assigned meters so the
// client can detect assignment changes without transferring full rows
func (h *HTTPHandlers) HandleCheckSync(w http.ResponseWriter, r *http.Request) {
	readerID := r.PathValue("readerId")
	meters, err := h.storage.MetersByReader(r.Context(), readerID)
	if err != nil {
		h.logger.Error("Failed to check sync", "error", err, "reader_id", readerID)
		h.writeError(w, http.StatusInternalServerError, "Failed to check sync for meters")
		return
	}

	meterIDs := make([]string, 0, len(meters))
	for _, m := range meters {
		meterIDs = append(meterIDs, m.ID)
	}
	h.writeJSON(w, http.StatusOK, CheckSyncResponse{
		MeterIDs:  meterIDs,
		Timestamp: time.Now().UTC(),
	})
}

// HandleMeterByID returns a single meter
func (h *HTTPHandlers) HandleMeterByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meter, err := h.storage.MeterByID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch meter", "error", err, "meter_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch meter")
		return
	}
	if meter == nil {
		h.writeError(w, http.StatusNotFound, "Meter not found")
		return
	}
	h.writeJSON(w, http.StatusOK, meter)
}

// HandleCreateReading persists one capture event submitted by the sync
// engine. A request carrying a skip reason stores a null reading value
// and no photo; otherwise a reading value is required.
func (h *HTTPHandlers) HandleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req CreateReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.MeterID == "" || req.ReaderID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if tokenReader, ok := auth.GetReaderID(r.Context()); ok && tokenReader != req.ReaderID {
		deviceID, _ := auth.GetDeviceID(r.Context())
		h.logger.Warn("Reading submitted for a different reader than the session",
			"token_reader", tokenReader,
			"request_reader", req.ReaderID,
			"device_id", deviceID)
		h.writeError(w, http.StatusForbidden, "Reading does not belong to the signed-in reader")
		return
	}

	if req.SkipReason != nil && *req.SkipReason != "" {
		reading, err := h.storage.CreateReading(r.Context(), CreateReadingRequest{
			MeterID:    req.MeterID,
			ReaderID:   req.ReaderID,
			SkipReason: req.SkipReason,
		})
		if err != nil {
			h.logger.Error("Failed to create skip reading", "error", err, "meter_id", req.MeterID)
			h.writeError(w, http.StatusInternalServerError, "Failed to create reading")
			return
		}
		h.writeJSON(w, http.StatusCreated, reading)
		return
	}

	if req.NewReading == nil {
		h.writeError(w, http.StatusBadRequest, "Missing reading value")
		return
	}

	h.logger.Info("Reading sync request received",
		"meter_id", req.MeterID,
		"new_reading", *req.NewReading,
		"has_photo", req.PhotoPath != nil)

	reading, err := h.storage.CreateReading(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to create reading", "error", err, "meter_id", req.MeterID)
		h.writeError(w, http.StatusInternalServerError, "Failed to create reading")
		return
	}

	h.writeJSON(w, http.StatusCreated, reading)
}

// HandleReadingsByMeter returns the reading history of one meter
func (h *HTTPHandlers) HandleReadingsByMeter(w http.ResponseWriter, r *http.Request) {
	meterID := r.PathValue("meterId")
	readings, err := h.storage.ReadingsByMeter(r.Context(), meterID)
	if err != nil {
		h.logger.Error("Failed to fetch readings", "error", err, "meter_id", meterID)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch readings")
		return
	}
	if readings == nil {
		readings = []ReadingRecord{}
	}
	h.writeJSON(w, http.StatusOK, readings)
}

// dataURIPrefix strips an optional data-URI header from base64 payloads
var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// HandleUploadPhoto decodes a base64 photo payload and stores it under
// the requested file name
func (h *HTTPHandlers) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req PhotoUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PhotoBase64 == "" || req.FileName == "" {
		h.writeError(w, http.StatusBadRequest, "Missing photo data or file name")
		return
	}

	raw := dataURIPrefix.ReplaceAllString(req.PhotoBase64, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid base64 photo data")
		return
	}

	storedName, err := h.photos.Save(req.FileName, data)
	if err != nil {
		h.logger.Error("Failed to store photo", "error", err, "file", req.FileName)
		h.writeError(w, http.StatusInternalServerError, "Failed to save photo")
		return
	}

	h.writeJSON(w, http.StatusOK, PhotoUploadResponse{
		Success:   true,
		PhotoPath: storedName,
	})
}

// HandleGetPhoto serves back a previously uploaded photo under the
// name the upload returned
func (h *HTTPHandlers) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	target, err := h.photos.Path(r.PathValue("name"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid photo name")
		return
	}
	if _, err := os.Stat(target); err != nil {
		h.writeError(w, http.StatusNotFound, "Photo not found")
		return
	}
	http.ServeFile(w, r, target)
}

// HandleReaderDetail returns a reader profile with completion stats
func (h *HTTPHandlers) HandleReaderDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reader, err := h.storage.ReaderByID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch reader", "error", err, "reader_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch reader")
		return
	}
	if reader == nil {
		h.writeError(w, http.StatusNotFound, "Reader not found")
		return
	}

	meters, err := h.storage.MetersByReader(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch reader meters", "error", err, "reader_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch reader")
		return
	}
	readings, err := h.storage.ReadingsByReader(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch reader readings", "error", err, "reader_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch reader")
		return
	}

	completed := 0
	for _, m := range meters {
		if m.LatestReading != nil {
			completed++
		}
	}

	h.writeJSON(w, http.StatusOK, ReaderDetailResponse{
		ID:                reader.ID,
		Username:          reader.Username,
		DisplayName:       reader.DisplayName,
		AssignmentVersion: reader.AssignmentVersion,
		Stats: ReaderStats{
			TotalMeters:     len(meters),
			CompletedMeters: completed,
			TotalReadings:   len(readings),
		},
	})
}

// HandleExport returns a reader's full route with nested readings
func (h *HTTPHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	readerID := r.PathValue("readerId")
	meters, err := h.storage.MetersByReader(r.Context(), readerID)
	if err != nil {
		h.logger.Error("Failed to export meters", "error", err, "reader_id", readerID)
		h.writeError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}
	allReadings, err := h.storage.ReadingsByReader(r.Context(), readerID)
	if err != nil {
		h.logger.Error("Failed to export readings", "error", err, "reader_id", readerID)
		h.writeError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	export := ExportResponse{
		ExportDate:        time.Now().UTC(),
		ReaderID:          readerID,
		TotalMeters:       len(meters),
		CompletedReadings: len(allReadings),
		Meters:            make([]ExportMeter, 0, len(meters)),
	}

	for _, m := range meters {
		em := ExportMeter{
			AccountNumber:  m.AccountNumber,
			Sequence:       m.Sequence,
			MeterNumber:    m.MeterNumber,
			Category:       m.Category,
			SubscriberName: m.SubscriberName,
			Address: ExportAddress{
				Record:   m.Record,
				Block:    m.Block,
				Property: m.Property,
			},
			PreviousReading:     m.PreviousReading,
			PreviousReadingDate: m.PreviousReadingDate,
			Amounts: ExportAmounts{
				CurrentAmount: m.CurrentAmount,
				Debts:         m.Debts,
				TotalAmount:   m.TotalAmount,
			},
			Readings: []ExportReading{},
		}
		for _, reading := range allReadings {
			if reading.MeterID == m.ID {
				em.Readings = append(em.Readings, ExportReading{
					NewReading: reading.NewReading,
					PhotoPath:  reading.PhotoPath,
					Notes:      reading.Notes,
					SkipReason: reading.SkipReason,
					CreatedAt:  reading.CreatedAt,
				})
			}
		}
		export.Meters = append(export.Meters, em)
	}

	h.writeJSON(w, http.StatusOK, export)
}

func (h *HTTPHandlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
