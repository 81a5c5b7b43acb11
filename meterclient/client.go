// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// Client is the typed HTTP client for the meter-reading API
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   func(context.Context) (string, error) // returns the reader's session JWT, nil when signed out
	logger  *slog.Logger
}

// NewClient creates an API client for the given server base URL
func NewClient(baseURL string, tok func(ctx context.Context) (string, error), logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 120 * time.Second},
		Token:   tok,
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		var apiErr meterserver.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Login authenticates a reader and returns the profile plus session token
func (c *Client) Login(ctx context.Context, username, password, deviceID string) (*meterserver.LoginResponse, error) {
	req := struct {
		meterserver.LoginRequest
		DeviceID string `json:"deviceId"`
	}{
		LoginRequest: meterserver.LoginRequest{Username: username, Password: password},
		DeviceID:     deviceID,
	}

	var resp meterserver.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Reader == nil {
		return nil, fmt.Errorf("login rejected: %s", resp.Error)
	}
	return &resp, nil
}

// Seed asks the server to create the demo reader and route
func (c *Client) Seed(ctx context.Context) (*meterserver.SeedResponse, error) {
	var resp meterserver.SeedResponse
	if err := c.do(ctx, http.MethodPost, "/api/seed", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMeters fetches the reader's assigned meters with latest readings
func (c *Client) FetchMeters(ctx context.Context, readerID string) ([]meterserver.MeterWithReading, error) {
	var meters []meterserver.MeterWithReading
	if err := c.do(ctx, http.MethodGet, "/api/meters/"+url.PathEscape(readerID), nil, &meters); err != nil {
		return nil, err
	}
	return meters, nil
}

// CheckSync fetches the ids of the reader's currently assigned meters
func (c *Client) CheckSync(ctx context.Context, readerID string) (*meterserver.CheckSyncResponse, error) {
	var resp meterserver.CheckSyncResponse
	if err := c.do(ctx, http.MethodGet, "/api/meters/"+url.PathEscape(readerID)+"/check-sync", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchConfig fetches the remote configuration document
func (c *Client) FetchConfig(ctx context.Context) (*meterserver.ConfigResponse, error) {
	var resp meterserver.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitReading submits one capture event to the server
func (c *Client) SubmitReading(ctx context.Context, req meterserver.CreateReadingRequest) (*meterserver.ReadingRecord, error) {
	var resp meterserver.ReadingRecord
	if err := c.do(ctx, http.MethodPost, "/api/readings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadPhoto reads the locally captured image, base64-encodes it, and
// sends it to the photo endpoint tagged with the target file name. The
// returned path is the server-confirmed name. Re-uploading the same
// file name overwrites on the server, so retrying after a timeout is
// always safe.
func (c *Client) UploadPhoto(ctx context.Context, localURI, fileName string) (string, error) {
	data, err := os.ReadFile(localURI)
	if err != nil {
		return "", fmt.Errorf("failed to read photo %s: %w", localURI, err)
	}

	req := meterserver.PhotoUploadRequest{
		PhotoBase64: base64.StdEncoding.EncodeToString(data),
		FileName:    fileName,
	}

	var resp meterserver.PhotoUploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload-photo", req, &resp); err != nil {
		return "", err
	}
	if resp.PhotoPath == "" {
		return "", fmt.Errorf("photo upload returned empty path")
	}

	c.logger.Debug("Photo uploaded to server", "file", fileName, "path", resp.PhotoPath)
	return resp.PhotoPath, nil
}
