// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
)

type contextKey string

const (
	deviceIDKey contextKey = "device_id"
	readerIDKey contextKey = "reader_id"
)

// SetDeviceID sets the device ID in the context
func SetDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

// GetDeviceID retrieves the device ID from the context
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(deviceIDKey).(string)
	return deviceID, ok
}

// SetReaderID sets the reader ID in the context
func SetReaderID(ctx context.Context, readerID string) context.Context {
	return context.WithValue(ctx, readerIDKey, readerID)
}

// GetReaderID retrieves the reader ID from the context
func GetReaderID(ctx context.Context) (string, bool) {
	readerID, ok := ctx.Value(readerIDKey).(string)
	return readerID, ok
}

// SetAuthContext sets both reader and device ID in context
func SetAuthContext(ctx context.Context, readerID, deviceID string) context.Context {
	ctx = SetReaderID(ctx, readerID)
	ctx = SetDeviceID(ctx, deviceID)
	return ctx
}
