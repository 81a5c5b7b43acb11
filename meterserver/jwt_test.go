package meterserver

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTAuth_GenerateToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	readerID := "test-reader-123"
	deviceID := "test-device-456"
	duration := time.Hour

	token, err := jwtAuth.GenerateToken(readerID, deviceID, duration)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Generated token should not be empty")
	}

	// Verify the token can be parsed
	claims, err := jwtAuth.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate generated token: %v", err)
	}

	if claims.DeviceID != deviceID {
		t.Errorf("Expected device_id %s, got %s", deviceID, claims.DeviceID)
	}

	if claims.Subject != readerID {
		t.Errorf("Expected reader_id %s, got %s", readerID, claims.Subject)
	}

	if claims.Issuer != "meter-reader" {
		t.Errorf("Expected issuer 'meter-reader', got %s", claims.Issuer)
	}

	// Verify token expiration
	if claims.ExpiresAt == nil {
		t.Error("Token should have expiration time")
	}

	expectedExpiry := time.Now().Add(duration)
	actualExpiry := claims.ExpiresAt.Time
	timeDiff := actualExpiry.Sub(expectedExpiry).Abs()

	if timeDiff > time.Second {
		t.Errorf("Token expiry time differs by more than 1 second: expected ~%v, got %v", expectedExpiry, actualExpiry)
	}
}

func TestJWTAuth_ValidateToken_InvalidSecret(t *testing.T) {
	jwtAuth1 := NewJWTAuth("secret-1")
	jwtAuth2 := NewJWTAuth("secret-2")

	// Generate token with first secret
	token, err := jwtAuth1.GenerateToken("test-reader", "test-device", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	// Try to validate with different secret
	_, err = jwtAuth2.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation to fail with different secret")
	}
}

func TestJWTAuth_ValidateToken_ExpiredToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	// Generate token with very short expiration
	token, err := jwtAuth.GenerateToken("test-reader", "test-device", time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	// Wait for token to expire
	time.Sleep(10 * time.Millisecond)

	// Try to validate expired token
	_, err = jwtAuth.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation to fail for expired token")
	}
}

func TestJWTAuth_GetReaderID_FromRequest(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	token, err := jwtAuth.GenerateToken("reader-abc", "device-xyz", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/readings", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	readerID, err := jwtAuth.GetReaderID(req)
	if err != nil {
		t.Fatalf("Failed to extract reader ID: %v", err)
	}
	if readerID != "reader-abc" {
		t.Errorf("Expected reader-abc, got %s", readerID)
	}

	deviceID, err := jwtAuth.GetDeviceID(req)
	if err != nil {
		t.Fatalf("Failed to extract device ID: %v", err)
	}
	if deviceID != "device-xyz" {
		t.Errorf("Expected device-xyz, got %s", deviceID)
	}
}

func TestJWTAuth_GetReaderID_MissingHeader(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	req := httptest.NewRequest("POST", "/api/readings", nil)
	if _, err := jwtAuth.GetReaderID(req); err == nil {
		t.Error("Expected error for request without Authorization header")
	}

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := jwtAuth.GetReaderID(req); err == nil {
		t.Error("Expected error for non-bearer Authorization header")
	}
}
