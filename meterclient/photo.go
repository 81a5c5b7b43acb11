// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterclient

import (
	"fmt"
	"regexp"
	"time"
)

// unsafeFileChars matches everything that may not appear in a remote
// photo file name. Account numbers and sequences are user-entered and
// can carry filesystem-unsafe characters.
var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// sanitizeFilePart replaces filesystem-unsafe characters with underscores
func sanitizeFilePart(s string) string {
	return unsafeFileChars.ReplaceAllString(s, "_")
}

// PhotoFileName builds the deterministic remote name for a captured
// photo: sanitized account number, sanitized sequence, and the capture
// timestamp in millisecond epoch. Two captures for the same meter at
// different milliseconds always get distinct names; no coordination
// with the server is needed.
func PhotoFileName(accountNumber, sequence string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d.jpg",
		sanitizeFilePart(accountNumber),
		sanitizeFilePart(sequence),
		at.UnixMilli())
}
