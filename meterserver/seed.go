// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import (
	"context"
	"fmt"
	"time"
)

// SeedDemoData ensures the demo reader account and its sample route
// exist. Returns the demo reader's profile and the number of meters
// assigned to it. Calling it repeatedly never duplicates data.
func SeedDemoData(ctx context.Context, storage Storage) (*SeedResponse, error) {
	reader, err := storage.ReaderByUsername(ctx, "demo")
	if err != nil {
		return nil, fmt.Errorf("failed to look up demo reader: %w", err)
	}
	if reader == nil {
		reader, err = storage.CreateReader(ctx, NewReader{
			Username:    "demo",
			Password:    "demo123",
			DisplayName: "قارئ تجريبي",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create demo reader: %w", err)
		}
	}

	existing, err := storage.MetersByReader(ctx, reader.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list demo meters: %w", err)
	}

	count := len(existing)
	if count == 0 {
		prevDate := time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
		samples := []NewMeter{
			{
				AccountNumber: "1001234567", Sequence: "001", MeterNumber: "M-2024-001",
				Category: "سكني", SubscriberName: "أحمد محمد علي",
				Record: "1", Block: "5", Property: "12",
				PreviousReading: 15420, PreviousReadingDate: prevDate,
				CurrentAmount: "45000", Debts: "12500", TotalAmount: "57500",
			},
			{
				AccountNumber: "1001234568", Sequence: "002", MeterNumber: "M-2024-002",
				Category: "تجاري", SubscriberName: "محل الرحمن للتجارة",
				Record: "1", Block: "5", Property: "13",
				PreviousReading: 28750, PreviousReadingDate: prevDate,
				CurrentAmount: "125000", Debts: "0", TotalAmount: "125000",
			},
			{
				AccountNumber: "1001234569", Sequence: "003", MeterNumber: "M-2024-003",
				Category: "صناعي", SubscriberName: "مصنع النور للحديد",
				Record: "1", Block: "5", Property: "14",
				PreviousReading: 45230, PreviousReadingDate: prevDate,
				CurrentAmount: "350000", Debts: "75000", TotalAmount: "425000",
			},
			{
				AccountNumber: "1001234570", Sequence: "004", MeterNumber: "M-2024-004",
				Category: "سكني", SubscriberName: "فاطمة حسن كريم",
				Record: "2", Block: "7", Property: "3",
				PreviousReading: 9830, PreviousReadingDate: prevDate,
				CurrentAmount: "32000", Debts: "8000", TotalAmount: "40000",
			},
			{
				AccountNumber: "1001234571", Sequence: "005", MeterNumber: "M-2024-005",
				Category: "حكومي", SubscriberName: "مدرسة الأمل الابتدائية",
				Record: "2", Block: "7", Property: "4",
				PreviousReading: 67100, PreviousReadingDate: prevDate,
				CurrentAmount: "210000", Debts: "0", TotalAmount: "210000",
			},
		}

		for _, sample := range samples {
			sample.ReaderID = reader.ID
			if _, err := storage.CreateMeter(ctx, sample); err != nil {
				return nil, fmt.Errorf("failed to seed meter %s: %w", sample.AccountNumber, err)
			}
		}
		count = len(samples)
	}

	return &SeedResponse{
		ReaderID:   reader.ID,
		Username:   reader.Username,
		MeterCount: count,
	}, nil
}
