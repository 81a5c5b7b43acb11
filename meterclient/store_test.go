package meterclient

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewStore(db, logger)
	require.NoError(t, err)
	return store
}

func intPtr(v int) *int { return &v }

func TestNewStore_CreatesSchema(t *testing.T) {
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = NewStore(db, logger)
	require.NoError(t, err)

	for _, table := range []string{"readings", "meters"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, "Table %s should exist", table)
	}

	// Schema creation is idempotent across app restarts
	_, err = NewStore(db, logger)
	require.NoError(t, err)
}

func TestSaveReading_UpsertByIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reading := Reading{
		ID:            "r-1",
		MeterID:       "m-1",
		ReaderID:      "reader-1",
		NewReading:    intPtr(15540),
		PhotoURI:      "/gallery/shot.jpg",
		PhotoFileName: "1234_5_1700000000000.jpg",
		CreatedAt:     time.Now().UTC(),
	}
	require.True(t, store.SaveReading(ctx, reading))
	require.Equal(t, 1, store.PendingCount(ctx))

	// Saving the same identity again replaces the row instead of
	// duplicating it
	reading.NewReading = intPtr(15600)
	require.True(t, store.SaveReading(ctx, reading))
	require.Equal(t, 1, store.PendingCount(ctx))

	pending := store.PendingReadings(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, 15600, *pending[0].NewReading)
	require.True(t, pending[0].IsCompleted)
	require.False(t, pending[0].Synced)
}

func TestSaveReading_ReplaceResetsSyncedFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reading := Reading{ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(100)}
	require.True(t, store.SaveReading(ctx, reading))
	require.True(t, store.MarkReadingSynced(ctx, "r-1"))
	require.Equal(t, 0, store.PendingCount(ctx))

	// A re-capture under the same identity is a new pending edit
	reading.NewReading = intPtr(110)
	require.True(t, store.SaveReading(ctx, reading))
	require.Equal(t, 1, store.PendingCount(ctx))
}

func TestPendingReadings_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"r-old", "r-mid", "r-new"} {
		require.True(t, store.SaveReading(ctx, Reading{
			ID:         id,
			MeterID:    "m-" + id,
			ReaderID:   "reader-1",
			NewReading: intPtr(100 + i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	pending := store.PendingReadings(ctx)
	require.Len(t, pending, 3)
	require.Equal(t, "r-new", pending[0].ID)
	require.Equal(t, "r-mid", pending[1].ID)
	require.Equal(t, "r-old", pending[2].ID)
}

func TestPendingReadings_SameSecondOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A whole-second timestamp and one 500ms later inside the same
	// second. The stored text form must still order chronologically.
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-older", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(100), CreatedAt: base,
	}))
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-newer", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(120), CreatedAt: base.Add(500 * time.Millisecond),
	}))

	pending := store.PendingReadings(ctx)
	require.Len(t, pending, 2)
	require.Equal(t, "r-newer", pending[0].ID)
	require.Equal(t, "r-older", pending[1].ID)

	latest := store.ReadingByMeter(ctx, "m-1")
	require.NotNil(t, latest)
	require.Equal(t, "r-newer", latest.ID)
}

func TestMarkReadingSynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SaveReading(ctx, Reading{ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(50)}))
	require.True(t, store.MarkReadingSynced(ctx, "r-1"))
	require.Equal(t, 0, store.PendingCount(ctx))
	require.Empty(t, store.PendingReadings(ctx))

	// Marking again, or marking an identity that never existed, is a
	// harmless no-op so sync retries stay safe
	require.True(t, store.MarkReadingSynced(ctx, "r-1"))
	require.True(t, store.MarkReadingSynced(ctx, "no-such-reading"))
	require.Equal(t, 0, store.PendingCount(ctx))
}

func TestReadingByMeter_LatestRegardlessOfSyncState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, store.ReadingByMeter(ctx, "m-1"))

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(100), CreatedAt: base,
	}))
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-2", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(120), CreatedAt: base.Add(time.Hour),
	}))
	require.True(t, store.MarkReadingSynced(ctx, "r-2"))

	// The newest reading wins even after it has been synced
	latest := store.ReadingByMeter(ctx, "m-1")
	require.NotNil(t, latest)
	require.Equal(t, "r-2", latest.ID)
	require.True(t, latest.Synced)
}

func TestMetersForReader_CachedListWithLocalOverlay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prevDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	meters := []meterserver.MeterRecord{
		{ID: "m-2", AccountNumber: "2002", Sequence: "2", SubscriberName: "محمد أحمد", PreviousReading: 200, PreviousReadingDate: prevDate, ReaderID: "reader-1"},
		{ID: "m-1", AccountNumber: "1001", Sequence: "1", SubscriberName: "علي حسن", PreviousReading: 100, PreviousReadingDate: prevDate, ReaderID: "reader-1"},
		{ID: "m-9", AccountNumber: "9009", Sequence: "1", SubscriberName: "other route", PreviousReading: 900, PreviousReadingDate: prevDate, ReaderID: "reader-2"},
	}
	for _, m := range meters {
		require.True(t, store.SaveMeterCache(ctx, m))
	}

	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(150), CreatedAt: time.Now().UTC(),
	}))

	list := store.MetersForReader(ctx, "reader-1")
	require.Len(t, list, 2)

	// Route order follows sequence, and only the reader's own meters show
	require.Equal(t, "m-1", list[0].ID)
	require.Equal(t, "m-2", list[1].ID)

	// The local capture shows up as the meter's latest reading
	require.NotNil(t, list[0].LatestReading)
	require.Equal(t, 150, *list[0].LatestReading.NewReading)
	require.Nil(t, list[1].LatestReading)
}

func TestSaveMeterCache_UpsertByIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := meterserver.MeterRecord{ID: "m-1", AccountNumber: "1001", Sequence: "1", PreviousReading: 100, ReaderID: "reader-1"}
	require.True(t, store.SaveMeterCache(ctx, m))

	m.PreviousReading = 180
	require.True(t, store.SaveMeterCache(ctx, m))

	list := store.MetersForReader(ctx, "reader-1")
	require.Len(t, list, 1)
	require.Equal(t, 180, list[0].PreviousReading)
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.SaveReading(ctx, Reading{ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(100)}))
	require.True(t, store.SaveMeterCache(ctx, meterserver.MeterRecord{ID: "m-1", AccountNumber: "1001", ReaderID: "reader-1"}))

	require.True(t, store.ClearAll(ctx))
	require.Equal(t, 0, store.PendingCount(ctx))
	require.Empty(t, store.MetersForReader(ctx, "reader-1"))
}
