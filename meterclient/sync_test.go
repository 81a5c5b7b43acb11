package meterclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// fakeServer records submissions and lets tests fail selected meters
// or the photo endpoint.
type fakeServer struct {
	mu          sync.Mutex
	submissions []meterserver.CreateReadingRequest
	photos      []string
	failMeters  map[string]bool
	failPhotos  bool
	block       chan struct{} // when set, submissions wait here
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/readings", func(w http.ResponseWriter, r *http.Request) {
		var req meterserver.CreateReadingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		block := f.block
		fail := f.failMeters[req.MeterID]
		f.mu.Unlock()

		if block != nil {
			<-block
		}
		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(meterserver.ErrorResponse{Error: "Failed to save reading"})
			return
		}

		f.mu.Lock()
		f.submissions = append(f.submissions, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meterserver.ReadingRecord{ID: "srv-" + req.MeterID, MeterID: req.MeterID})
	})

	mux.HandleFunc("POST /api/upload-photo", func(w http.ResponseWriter, r *http.Request) {
		var req meterserver.PhotoUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		failPhotos := f.failPhotos
		if !failPhotos {
			f.photos = append(f.photos, req.FileName)
		}
		f.mu.Unlock()

		if failPhotos {
			http.Error(w, "photo storage unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meterserver.PhotoUploadResponse{PhotoPath: "/uploads/" + req.FileName})
	})

	return mux
}

func (f *fakeServer) submittedMeters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.submissions))
	for _, s := range f.submissions {
		ids = append(ids, s.MeterID)
	}
	return ids
}

func newTestEngine(t *testing.T, fake *fakeServer) (*Engine, *Store) {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newTestStore(t)
	api := NewClient(server.URL, func(ctx context.Context) (string, error) {
		return "test-token", nil
	}, logger)
	return NewEngine(store, api, logger), store
}

func writeTestPhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))
	return path
}

func TestSyncPendingReadings_EmptyQueueIsSuccess(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeServer{})

	result, err := engine.SyncPendingReadings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.SuccessCount)
	require.Equal(t, 0, result.FailCount)
	require.Empty(t, result.Errors)
}

func TestSyncPendingReadings_DrainsQueue(t *testing.T) {
	fake := &fakeServer{}
	engine, store := newTestEngine(t, fake)
	ctx := context.Background()

	photo := writeTestPhoto(t)
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(150),
		PhotoURI: photo, PhotoFileName: "1001_1_1700000000000.jpg",
	}))
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-2", MeterID: "m-2", ReaderID: "reader-1", NewReading: intPtr(250),
		PhotoURI: photo, PhotoFileName: "2002_2_1700000000001.jpg",
	}))

	result, err := engine.SyncPendingReadings(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 0, result.FailCount)
	require.Equal(t, 0, store.PendingCount(ctx))

	// Each reading carried its server-confirmed photo path
	require.Len(t, fake.submissions, 2)
	for _, sub := range fake.submissions {
		require.NotNil(t, sub.PhotoPath)
		require.Contains(t, *sub.PhotoPath, "/uploads/")
	}
}

func TestSyncPendingReadings_OneFailureDoesNotAbortRest(t *testing.T) {
	fake := &fakeServer{failMeters: map[string]bool{"m-bad": true}}
	engine, store := newTestEngine(t, fake)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-good-1", ReaderID: "reader-1", NewReading: intPtr(100), CreatedAt: base,
	}))
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-2", MeterID: "m-bad", ReaderID: "reader-1", NewReading: intPtr(200), CreatedAt: base.Add(time.Minute),
	}))
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-3", MeterID: "m-good-2", ReaderID: "reader-1", NewReading: intPtr(300), CreatedAt: base.Add(2 * time.Minute),
	}))

	result, err := engine.SyncPendingReadings(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "m-bad")

	// The failed reading stays pending for the next run
	pending := store.PendingReadings(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, "r-2", pending[0].ID)
	require.ElementsMatch(t, []string{"m-good-1", "m-good-2"}, fake.submittedMeters())

	// A later run retries only that reading
	fake.mu.Lock()
	fake.failMeters = nil
	fake.mu.Unlock()

	result, err = engine.SyncPendingReadings(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 0, store.PendingCount(ctx))
}

func TestSyncPendingReadings_PhotoFailureFallsBackToFileName(t *testing.T) {
	fake := &fakeServer{failPhotos: true}
	engine, store := newTestEngine(t, fake)
	ctx := context.Background()

	photo := writeTestPhoto(t)
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(150),
		PhotoURI: photo, PhotoFileName: "1001_1_1700000000000.jpg",
	}))

	result, err := engine.SyncPendingReadings(ctx)
	require.NoError(t, err)

	// The reading still goes through; the photo path degrades to the
	// bare file name
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 0, result.FailCount)
	require.Equal(t, 0, store.PendingCount(ctx))

	require.Len(t, fake.submissions, 1)
	require.NotNil(t, fake.submissions[0].PhotoPath)
	require.Equal(t, "1001_1_1700000000000.jpg", *fake.submissions[0].PhotoPath)
}

func TestSyncPendingReadings_SkipEventHasNoReadingValue(t *testing.T) {
	fake := &fakeServer{}
	engine, store := newTestEngine(t, fake)
	ctx := context.Background()

	reason := "العداد مغلق"
	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", SkipReason: &reason,
	}))

	result, err := engine.SyncPendingReadings(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)

	require.Len(t, fake.submissions, 1)
	require.Nil(t, fake.submissions[0].NewReading)
	require.NotNil(t, fake.submissions[0].SkipReason)
	require.Equal(t, reason, *fake.submissions[0].SkipReason)
}

func TestSyncPendingReadings_SecondTriggerWhileRunning(t *testing.T) {
	fake := &fakeServer{block: make(chan struct{})}
	engine, store := newTestEngine(t, fake)
	ctx := context.Background()

	require.True(t, store.SaveReading(ctx, Reading{
		ID: "r-1", MeterID: "m-1", ReaderID: "reader-1", NewReading: intPtr(100),
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := engine.SyncPendingReadings(ctx)
		require.NoError(t, err)
	}()

	// Wait until the first run is inside the server call
	require.Eventually(t, engine.InProgress, 2*time.Second, 5*time.Millisecond)

	_, err := engine.SyncPendingReadings(ctx)
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(fake.block)
	<-done

	require.False(t, engine.InProgress())
	require.Equal(t, 0, store.PendingCount(ctx))
}
