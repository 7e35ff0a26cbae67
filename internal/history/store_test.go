package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := s.Record(ctx, Run{
			ID:          fmt.Sprintf("run-%d", i),
			Kind:        "speech",
			Status:      "ok",
			Language:    "pt-BR",
			TextChars:   100 * (i + 1),
			Chunks:      i + 1,
			OutputBytes: 1000,
			DurationMS:  250,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := s.Record(ctx, Run{ID: "run-fail", Kind: "video", Status: "error", Error: "video synthesis failed", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Recent() returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-fail" || runs[0].Error != "video synthesis failed" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].ID != "run-2" || runs[1].Chunks != 3 || runs[1].TextChars != 300 {
		t.Errorf("second run = %+v", runs[1])
	}
	if !runs[1].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", runs[1].CreatedAt)
	}
}

func TestStore_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, Run{ID: fmt.Sprintf("run-%d", i), Kind: "speech", Status: "ok", CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Prune() removed %d, want 3", n)
	}

	runs, _ := s.Recent(ctx, 10)
	if len(runs) != 2 || runs[0].ID != "run-4" || runs[1].ID != "run-3" {
		t.Errorf("remaining runs = %+v", runs)
	}
}

func TestStore_Disabled(t *testing.T) {
	s, err := Open(context.Background(), "", testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Enabled() {
		t.Error("store with empty path should be disabled")
	}

	ctx := context.Background()
	if err := s.Record(ctx, Run{ID: "x"}); err != nil {
		t.Errorf("Record() error = %v", err)
	}
	if runs, err := s.Recent(ctx, 10); err != nil || runs != nil {
		t.Errorf("Recent() = %v, %v", runs, err)
	}
	if n, err := s.Prune(ctx, 0); err != nil || n != 0 {
		t.Errorf("Prune() = %d, %v", n, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
