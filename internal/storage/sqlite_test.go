package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/hondana/internal/models"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	store, err := NewSQLiteHistory(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteHistory_RecordAndRecent(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, q := range []string{"go", "rust", "go AND channels"} {
		e := &models.HistoryEntry{Query: q, Page: 1, Total: 10 * i, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.ID == "" {
			t.Error("ID should be assigned")
		}
	}
	if err := store.Record(ctx, &models.HistoryEntry{Query: "broken", Page: 1, Failed: true, CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Query != "broken" || !got[0].Failed {
		t.Errorf("newest entry = %+v", got[0])
	}
	if got[1].Query != "go AND channels" || got[1].Total != 20 {
		t.Errorf("second entry = %+v", got[1])
	}
	if !got[2].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("created_at = %v", got[2].CreatedAt)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}

func TestSQLiteHistory_RecentEmpty(t *testing.T) {
	store := newTestHistory(t)
	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestSQLiteHistory_Prune(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, &models.HistoryEntry{Query: string(rune('a' + i)), Page: 1, CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	got, _ := store.Recent(ctx, 10)
	if len(got) != 2 || got[0].Query != "e" || got[1].Query != "d" {
		t.Errorf("kept entries = %+v", got)
	}
}

func TestSQLiteHistory_ClearAndSize(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()
	if err := store.Record(ctx, &models.HistoryEntry{Query: "go", Page: 2, Total: 31}); err != nil {
		t.Fatal(err)
	}
	size, err := store.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size <= 0 {
		t.Errorf("Size = %d, want > 0", size)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := store.Count(ctx)
	if n != 0 {
		t.Errorf("Count after Clear = %d", n)
	}
}
