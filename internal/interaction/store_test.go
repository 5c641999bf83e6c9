package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := &Interaction{
		SessionID:  "sess_1",
		Mode:       "transcribe",
		Transcript: "hello world",
		Audio:      []byte("RIFF"),
		DurationMs: 1200,
	}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected ID to be set")
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Transcript != "hello world" || string(got.Audio) != "RIFF" || got.DurationMs != 1200 {
		t.Errorf("unexpected interaction %+v", got)
	}
	if got.Failed() {
		t.Error("expected successful interaction")
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListRecent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, text := range []string{"first", "second", "third"} {
		rec := &Interaction{
			SessionID:  "sess",
			Mode:       "transcribe",
			Transcript: text,
			Audio:      []byte{1, 2, 3},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	recs, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(recs))
	}
	if recs[0].Transcript != "third" || recs[1].Transcript != "second" {
		t.Errorf("expected newest first, got %q, %q", recs[0].Transcript, recs[1].Transcript)
	}
	if len(recs[0].Audio) != 0 {
		t.Error("expected audio to be omitted from listing")
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	old := &Interaction{SessionID: "a", Mode: "edit", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &Interaction{SessionID: "b", Mode: "edit", ErrorMessage: "boom", CreatedAt: now}
	_ = store.Create(ctx, old)
	_ = store.Create(ctx, fresh)

	n, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if _, err := store.GetByID(ctx, old.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected old interaction gone, got %v", err)
	}
	got, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Failed() {
		t.Error("expected failed interaction")
	}
}
