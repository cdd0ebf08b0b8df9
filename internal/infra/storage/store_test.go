package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"home-hub/internal/application"
	"home-hub/internal/infra/storage"
)

func stores(t *testing.T) map[string]application.DocumentStore {
	t.Helper()

	file, err := storage.NewFileStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	db, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "hub.db"))
	if err != nil {
		t.Fatalf("creating sqlite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]application.DocumentStore{"file": file, "sqlite": db}
}

func TestDocumentStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load(ctx, application.DeviceDocument); !errors.Is(err, application.ErrDocumentNotFound) {
				t.Fatalf("missing document: got %v, want ErrDocumentNotFound", err)
			}

			first := []byte(`{"living_room":{"relay1":{"label":"Main Light","status":"OFF"}}}`)
			if err := store.Save(ctx, application.DeviceDocument, first); err != nil {
				t.Fatalf("saving: %v", err)
			}
			second := []byte(`{"living_room":{"relay1":{"label":"Main Light","status":"ON"}}}`)
			if err := store.Save(ctx, application.DeviceDocument, second); err != nil {
				t.Fatalf("overwriting: %v", err)
			}

			got, err := store.Load(ctx, application.DeviceDocument)
			if err != nil {
				t.Fatalf("loading: %v", err)
			}
			if string(got) != string(second) {
				t.Errorf("loaded document: got %s, want %s", got, second)
			}

			if _, err := store.Load(ctx, application.ModeDocument); !errors.Is(err, application.ErrDocumentNotFound) {
				t.Errorf("documents are keyed independently, got %v", err)
			}
		})
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.Save(context.Background(), "modes", []byte(`[]`)); err != nil {
		t.Fatalf("saving: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "modes.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents: %v", names)
	}
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := store.Save(context.Background(), "../escape", []byte(`{}`)); err == nil {
		t.Error("expected error for key with path separators")
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.db")
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := store.Save(ctx, "device_room_map", []byte(`{"kitchen":"esp-01"}`)); err != nil {
		t.Fatalf("saving: %v", err)
	}
	store.Close()

	reopened, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx, "device_room_map")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if string(got) != `{"kitchen":"esp-01"}` {
		t.Errorf("loaded: %s", got)
	}
}
