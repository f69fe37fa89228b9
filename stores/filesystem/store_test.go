package filesystem

import (
	"context"
	"docsync-server/core"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "data")
	NewStore(base)

	info, err := os.Stat(base)
	if err != nil {
		t.Fatalf("base directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("base path is not a directory")
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "7.json", []byte(`{"ops":[]}`), "application/json"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := store.Get(ctx, "7.json")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got) != `{"ops":[]}` {
		t.Errorf("Get() = %s", got)
	}
}

func TestPut_LeavesNoTemporaryFiles(t *testing.T) {
	base := t.TempDir()
	store := NewStore(base)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Put(ctx, "7.json", []byte("x"), "application/json"); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "7.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "missing.json")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPathTraversal(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	keys := []string{"../escape.json", "a/b.json", "..", ".", ""}
	for _, key := range keys {
		if err := store.Put(ctx, key, []byte("x"), "text/plain"); !errors.Is(err, core.ErrInvalidIdentifier) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidIdentifier", key, err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, core.ErrInvalidIdentifier) {
			t.Errorf("Get(%q) error = %v, want ErrInvalidIdentifier", key, err)
		}
	}
}
