package memory

import (
	"context"
	"docsync-server/core"
	"errors"
	"testing"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewStore()

	_, err := store.Get(context.Background(), "missing.json")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	data := []byte(`{"ops":[{"insert":"Hello"}]}`)
	if err := store.Put(ctx, "7.json", data, "application/json"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// Mutating the caller's slice must not change the stored blob.
	data[0] = 'X'

	got, err := store.Get(ctx, "7.json")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got) != `{"ops":[{"insert":"Hello"}]}` {
		t.Errorf("Get() = %s", got)
	}
}

func TestPut_Overwrite(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.Put(ctx, "k", []byte("one"), "text/plain")
	_ = store.Put(ctx, "k", []byte("two"), "text/plain")

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Get() = %q, want %q", got, "two")
	}
}

func TestCredentials(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	store.SetToken("u1", "secret")
	store.SetDocument("7", "u1", true)
	store.SetChapterOwner("12", "u1")
	store.Share("7", "u2", false)

	if token, err := store.LookupToken(ctx, "u1"); err != nil || token != "secret" {
		t.Errorf("LookupToken() = %q, %v", token, err)
	}
	if _, err := store.LookupToken(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LookupToken() error = %v, want ErrNotFound", err)
	}

	doc, err := store.LookupDocument(ctx, "7")
	if err != nil {
		t.Fatalf("LookupDocument() failed: %v", err)
	}
	if doc.Owner != "u1" || !doc.Private {
		t.Errorf("LookupDocument() = %+v", doc)
	}

	if owner, err := store.LookupChapterCourseOwner(ctx, "12"); err != nil || owner != "u1" {
		t.Errorf("LookupChapterCourseOwner() = %q, %v", owner, err)
	}

	perm, err := store.LookupSharePermission(ctx, "7", "u2")
	if err != nil {
		t.Fatalf("LookupSharePermission() failed: %v", err)
	}
	if perm.WriteAccess {
		t.Error("expected read-only share")
	}
	if _, err := store.LookupSharePermission(ctx, "7", "u3"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LookupSharePermission() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateName(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.SetDocument("7", "u1", false)

	if err := store.UpdateName(ctx, core.FileTypeDocument, "7", "Notes"); err != nil {
		t.Fatalf("UpdateName() failed: %v", err)
	}
	if got := store.Name(core.FileTypeDocument, "7"); got != "Notes" {
		t.Errorf("Name() = %q, want %q", got, "Notes")
	}
	if err := store.UpdateName(ctx, core.FileTypeChapter, "99", "x"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateName() error = %v, want ErrNotFound", err)
	}
}
