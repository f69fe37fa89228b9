package core

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by stores when a key or row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIdentifier is returned for ids that cannot form a safe key.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotLoaded is returned when a document is not in the cache.
	ErrNotLoaded = errors.New("document not loaded")
	// ErrEvicted is returned for edits that arrive after the document was drained.
	ErrEvicted = errors.New("document evicted")
	// ErrReadOnly is returned when a read-only connection attempts a mutation.
	ErrReadOnly = errors.New("connection is read-only")
)

type (
	// BlobStore is durable key/value storage for document snapshots and
	// published artifacts.
	BlobStore interface {
		// Get returns ErrNotFound (possibly wrapped) when the key is absent.
		Get(ctx context.Context, key string) ([]byte, error)
		Put(ctx context.Context, key string, data []byte, contentType string) error
	}

	// DocumentRecord is the relational row describing a standalone document.
	DocumentRecord struct {
		Owner   string
		Private bool
	}

	// SharePermission is a sharing grant of a document to a user.
	SharePermission struct {
		WriteAccess bool
	}

	// CredentialStore answers the authorization queries. Every lookup returns
	// ErrNotFound when the row does not exist.
	CredentialStore interface {
		LookupToken(ctx context.Context, userID string) (string, error)
		LookupChapterCourseOwner(ctx context.Context, chapterID string) (string, error)
		LookupDocument(ctx context.Context, documentID string) (*DocumentRecord, error)
		LookupSharePermission(ctx context.Context, documentID, userID string) (*SharePermission, error)
		UpdateName(ctx context.Context, kind FileType, id, name string) error
	}
)
