package memory

import (
	"context"
	"docsync-server/core"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type blob struct {
	data        []byte
	contentType string
}

// memStore implements both BlobStore and CredentialStore in memory. It is the
// default when no storage is configured and backs the tests.
type memStore struct {
	mu       sync.RWMutex
	blobs    map[string]blob
	tokens   map[string]string
	chapters map[string]string // chapter id -> course owner
	docs     map[string]core.DocumentRecord
	shares   map[string]core.SharePermission // doc id + "/" + user id
	names    map[string]string               // kind + "/" + id -> name
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		blobs:    make(map[string]blob),
		tokens:   make(map[string]string),
		chapters: make(map[string]string),
		docs:     make(map[string]core.DocumentRecord),
		shares:   make(map[string]core.SharePermission),
		names:    make(map[string]string),
	}
}

// Get returns a copy of the blob stored under key. Part of the BlobStore interface.
func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("key", key)
	b, ok := s.blobs[key]
	if !ok {
		log.Debug("Blob not found")
		return nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	log.Debug("Blob retrieved successfully")
	return append([]byte(nil), b.data...), nil
}

// Put stores a copy of data under key. Part of the BlobStore interface.
func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	}).Debug("Blob stored successfully")
	return nil
}

// SetToken registers the access token of a user.
func (s *memStore) SetToken(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
}

// SetChapterOwner registers the owner of the course a chapter belongs to.
func (s *memStore) SetChapterOwner(chapterID, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[chapterID] = ownerID
}

// SetDocument registers a standalone document.
func (s *memStore) SetDocument(documentID, ownerID string, private bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = core.DocumentRecord{Owner: ownerID, Private: private}
}

// Share grants a user access to a document.
func (s *memStore) Share(documentID, userID string, writeAccess bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[documentID+"/"+userID] = core.SharePermission{WriteAccess: writeAccess}
}

// Name returns the display name last set with UpdateName.
func (s *memStore) Name(kind core.FileType, id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[string(kind)+"/"+id]
}

func (s *memStore) LookupToken(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[userID]
	if !ok {
		return "", fmt.Errorf("token for user %s: %w", userID, core.ErrNotFound)
	}
	return token, nil
}

func (s *memStore) LookupChapterCourseOwner(ctx context.Context, chapterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.chapters[chapterID]
	if !ok {
		return "", fmt.Errorf("chapter %s: %w", chapterID, core.ErrNotFound)
	}
	return owner, nil
}

func (s *memStore) LookupDocument(ctx context.Context, documentID string) (*core.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, core.ErrNotFound)
	}
	return &doc, nil
}

func (s *memStore) LookupSharePermission(ctx context.Context, documentID, userID string) (*core.SharePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perm, ok := s.shares[documentID+"/"+userID]
	if !ok {
		return nil, fmt.Errorf("share of %s with %s: %w", documentID, userID, core.ErrNotFound)
	}
	return &perm, nil
}

func (s *memStore) UpdateName(ctx context.Context, kind core.FileType, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == core.FileTypeChapter {
		if _, ok := s.chapters[id]; !ok {
			return fmt.Errorf("chapter %s: %w", id, core.ErrNotFound)
		}
	} else if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	s.names[string(kind)+"/"+id] = name
	return nil
}
