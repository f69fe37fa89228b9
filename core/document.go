package core

import (
	"fmt"
	"strings"
)

// FileType is the kind of editable file a client attaches to.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeChapter  FileType = "chapter"
)

// ParseFileType maps a handshake value to a FileType. Anything that is not
// "chapter" is a standalone document.
func ParseFileType(s string) FileType {
	if FileType(strings.ToLower(strings.TrimSpace(s))) == FileTypeChapter {
		return FileTypeChapter
	}
	return FileTypeDocument
}

// DocumentID identifies one live document. It doubles as the room name suffix
// and the durable storage key prefix.
type DocumentID string

type (
	// DocumentRef describes the document a connection asked for.
	DocumentRef struct {
		Type     FileType
		FileID   string
		CourseID string
	}

	// Handshake carries the fields a client sends when it connects.
	Handshake struct {
		UserID   string
		Token    string
		FileID   string
		FileType FileType
		CourseID string
	}
)

// Sanitize strips path separators so a value can be embedded in a storage key
// without escaping the key namespace.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	return s
}

// NewDocumentRef builds a sanitized reference from a handshake.
func NewDocumentRef(hs Handshake) (DocumentRef, error) {
	ref := DocumentRef{
		Type:   hs.FileType,
		FileID: Sanitize(hs.FileID),
	}
	if ref.Type == "" {
		ref.Type = FileTypeDocument
	}
	if err := validateSegment(ref.FileID); err != nil {
		return DocumentRef{}, fmt.Errorf("file id: %w", err)
	}
	if ref.Type == FileTypeChapter {
		ref.CourseID = Sanitize(hs.CourseID)
		if err := validateSegment(ref.CourseID); err != nil {
			return DocumentRef{}, fmt.Errorf("course id: %w", err)
		}
	}
	return ref, nil
}

// validateSegment accepts letters, digits and underscores only. The dash is
// reserved as the separator of chapter keys.
func validateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
	}
	return nil
}

// ID returns the cache and room identifier. Chapters are scoped to their
// course so they never collide with a standalone document of the same id.
func (r DocumentRef) ID() DocumentID {
	return DocumentID(r.keyBase())
}

func (r DocumentRef) keyBase() string {
	if r.Type == FileTypeChapter {
		return "chapter-" + r.CourseID + "-" + r.FileID
	}
	return r.FileID
}

// StateKey is the storage key of the persisted delta.
func (r DocumentRef) StateKey() string {
	return r.ID().StateKey()
}

// ArtifactKey is the storage key of the published HTML.
func (r DocumentRef) ArtifactKey() string {
	return r.ID().ArtifactKey()
}

// Room is the multicast group name for the document.
func (r DocumentRef) Room() string {
	return r.ID().Room()
}

func (id DocumentID) StateKey() string    { return string(id) + ".json" }
func (id DocumentID) ArtifactKey() string { return string(id) + ".html" }
func (id DocumentID) Room() string        { return "d:" + string(id) }
