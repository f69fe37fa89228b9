package core

import (
	"errors"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{"../7", "..7"},
		{"a/b\\c", "abc"},
		{" 42 ", "42"},
		{"//\\\\", ""},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewDocumentRef_Document(t *testing.T) {
	ref, err := NewDocumentRef(Handshake{FileID: "7", FileType: FileTypeDocument})
	if err != nil {
		t.Fatalf("NewDocumentRef() failed: %v", err)
	}

	if ref.ID() != "7" {
		t.Errorf("ID() = %q, want %q", ref.ID(), "7")
	}
	if ref.StateKey() != "7.json" {
		t.Errorf("StateKey() = %q, want %q", ref.StateKey(), "7.json")
	}
	if ref.ArtifactKey() != "7.html" {
		t.Errorf("ArtifactKey() = %q, want %q", ref.ArtifactKey(), "7.html")
	}
	if ref.Room() != "d:7" {
		t.Errorf("Room() = %q, want %q", ref.Room(), "d:7")
	}
}

func TestNewDocumentRef_Chapter(t *testing.T) {
	ref, err := NewDocumentRef(Handshake{FileID: "12", FileType: FileTypeChapter, CourseID: "3"})
	if err != nil {
		t.Fatalf("NewDocumentRef() failed: %v", err)
	}

	if ref.StateKey() != "chapter-3-12.json" {
		t.Errorf("StateKey() = %q, want %q", ref.StateKey(), "chapter-3-12.json")
	}

	doc, _ := NewDocumentRef(Handshake{FileID: "12", FileType: FileTypeDocument})
	if doc.ID() == ref.ID() {
		t.Errorf("chapter and document with the same file id share identifier %q", ref.ID())
	}
}

func TestNewDocumentRef_Traversal(t *testing.T) {
	tests := []Handshake{
		{FileID: "", FileType: FileTypeDocument},
		{FileID: "/", FileType: FileTypeDocument},
		{FileID: "..", FileType: FileTypeDocument},
		{FileID: "../../etc/passwd", FileType: FileTypeDocument},
		{FileID: "1", FileType: FileTypeChapter, CourseID: ""},
		{FileID: "1", FileType: FileTypeChapter, CourseID: "../x"},
		{FileID: "a b?*#.json", FileType: FileTypeDocument},
		{FileID: "7.json", FileType: FileTypeDocument},
		{FileID: "chapter-3-7", FileType: FileTypeDocument},
		{FileID: "7", FileType: FileTypeChapter, CourseID: "3-1"},
		{FileID: "1-7", FileType: FileTypeChapter, CourseID: "3"},
	}

	for _, hs := range tests {
		_, err := NewDocumentRef(hs)
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("NewDocumentRef(%+v) error = %v, want ErrInvalidIdentifier", hs, err)
		}
	}
}

func TestNewDocumentRef_NoCrossTypeCollision(t *testing.T) {
	chapter, err := NewDocumentRef(Handshake{FileID: "7", FileType: FileTypeChapter, CourseID: "3"})
	if err != nil {
		t.Fatalf("NewDocumentRef() failed: %v", err)
	}

	// The only way a document could share the chapter's key is to carry
	// the key itself as its id.
	if _, err := NewDocumentRef(Handshake{FileID: string(chapter.ID()), FileType: FileTypeDocument}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("document id %q accepted, error = %v", chapter.ID(), err)
	}

	// Course 3 chapter 17 and course 31 chapter 7 stay apart.
	a, _ := NewDocumentRef(Handshake{FileID: "17", FileType: FileTypeChapter, CourseID: "3"})
	b, _ := NewDocumentRef(Handshake{FileID: "7", FileType: FileTypeChapter, CourseID: "31"})
	if a.ID() == b.ID() {
		t.Errorf("chapters share identifier %q", a.ID())
	}
}

func TestNewDocumentRef_AcceptsAlphanumeric(t *testing.T) {
	ref, err := NewDocumentRef(Handshake{FileID: "Doc_42", FileType: FileTypeDocument})
	if err != nil {
		t.Fatalf("NewDocumentRef() failed: %v", err)
	}
	if ref.StateKey() != "Doc_42.json" {
		t.Errorf("StateKey() = %q", ref.StateKey())
	}
}

func TestParseFileType(t *testing.T) {
	if ParseFileType("chapter") != FileTypeChapter {
		t.Error("expected chapter")
	}
	if ParseFileType(" Chapter ") != FileTypeChapter {
		t.Error("expected chapter for mixed case input")
	}
	if ParseFileType("document") != FileTypeDocument {
		t.Error("expected document")
	}
	if ParseFileType("") != FileTypeDocument {
		t.Error("expected document for empty input")
	}
}

func TestAccessDecision(t *testing.T) {
	if Denied.Granted() || Denied.CanWrite() {
		t.Error("Denied must not grant anything")
	}
	if !ReadOnly.Granted() || ReadOnly.CanWrite() {
		t.Error("ReadOnly must grant attach without write")
	}
	if !ReadWrite.Granted() || !ReadWrite.CanWrite() {
		t.Error("ReadWrite must grant attach and write")
	}
	if ReadWrite.String() != "read-write" {
		t.Errorf("String() = %q", ReadWrite.String())
	}
}
