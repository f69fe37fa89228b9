// Package relational answers credential and ownership queries from the
// relational database shared with the course platform.
package relational

import (
	"context"
	"database/sql"
	"docsync-server/core"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const defaultOperationTimeout = 5 * time.Second

// sqliteSchema mirrors the platform tables so a standalone deployment can
// run against a local file.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS doc_tokens (uid TEXT PRIMARY KEY, token TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS courses (id TEXT PRIMARY KEY, owner TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS chapters (id TEXT PRIMARY KEY, course TEXT NOT NULL, name TEXT)`,
	`CREATE TABLE IF NOT EXISTS documents (id TEXT PRIMARY KEY, owner TEXT NOT NULL, private INTEGER NOT NULL DEFAULT 0, name TEXT)`,
	`CREATE TABLE IF NOT EXISTS document_permissions (doc_id TEXT NOT NULL, "user" TEXT NOT NULL, write_access INTEGER NOT NULL DEFAULT 0, PRIMARY KEY (doc_id, "user"))`,
}

// Store implements core.CredentialStore over database/sql.
type Store struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
}

// NewStore opens the database for driver ("mysql", "postgres" or "sqlite")
// and verifies the connection.
func NewStore(driver, dsn string, timeout time.Duration) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("relational store: empty dsn for driver %q", driver)
	}
	switch driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("relational store: unsupported driver %q", driver)
	}
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, driver: driver, timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("relational store: ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		for _, stmt := range sqliteSchema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("relational store: bootstrap schema: %w", err)
			}
		}
	}

	logrus.WithField("driver", driver).Info("Credential store connected")
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) LookupToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := s.queryRow(ctx, "SELECT token FROM doc_tokens WHERE uid = ?", userID).Scan(&token)
	if err != nil {
		return "", s.mapErr(err, "token for user "+userID)
	}
	return token, nil
}

func (s *Store) LookupChapterCourseOwner(ctx context.Context, chapterID string) (string, error) {
	var owner string
	err := s.queryRow(ctx,
		"SELECT owner FROM courses WHERE id = (SELECT course FROM chapters WHERE id = ?)",
		chapterID).Scan(&owner)
	if err != nil {
		return "", s.mapErr(err, "course owner of chapter "+chapterID)
	}
	return owner, nil
}

func (s *Store) LookupDocument(ctx context.Context, documentID string) (*core.DocumentRecord, error) {
	var rec core.DocumentRecord
	err := s.queryRow(ctx, "SELECT owner, private FROM documents WHERE id = ?", documentID).
		Scan(&rec.Owner, &rec.Private)
	if err != nil {
		return nil, s.mapErr(err, "document "+documentID)
	}
	return &rec, nil
}

func (s *Store) LookupSharePermission(ctx context.Context, documentID, userID string) (*core.SharePermission, error) {
	var perm core.SharePermission
	query := "SELECT write_access FROM document_permissions WHERE doc_id = ? AND " + s.quote("user") + " = ?"
	err := s.queryRow(ctx, query, documentID, userID).Scan(&perm.WriteAccess)
	if err != nil {
		return nil, s.mapErr(err, "share of document "+documentID)
	}
	return &perm, nil
}

// UpdateName renames a chapter or document row. An id that matches no row
// reports ErrNotFound.
func (s *Store) UpdateName(ctx context.Context, kind core.FileType, id, name string) error {
	table := "documents"
	if kind == core.FileTypeChapter {
		table = "chapters"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE "+table+" SET name = ? WHERE id = ?"), name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
	}
	return nil
}

// scannedRow defers the per-operation cancel until Scan has run.
type scannedRow struct {
	row    *sql.Row
	cancel context.CancelFunc
}

func (r scannedRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.row.Scan(dest...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) scannedRow {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return scannedRow{row: s.db.QueryRowContext(ctx, s.rebind(query), args...), cancel: cancel}
}

func (s *Store) mapErr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) quote(ident string) string {
	if s.driver == "mysql" {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}
