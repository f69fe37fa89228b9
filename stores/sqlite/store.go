package sqlite

import (
	"context"
	"database/sql"
	"docsync-server/core"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based blob store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases shared across calls.
	db.SetMaxOpenConns(1)

	blobTableStmt := `
	CREATE TABLE IF NOT EXISTS blobs (
		blob_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		content_type TEXT,
		updated_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(blobTableStmt); err != nil {
		log.Fatalf("failed to create blobs table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, error) {
	log := logrus.WithField("key", key)
	log.Debug("Retrieving blob by key")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE blob_key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Blob not found")
			return nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve blob")
		return nil, err
	}
	log.Debug("Blob retrieved successfully")
	return data, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (blob_key, data, content_type, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(blob_key) DO UPDATE SET data = excluded.data, content_type = excluded.content_type, updated_at = excluded.updated_at`,
		key, data, contentType, time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to store blob")
		return err
	}
	log.Debug("Blob stored successfully")
	return nil
}

// Close releases the database handle.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
