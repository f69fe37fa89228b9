package session

import (
	"context"
	"docsync-server/core"
	"docsync-server/delta"
	"docsync-server/telemetry"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Renderer turns a document into its publishable form.
type Renderer interface {
	Render(d *delta.Delta) ([]byte, error)
}

// Coordinator moves document state between the cache and durable storage.
type Coordinator struct {
	store    core.BlobStore
	renderer Renderer
	timeout  time.Duration
}

func NewCoordinator(store core.BlobStore, renderer Renderer, timeout time.Duration) *Coordinator {
	return &Coordinator{store: store, renderer: renderer, timeout: timeout}
}

// Load reads the persisted state of id. A document that was never saved
// starts empty; any other failure is returned so admission can abort.
func (co *Coordinator) Load(ctx context.Context, id core.DocumentID) (*delta.Delta, error) {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.Load", attribute.String("document_id", string(id)))
	defer span.End()

	data, err := co.store.Get(ctx, id.StateKey())
	if errors.Is(err, core.ErrNotFound) {
		logrus.WithField("document_id", id).Debug("No persisted state, starting empty")
		return delta.Empty(), nil
	}
	if err != nil {
		telemetry.AddSpanError(ctx, err)
		return nil, fmt.Errorf("load %s: %w", id.StateKey(), err)
	}

	state, err := delta.Parse(data)
	if err != nil {
		telemetry.AddSpanError(ctx, err)
		return nil, fmt.Errorf("load %s: %w", id.StateKey(), err)
	}
	return state, nil
}

// Flush writes state under the state key of id. Failures are logged as a
// data loss alert and returned; callers still evict.
func (co *Coordinator) Flush(ctx context.Context, id core.DocumentID, state *delta.Delta) error {
	ctx, cancel := co.withTimeout(ctx)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.Flush", attribute.String("document_id", string(id)))
	defer span.End()

	data, err := json.Marshal(state)
	if err == nil {
		err = co.store.Put(ctx, id.StateKey(), data, "application/json")
	}
	if err != nil {
		telemetry.AddSpanError(ctx, err)
		logrus.WithFields(logrus.Fields{
			"document_id": id,
			"key":         id.StateKey(),
			"alert":       "data_loss_risk",
		}).WithError(err).Error("Failed to flush document")
		return fmt.Errorf("flush %s: %w", id.StateKey(), err)
	}

	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"key":         id.StateKey(),
		"data_length": len(data),
	}).Info("Document flushed")
	return nil
}

// Publish renders state and stores it under the artifact key of id.
func (co *Coordinator) Publish(ctx context.Context, id core.DocumentID, state *delta.Delta) (string, error) {
	ctx, cancel := co.withTimeout(ctx)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.Publish", attribute.String("document_id", string(id)))
	defer span.End()

	out, err := co.renderer.Render(state)
	if err != nil {
		telemetry.AddSpanError(ctx, err)
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	key := id.ArtifactKey()
	if err := co.store.Put(ctx, key, out, "text/html"); err != nil {
		telemetry.AddSpanError(ctx, err)
		return "", fmt.Errorf("publish %s: %w", key, err)
	}
	return key, nil
}

// Checkpoint flushes every cached document with unsaved edits.
func (co *Coordinator) Checkpoint(ctx context.Context, cache *Cache) error {
	return cache.Checkpoint(ctx, co.Flush)
}

func (co *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if co.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, co.timeout)
}
