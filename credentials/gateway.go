// Package credentials decides what a connecting user may do with a document.
package credentials

import (
	"context"
	"crypto/subtle"
	"docsync-server/core"
	"docsync-server/telemetry"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const defaultTimeout = 5 * time.Second

// Gateway answers authorization queries against a CredentialStore. It never
// fails open: any lookup error or timeout yields core.Denied.
type Gateway struct {
	store   core.CredentialStore
	timeout time.Duration
}

func NewGateway(store core.CredentialStore, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{store: store, timeout: timeout}
}

// Authorize runs the checks in order and returns the first decision reached.
func (g *Gateway) Authorize(ctx context.Context, req core.AccessRequest) core.AccessDecision {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "Gateway.Authorize",
		attribute.String("user_id", req.UserID),
		attribute.String("document_id", string(req.Ref.ID())),
		attribute.String("file_type", string(req.Ref.Type)),
	)
	defer span.End()

	decision, err := g.authorize(ctx, req)
	if err != nil {
		telemetry.AddSpanError(ctx, err)
		logrus.WithFields(logrus.Fields{
			"user_id":     req.UserID,
			"document_id": req.Ref.ID(),
		}).WithError(err).Warn("Authorization failed closed")
		decision = core.Denied
	}
	span.SetAttributes(attribute.String("decision", decision.String()))
	return decision
}

func (g *Gateway) authorize(ctx context.Context, req core.AccessRequest) (core.AccessDecision, error) {
	if req.UserID == "" || req.Token == "" {
		return core.Denied, nil
	}

	stored, err := g.store.LookupToken(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Denied, nil
		}
		return core.Denied, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Token)) != 1 {
		return core.Denied, nil
	}

	if req.Ref.Type == core.FileTypeChapter {
		owner, err := g.store.LookupChapterCourseOwner(ctx, req.Ref.FileID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Denied, nil
			}
			return core.Denied, err
		}
		if owner == req.UserID {
			return core.ReadWrite, nil
		}
		return core.Denied, nil
	}

	// A missing documents row is not fatal: shares may exist without it.
	doc, err := g.store.LookupDocument(ctx, req.Ref.FileID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		doc = nil
	case err != nil:
		return core.Denied, err
	case doc.Owner == req.UserID:
		return core.ReadWrite, nil
	}

	perm, err := g.store.LookupSharePermission(ctx, req.Ref.FileID, req.UserID)
	switch {
	case err == nil:
		if perm.WriteAccess {
			return core.ReadWrite, nil
		}
		return core.ReadOnly, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.Denied, err
	}

	if doc != nil && !doc.Private {
		return core.ReadOnly, nil
	}
	return core.Denied, nil
}
