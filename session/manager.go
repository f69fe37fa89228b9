// Package session keeps one authoritative copy of every document being
// edited, admits connections to it and persists it when the last member
// leaves.
package session

import (
	"context"
	"docsync-server/core"
	"docsync-server/delta"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport event names.
const (
	EventInit       = "init"
	EventDelta      = "delta"
	EventPublish    = "publish"
	EventRename     = "rename"
	EventDisconnect = "disconnect"
)

var (
	// ErrDenied is returned by Admit when authorization refuses the connection.
	ErrDenied = errors.New("access denied")
	// ErrNotActive is returned for events on a connection that is not admitted.
	ErrNotActive = errors.New("connection is not active")
)

// Authorizer decides the access level of a connection.
type Authorizer interface {
	Authorize(ctx context.Context, req core.AccessRequest) core.AccessDecision
}

// Renamer updates the display name of a document.
type Renamer interface {
	UpdateName(ctx context.Context, kind core.FileType, id, name string) error
}

type Manager struct {
	auth     Authorizer
	names    Renamer
	coord    *Coordinator
	cache    *Cache
	registry *Registry

	storageTimeout time.Duration
}

func NewManager(auth Authorizer, names Renamer, coord *Coordinator, storageTimeout time.Duration) *Manager {
	return &Manager{
		auth:           auth,
		names:          names,
		coord:          coord,
		cache:          NewCache(coord.Load, storageTimeout),
		registry:       NewRegistry(),
		storageTimeout: storageTimeout,
	}
}

func (m *Manager) Cache() *Cache       { return m.cache }
func (m *Manager) Registry() *Registry { return m.registry }

// Open validates the handshake of a new connection. An unusable handshake
// closes the peer.
func (m *Manager) Open(peer Peer, hs core.Handshake) (*Connection, error) {
	ref, err := core.NewDocumentRef(hs)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"socket_id": peer.ID(),
			"user_id":   hs.UserID,
		}).WithError(err).Warn("Rejecting handshake")
		peer.Close()
		return nil, err
	}

	conn := newConnection(peer, core.Sanitize(hs.UserID), hs.Token, ref)
	conn.state = StateAuthorizing
	return conn, nil
}

// Admit authorizes conn and attaches it to its document: the state is
// loaded or shared, the snapshot is sent as init and the peer joins the
// document room. A disconnect that lands while Admit is in progress is
// honored: the connection is detached again before Admit returns.
func (m *Manager) Admit(ctx context.Context, conn *Connection) error {
	log := m.logger(conn)
	id := conn.Ref.ID()

	decision := m.auth.Authorize(ctx, core.AccessRequest{
		UserID: conn.UserID,
		Token:  conn.token,
		Ref:    conn.Ref,
	})

	conn.mu.Lock()
	conn.token = ""
	if conn.state != StateAuthorizing {
		conn.mu.Unlock()
		return ErrNotActive
	}
	if !decision.Granted() {
		conn.state = StateClosed
		conn.mu.Unlock()
		log.Info("Connection denied")
		conn.Peer.Close()
		return ErrDenied
	}
	conn.access = decision
	conn.mu.Unlock()

	if _, err := m.cache.Acquire(ctx, id); err != nil {
		conn.mu.Lock()
		conn.state = StateClosed
		conn.mu.Unlock()
		log.WithError(err).Error("Failed to load document")
		conn.Peer.Close()
		return err
	}

	conn.mu.Lock()
	if conn.state != StateAuthorizing {
		// Disconnected while loading.
		conn.mu.Unlock()
		m.detach(conn)
		return ErrNotActive
	}
	defer conn.mu.Unlock()

	conn.state = StateAdmitted
	m.registry.Register(id, conn.ID, decision)
	err := m.cache.View(id, func(state *delta.Delta) {
		if err := conn.Peer.Emit(EventInit, state); err != nil {
			log.WithError(err).Warn("Failed to send init")
		}
		conn.Peer.Join(conn.Ref.Room())
	})
	if err != nil {
		// The reference held by conn keeps the entry alive.
		return fmt.Errorf("attach %s: %w", id, err)
	}
	conn.state = StateActive

	log.WithField("access", decision.String()).Info("Connection admitted")
	return nil
}

// Edit applies the payload of a delta event and relays it to the rest of the
// room. Edits from read-only connections are dropped with core.ErrReadOnly.
func (m *Manager) Edit(conn *Connection, payload any) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.state != StateActive {
		return ErrNotActive
	}
	if !conn.access.CanWrite() {
		return core.ErrReadOnly
	}

	edit, err := parseEditPayload(payload)
	if err != nil {
		return err
	}

	id := conn.Ref.ID()
	room := conn.Ref.Room()
	_, err = m.cache.Apply(id, edit, func() {
		if err := conn.Peer.Relay(room, EventDelta, payload); err != nil {
			m.logger(conn).WithError(err).Warn("Failed to relay edit")
		}
	})
	if err != nil {
		return err
	}
	m.registry.Touch(id)
	return nil
}

// Leave detaches conn from its document. It is safe to call more than once
// and at any point of the connection's life.
func (m *Manager) Leave(conn *Connection) {
	conn.mu.Lock()
	switch conn.state {
	case StateAdmitted, StateActive:
		conn.state = StateLeaving
		conn.mu.Unlock()
		m.detach(conn)
	case StateConnecting, StateAuthorizing:
		// Admit will see the state change and undo its own work.
		conn.state = StateClosed
		conn.mu.Unlock()
	default:
		conn.mu.Unlock()
	}
}

func (m *Manager) detach(conn *Connection) {
	id := conn.Ref.ID()
	m.registry.Unregister(id, conn.ID)

	if ev := m.cache.Release(id); ev != nil {
		m.evict(ev)
	}

	conn.mu.Lock()
	conn.state = StateClosed
	conn.mu.Unlock()
	m.logger(conn).Info("Connection left")
}

// evict flushes the final state when it holds unsaved edits. Eviction is
// never blocked by a failed flush.
func (m *Manager) evict(ev *Eviction) {
	defer ev.Done()

	state, dirty := ev.Drain()
	if !dirty {
		logrus.WithField("document_id", ev.ID).Debug("Evicted clean document")
		return
	}

	ctx, cancel := m.storageContext()
	defer cancel()
	_ = m.coord.Flush(ctx, ev.ID, state)
}

// Publish renders the current state of the document and stores it. It
// returns the storage key of the artifact.
func (m *Manager) Publish(ctx context.Context, conn *Connection) (string, error) {
	if err := m.requireWriter(conn); err != nil {
		return "", err
	}

	id := conn.Ref.ID()
	state, err := m.cache.Snapshot(id)
	if err != nil {
		return "", err
	}
	key, err := m.coord.Publish(ctx, id, state)
	if err != nil {
		m.logger(conn).WithError(err).Error("Failed to publish document")
		return "", err
	}
	m.logger(conn).WithField("key", key).Info("Document published")
	return key, nil
}

// Rename sets the display name of the document in the relational store.
func (m *Manager) Rename(ctx context.Context, conn *Connection, name string) error {
	if err := m.requireWriter(conn); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", core.ErrInvalidIdentifier)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()
	if err := m.names.UpdateName(ctx, conn.Ref.Type, conn.Ref.FileID, name); err != nil {
		m.logger(conn).WithError(err).Error("Failed to rename document")
		return err
	}
	m.logger(conn).WithField("name", name).Info("Document renamed")
	return nil
}

// Checkpoint saves every live document with unsaved edits.
func (m *Manager) Checkpoint(ctx context.Context) error {
	return m.coord.Checkpoint(ctx, m.cache)
}

func (m *Manager) requireWriter(conn *Connection) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.state != StateActive {
		return ErrNotActive
	}
	if !conn.access.CanWrite() {
		return core.ErrReadOnly
	}
	return nil
}

func (m *Manager) storageContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout())
}

func (m *Manager) timeout() time.Duration {
	if m.storageTimeout <= 0 {
		return 15 * time.Second
	}
	return m.storageTimeout
}

func (m *Manager) logger(conn *Connection) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"socket_id":     conn.Peer.ID(),
		"user_id":       conn.UserID,
		"document_id":   conn.Ref.ID(),
	})
}

// parseEditPayload accepts {"delta": <delta>} as sent by editors.
func parseEditPayload(payload any) (*delta.Delta, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %T", delta.ErrMalformed, payload)
	}
	raw, ok := obj["delta"]
	if !ok {
		return nil, fmt.Errorf("%w: missing delta field", delta.ErrMalformed)
	}
	return delta.ParseValue(raw)
}
