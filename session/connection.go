package session

import (
	"docsync-server/core"
	"sync"

	"github.com/oklog/ulid/v2"
)

// State is the admission state of a connection.
type State int

const (
	StateConnecting State = iota
	StateAuthorizing
	StateAdmitted
	StateActive
	StateLeaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateAdmitted:
		return "admitted"
	case StateActive:
		return "active"
	case StateLeaving:
		return "leaving"
	default:
		return "closed"
	}
}

// Peer is the transport side of one client connection.
type Peer interface {
	ID() string
	Emit(event string, args ...any) error
	Join(room string)
	// Relay sends to every member of room except this peer.
	Relay(room, event string, args ...any) error
	Close()
}

// Connection is one client's attachment to a document. The access decision
// is fixed once authorization completes.
type Connection struct {
	ID     string
	UserID string
	Ref    core.DocumentRef
	Peer   Peer

	token string

	mu     sync.Mutex
	state  State
	access core.AccessDecision
}

func newConnection(peer Peer, userID, token string, ref core.DocumentRef) *Connection {
	return &Connection{
		ID:     ulid.Make().String(),
		UserID: userID,
		Ref:    ref,
		Peer:   peer,
		token:  token,
		state:  StateConnecting,
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Access() core.AccessDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}
