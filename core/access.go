package core

// AccessDecision is the outcome of authorizing one connection. It is computed
// once and kept for the lifetime of the connection.
type AccessDecision int

const (
	Denied AccessDecision = iota
	ReadOnly
	ReadWrite
)

func (d AccessDecision) String() string {
	switch d {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "denied"
	}
}

// Granted reports whether the connection may attach at all.
func (d AccessDecision) Granted() bool {
	return d == ReadOnly || d == ReadWrite
}

// CanWrite reports whether the connection may submit edits.
func (d AccessDecision) CanWrite() bool {
	return d == ReadWrite
}

// AccessRequest is the input of an authorization check.
type AccessRequest struct {
	UserID string
	Token  string
	Ref    DocumentRef
}
