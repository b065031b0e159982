package authsdk

import (
	"io"

	internalaudit "github.com/MrEthical07/authsdk/internal/audit"
)

// User is the authenticated account as the backend reports it.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SessionState is a point-in-time snapshot of the session. IsAuthenticated
// implies a credential pair exists in the store.
type SessionState struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool

	// LastError is the classified outcome of the most recent failed
	// operation, nil after a success.
	LastError *Classification
}

// RegisterResult is returned by [Client.Register]. Registration does not
// establish a session; the new account logs in separately.
type RegisterResult struct {
	ID string `json:"id"`
}

// AuditEvent is a structured record emitted by the client's audit dispatcher.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
