// Package chattypes defines the shared types for the toechat client engine.
// This file contains the core types for sessions, messages, attachments and
// usage quotas exchanged with the interview-practice backend.
package chattypes

import "time"

// Category selects the quota bucket and the remote endpoint family a session
// belongs to.
type Category string

// Session categories supported by the backend.
const (
	CategoryNormal    Category = "normal"
	CategoryInterview Category = "interview"
)

// Valid reports whether the category is one the backend knows about.
func (c Category) Valid() bool {
	return c == CategoryNormal || c == CategoryInterview
}

// Message represents a single turn in a conversation.
// Before reconciliation a message may carry a locally generated provisional ID;
// after reconciliation the ID and timestamp are the server's.
type Message struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Role        string       `json:"role" yaml:"role"`
	Content     string       `json:"content" yaml:"content"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp" yaml:"timestamp"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment describes one uploaded file referenced by a message.
type Attachment struct {
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
	Name      string `json:"name" yaml:"name"`
	MimeType  string `json:"mime_type" yaml:"mime_type"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
}

// Session represents one conversation thread with an ordered message log.
// A session has no ID until the first successful send creates it remotely.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Category  Category  `json:"category" yaml:"category"`
	Title     string    `json:"title" yaml:"title"`
	Messages  []Message `json:"conversation" yaml:"messages"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// QuotaState tracks sends consumed against a plan limit for one category.
// Used may lag server truth between optimistic increments and the next fetch.
type QuotaState struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	ResetDate time.Time `json:"reset_date,omitempty"`
}

// Remaining returns how many sends are left before the gate trips.
func (q QuotaState) Remaining() int {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// SendResult is returned by the send pipeline so the caller can adopt a newly
// minted session identifier without re-deriving it.
type SendResult struct {
	Session          *Session
	WasNewlyCreated  bool
	CreatedSessionID string
}

// LoadState tracks the lifecycle of a mounted session view.
type LoadState int

// Load states. Ready is re-entered on every successful reconciliation.
const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadReady
	LoadNotFound
	LoadError
)

// String returns a human-readable load state name.
func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case LoadLoading:
		return "loading"
	case LoadReady:
		return "ready"
	case LoadNotFound:
		return "not_found"
	case LoadError:
		return "error"
	default:
		return "unknown"
	}
}
