package chattypes

import "context"

// Service defines the interface all toechat services implement for
// registration and lifecycle management.
type Service interface {
	Name() string
	Initialize() error
}

// CompletionRequest is the payload for the remote completion endpoint. The
// context window carries only a bounded trailing slice of the prior
// conversation; bounding it is a cost and latency control, not a correctness
// requirement.
type CompletionRequest struct {
	Content       string       `json:"content"`
	Attachments   []Attachment `json:"files,omitempty"`
	ContextWindow []Message    `json:"conversation_history,omitempty"`
}

// CompletionResponse carries the assistant's reply and the metered cost of
// producing it.
type CompletionResponse struct {
	Message    Message `json:"message"`
	TokensUsed int     `json:"tokens_used,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

// FileUpload is one file handed to the file-storage collaborator.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// SessionPage is one page of a session listing.
type SessionPage struct {
	Sessions []Session `json:"chats"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	HasNext  bool      `json:"has_next"`
	HasPrev  bool      `json:"has_prev"`
}

// Backend is the collaborator contract the engine consumes. The production
// implementation is the REST client in internal/api; tests substitute an
// in-process fake. No collaborator mutates engine-owned state directly; all
// external effects flow through these operations.
type Backend interface {
	// GetUsage retrieves current quota counters per category.
	GetUsage(ctx context.Context) (map[Category]QuotaState, error)

	// CreateSession creates a session with empty messages and returns it.
	CreateSession(ctx context.Context, category Category, title string) (*Session, error)

	// GetSession returns the session with its ordered messages, or ErrNotFound.
	GetSession(ctx context.Context, category Category, id string) (*Session, error)

	// UpdateSession persists the session's title and message log.
	UpdateSession(ctx context.Context, category Category, session *Session) (*Session, error)

	// ListSessions returns one page of the caller's sessions.
	ListSessions(ctx context.Context, category Category, page, perPage int) (*SessionPage, error)

	// DeleteSession removes a session remotely.
	DeleteSession(ctx context.Context, category Category, id string) error

	// Completion sends one user turn and returns the assistant's reply.
	Completion(ctx context.Context, category Category, req CompletionRequest) (*CompletionResponse, error)

	// UploadFiles stores attachments and returns their references.
	UploadFiles(ctx context.Context, files []FileUpload) ([]Attachment, error)
}
