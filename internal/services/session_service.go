package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"toechat/internal/logger"
	"toechat/internal/testutils"
	"toechat/pkg/chattypes"
)

// maxTitleWords bounds the title derived from the first message.
const maxTitleWords = 6

// defaultTitle is used when a conversation starts with an attachment-only
// message and no text to derive a title from.
const defaultTitle = "New Conversation"

// SessionService is the session store: it owns the identity and the
// authoritative message log of the currently open session. All mutations to
// the message list go through it; the send pipeline never holds truth beyond
// a provisional entry awaiting reconciliation.
type SessionService struct {
	initialized bool
	backend     chattypes.Backend
	testMode    bool

	mu        sync.Mutex
	id        string
	category  chattypes.Category
	title     string
	createdAt time.Time
	updatedAt time.Time
	messages  []chattypes.Message
	state     chattypes.LoadState

	// loadSeq guards against superseded loads: a load result is applied only
	// if no newer load (or clear) happened while it was in flight.
	loadSeq uint64
}

// NewSessionService creates a session store backed by the given collaborator.
func NewSessionService(backend chattypes.Backend, testMode bool) *SessionService {
	return &SessionService{
		backend:  backend,
		testMode: testMode,
		messages: make([]chattypes.Message, 0),
		state:    chattypes.LoadIdle,
	}
}

// Name returns the service name "session_store" for registration.
func (s *SessionService) Name() string {
	return "session_store"
}

// Initialize sets up the SessionService for operation.
func (s *SessionService) Initialize() error {
	s.initialized = true
	logger.ServiceOperation("session_store", "initialized")
	return nil
}

// State returns the current load state of the session view.
func (s *SessionService) State() chattypes.LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentID returns the identity of the open session, or the empty string
// when none is loaded or the conversation has not been created remotely yet.
func (s *SessionService) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Snapshot returns a copy of the open session. The store keeps ownership of
// the authoritative message slice; callers get an independent copy.
func (s *SessionService) Snapshot() *chattypes.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// MessageCount returns the number of messages in the open session.
func (s *SessionService) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// LoadSession replaces the open session with the one stored remotely under
// id. Malformed identifiers (anything but a canonical 36-character token,
// including the "new" sentinel) fail with ErrInvalidIdentifier before any
// network call. A load that resolves after a newer load or clear was
// requested is discarded and returns ErrLoadSuperseded: the last requested
// identifier wins, not the last to resolve.
func (s *SessionService) LoadSession(ctx context.Context, category chattypes.Category, id string) (*chattypes.Session, error) {
	if !s.initialized {
		return nil, fmt.Errorf("session store not initialized")
	}
	if !chattypes.ValidToken(id) {
		return nil, fmt.Errorf("%w: %q", chattypes.ErrInvalidIdentifier, id)
	}

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.state = chattypes.LoadLoading
	s.mu.Unlock()

	logger.ServiceOperation("session_store", "load", "session", id, "category", string(category))

	session, err := s.backend.GetSession(ctx, category, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.loadSeq {
		logger.Debug("Discarding superseded load", "session", id)
		return nil, chattypes.ErrLoadSuperseded
	}

	if err != nil {
		if errors.Is(err, chattypes.ErrNotFound) {
			s.state = chattypes.LoadNotFound
			return nil, chattypes.ErrNotFound
		}
		s.state = chattypes.LoadError
		return nil, err
	}

	s.id = session.ID
	s.category = session.Category
	s.title = session.Title
	s.createdAt = session.CreatedAt
	s.updatedAt = session.UpdatedAt
	s.messages = append([]chattypes.Message(nil), session.Messages...)
	s.state = chattypes.LoadReady

	return s.snapshotLocked(), nil
}

// ClearSession resets the store to an empty, identity-less session. It is
// idempotent and always safe to call; any in-flight load is superseded.
func (s *SessionService) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadSeq++
	s.id = ""
	s.category = ""
	s.title = ""
	s.createdAt = time.Time{}
	s.updatedAt = time.Time{}
	s.messages = make([]chattypes.Message, 0)
	s.state = chattypes.LoadIdle
}

// CreateSession creates the session remotely and adopts its identity. The
// local message log is kept: a provisional first message inserted before the
// create survives it untouched. The remote session starts with empty
// messages and no first message is sent here.
func (s *SessionService) CreateSession(ctx context.Context, category chattypes.Category, seedTitle string) (*chattypes.Session, error) {
	if !s.initialized {
		return nil, fmt.Errorf("session store not initialized")
	}

	title := seedTitle
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}

	session, err := s.backend.CreateSession(ctx, category, title)
	if err != nil {
		if chattypes.IsTransportError(err) || errors.Is(err, chattypes.ErrUsageLimitReached) {
			return nil, err
		}
		return nil, chattypes.NewTransportError("create session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = session.ID
	s.category = session.Category
	s.title = session.Title
	s.createdAt = session.CreatedAt
	s.updatedAt = session.UpdatedAt
	s.state = chattypes.LoadReady

	logger.ServiceOperation("session_store", "created", "session", s.id, "category", string(category))
	return s.snapshotLocked(), nil
}

// AppendProvisional inserts a locally generated user message at the end of
// the log and returns it. The entry carries a timestamp-prefixed provisional
// ID and is replaced wholesale at reconciliation, never merged.
func (s *SessionService) AppendProvisional(content string, attachments []chattypes.Attachment) chattypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	message := chattypes.Message{
		ID:          testutils.GenerateProvisionalID(s.testMode),
		Role:        chattypes.RoleUser,
		Content:     content,
		Attachments: append([]chattypes.Attachment(nil), attachments...),
		Timestamp:   testutils.GetCurrentTime(s.testMode),
	}
	s.messages = append(s.messages, message)
	return message
}

// RemoveMessage deletes the message with the given ID, restoring the log to
// its pre-insert contents on rollback. Returns whether a message was removed.
func (s *SessionService) RemoveMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, message := range s.messages {
		if message.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// ReconcileExchange atomically replaces the provisional entry with the
// confirmed user message and appends the assistant reply. The swap happens
// under one lock so no observer ever sees the provisional and confirmed
// entries side by side.
func (s *SessionService) ReconcileExchange(provisionalID string, user, assistant chattypes.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]chattypes.Message, 0, len(s.messages)+1)
	for _, message := range s.messages {
		if message.ID == provisionalID {
			continue
		}
		replaced = append(replaced, message)
	}
	replaced = append(replaced, user, assistant)

	s.messages = replaced
	s.updatedAt = testutils.GetCurrentTime(s.testMode)
	s.state = chattypes.LoadReady
}

// ContextWindow returns a copy of the trailing n messages of the log.
func (s *SessionService) ContextWindow(n int) []chattypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	return append([]chattypes.Message(nil), s.messages[start:]...)
}

// ListSessions returns one page of the caller's sessions from the backend.
func (s *SessionService) ListSessions(ctx context.Context, category chattypes.Category, page, perPage int) (*chattypes.SessionPage, error) {
	if !s.initialized {
		return nil, fmt.Errorf("session store not initialized")
	}
	return s.backend.ListSessions(ctx, category, page, perPage)
}

// DeleteSession removes a session remotely. Deleting the open session also
// clears the store; other sessions leave local state untouched.
func (s *SessionService) DeleteSession(ctx context.Context, category chattypes.Category, id string) error {
	if !s.initialized {
		return fmt.Errorf("session store not initialized")
	}
	if !chattypes.ValidToken(id) {
		return fmt.Errorf("%w: %q", chattypes.ErrInvalidIdentifier, id)
	}

	if err := s.backend.DeleteSession(ctx, category, id); err != nil {
		return err
	}

	if s.CurrentID() == id {
		s.ClearSession()
	}
	return nil
}

// ExportSession writes the open session to path as YAML.
func (s *SessionService) ExportSession(path string) error {
	snapshot := s.Snapshot()
	if snapshot == nil {
		return fmt.Errorf("no session to export")
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session export: %w", err)
	}

	logger.Info("Session exported", "session", snapshot.ID, "path", path)
	return nil
}

// ImportSession reads a YAML session export into the store, replacing the
// open session.
func (s *SessionService) ImportSession(path string) (*chattypes.Session, error) {
	if !s.initialized {
		return nil, fmt.Errorf("session store not initialized")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session export: %w", err)
	}

	var session chattypes.Session
	if err := yaml.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session export: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadSeq++
	s.id = session.ID
	s.category = session.Category
	s.title = session.Title
	s.createdAt = session.CreatedAt
	s.updatedAt = session.UpdatedAt
	s.messages = append([]chattypes.Message(nil), session.Messages...)
	s.state = chattypes.LoadReady

	return s.snapshotLocked(), nil
}

// DeriveTitle builds a display title from the first words of content.
func DeriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return defaultTitle
	}
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.Join(words, " ")
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50])
	}
	return title
}

// snapshotLocked copies the session. Callers must hold s.mu. Returns nil when
// nothing is loaded and no messages exist.
func (s *SessionService) snapshotLocked() *chattypes.Session {
	if s.id == "" && len(s.messages) == 0 {
		return nil
	}
	return &chattypes.Session{
		ID:        s.id,
		Category:  s.category,
		Title:     s.title,
		Messages:  append([]chattypes.Message(nil), s.messages...),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}
