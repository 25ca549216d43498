package testutils

import (
	"context"
	"fmt"
	"sync"

	"toechat/pkg/chattypes"
)

// FakeBackend is an in-process implementation of chattypes.Backend for
// service tests. It counts calls, records the last completion request, and
// can be told to fail any single operation.
type FakeBackend struct {
	mu sync.Mutex

	Usage    map[chattypes.Category]chattypes.QuotaState
	Sessions map[string]*chattypes.Session

	// Per-operation failure injection. A non-nil error is returned verbatim.
	FailUsage      error
	FailCreate     error
	FailGet        error
	FailUpdate     error
	FailCompletion error
	FailUpload     error
	FailDelete     error

	// GetSessionHook runs before a GetSession call resolves, outside the
	// backend lock, so tests can stage load races.
	GetSessionHook func(category chattypes.Category, id string)

	// ReplyContent overrides the assistant reply body when non-empty.
	ReplyContent string

	UsageCalls      int
	CreateCalls     int
	GetCalls        int
	UpdateCalls     int
	ListCalls       int
	DeleteCalls     int
	CompletionCalls int
	UploadCalls     int

	LastCompletion chattypes.CompletionRequest
}

// NewFakeBackend returns a fake backend with the original plan defaults
// (10 normal sends, 5 interview sends) and no stored sessions.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Usage: map[chattypes.Category]chattypes.QuotaState{
			chattypes.CategoryNormal:    {Used: 0, Limit: 10},
			chattypes.CategoryInterview: {Used: 0, Limit: 5},
		},
		Sessions: make(map[string]*chattypes.Session),
	}
}

// GetUsage implements chattypes.Backend.
func (f *FakeBackend) GetUsage(_ context.Context) (map[chattypes.Category]chattypes.QuotaState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UsageCalls++
	if f.FailUsage != nil {
		return nil, f.FailUsage
	}

	out := make(map[chattypes.Category]chattypes.QuotaState, len(f.Usage))
	for k, v := range f.Usage {
		out[k] = v
	}
	return out, nil
}

// CreateSession implements chattypes.Backend.
func (f *FakeBackend) CreateSession(_ context.Context, category chattypes.Category, title string) (*chattypes.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	if f.FailCreate != nil {
		return nil, f.FailCreate
	}

	now := GetCurrentTime(true)
	session := &chattypes.Session{
		ID:        GenerateUUID(true),
		Category:  category,
		Title:     title,
		Messages:  make([]chattypes.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.Sessions[session.ID] = session
	return copySession(session), nil
}

// GetSession implements chattypes.Backend.
func (f *FakeBackend) GetSession(_ context.Context, category chattypes.Category, id string) (*chattypes.Session, error) {
	if f.GetSessionHook != nil {
		f.GetSessionHook(category, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls++
	if f.FailGet != nil {
		return nil, f.FailGet
	}

	session, exists := f.Sessions[id]
	if !exists {
		return nil, chattypes.ErrNotFound
	}
	return copySession(session), nil
}

// UpdateSession implements chattypes.Backend.
func (f *FakeBackend) UpdateSession(_ context.Context, _ chattypes.Category, session *chattypes.Session) (*chattypes.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UpdateCalls++
	if f.FailUpdate != nil {
		return nil, f.FailUpdate
	}

	stored, exists := f.Sessions[session.ID]
	if !exists {
		return nil, chattypes.ErrNotFound
	}
	stored.Title = session.Title
	stored.Messages = append([]chattypes.Message(nil), session.Messages...)
	stored.UpdatedAt = GetCurrentTime(true)
	return copySession(stored), nil
}

// ListSessions implements chattypes.Backend.
func (f *FakeBackend) ListSessions(_ context.Context, category chattypes.Category, page, perPage int) (*chattypes.SessionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	sessions := make([]chattypes.Session, 0)
	for _, s := range f.Sessions {
		if s.Category == category {
			sessions = append(sessions, *copySession(s))
		}
	}
	return &chattypes.SessionPage{
		Sessions: sessions,
		Total:    len(sessions),
		Page:     page,
		PerPage:  perPage,
	}, nil
}

// DeleteSession implements chattypes.Backend.
func (f *FakeBackend) DeleteSession(_ context.Context, _ chattypes.Category, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls++
	if f.FailDelete != nil {
		return f.FailDelete
	}

	if _, exists := f.Sessions[id]; !exists {
		return chattypes.ErrNotFound
	}
	delete(f.Sessions, id)
	return nil
}

// Completion implements chattypes.Backend.
func (f *FakeBackend) Completion(_ context.Context, _ chattypes.Category, req chattypes.CompletionRequest) (*chattypes.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CompletionCalls++
	f.LastCompletion = req
	if f.FailCompletion != nil {
		return nil, f.FailCompletion
	}

	content := f.ReplyContent
	if content == "" {
		content = fmt.Sprintf("reply to: %s", req.Content)
	}
	return &chattypes.CompletionResponse{
		Message: chattypes.Message{
			ID:        GenerateUUID(true),
			Role:      chattypes.RoleAssistant,
			Content:   content,
			Timestamp: GetCurrentTime(true),
		},
		TokensUsed: 42,
		Cost:       0.0001,
	}, nil
}

// UploadFiles implements chattypes.Backend.
func (f *FakeBackend) UploadFiles(_ context.Context, files []chattypes.FileUpload) ([]chattypes.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UploadCalls++
	if f.FailUpload != nil {
		return nil, f.FailUpload
	}

	attachments := make([]chattypes.Attachment, 0, len(files))
	for _, file := range files {
		attachments = append(attachments, chattypes.Attachment{
			Reference: "file-" + GenerateUUID(true),
			Name:      file.Name,
			MimeType:  file.MimeType,
			SizeBytes: int64(len(file.Data)),
		})
	}
	return attachments, nil
}

func copySession(s *chattypes.Session) *chattypes.Session {
	out := *s
	out.Messages = append([]chattypes.Message(nil), s.Messages...)
	return &out
}
