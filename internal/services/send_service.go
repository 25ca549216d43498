package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"toechat/internal/logger"
	"toechat/internal/testutils"
	"toechat/pkg/chattypes"
)

// contextWindowSize bounds how much prior conversation travels with a
// completion call. A cost and latency control, not a correctness requirement.
const contextWindowSize = 10

// SendService is the optimistic send pipeline. It inserts a provisional user
// message for responsiveness, drives the remote round trip, and reconciles
// the provisional entry with the authoritative response or rolls it back.
//
// Sends are strictly serialized per session view: a second Send issued while
// one is in flight queues behind it. Two rapid sends against the same
// not-yet-created session therefore collapse into a single session-creation
// event: the first send mints the identifier under the pipeline lock and the
// second adopts it instead of creating again.
type SendService struct {
	initialized bool
	backend     chattypes.Backend
	store       *SessionService
	quota       *QuotaService
	testMode    bool

	// sendMu serializes sends for this view.
	sendMu sync.Mutex
}

// NewSendService creates the send pipeline over the session store and quota
// tracker.
func NewSendService(backend chattypes.Backend, store *SessionService, quota *QuotaService, testMode bool) *SendService {
	return &SendService{
		backend:  backend,
		store:    store,
		quota:    quota,
		testMode: testMode,
	}
}

// Name returns the service name "send_pipeline" for registration.
func (p *SendService) Name() string {
	return "send_pipeline"
}

// Initialize sets up the SendService for operation.
func (p *SendService) Initialize() error {
	if p.store == nil || p.quota == nil {
		return fmt.Errorf("send pipeline requires a session store and a quota tracker")
	}
	p.initialized = true
	logger.ServiceOperation("send_pipeline", "initialized")
	return nil
}

// Send performs one user turn against the session addressed by ref.
//
// Failure at any point after the optimistic insert removes the provisional
// message, leaves the quota untouched, and never mutates the session
// identity: the caller can retry with a simple re-submit.
func (p *SendService) Send(ctx context.Context, ref chattypes.SessionRef, category chattypes.Category, content string, files []chattypes.FileUpload) (*chattypes.SendResult, error) {
	if !p.initialized {
		return nil, fmt.Errorf("send pipeline not initialized")
	}
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		return nil, chattypes.ErrEmptyMessage
	}
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	// Gate under the pipeline lock so queued sends see counters bumped by
	// the sends ahead of them.
	if !p.quota.CheckLimit(category) {
		return nil, chattypes.ErrUsageLimitReached
	}

	// A queued send that still carries the "new" sentinel reuses the
	// identifier minted by the send ahead of it. Only the first creates.
	wasNew := ref.IsNew()
	if wasNew && p.store.CurrentID() != "" {
		adopted, err := chattypes.ExistingSession(p.store.CurrentID())
		if err != nil {
			return nil, err
		}
		ref = adopted
		wasNew = false
	}

	// An existing ref that doesn't match the open session is loaded first so
	// the pipeline always reconciles against the right message log.
	if !ref.IsNew() && p.store.CurrentID() != ref.ID() {
		if _, err := p.store.LoadSession(ctx, category, ref.ID()); err != nil {
			return nil, err
		}
	}

	// Prior conversation only: the window never includes the message being
	// sent.
	window := p.store.ContextWindow(contextWindowSize)

	// The provisional entry lists attachments by name and size before any
	// upload happens; references are filled in at reconciliation.
	placeholders := make([]chattypes.Attachment, 0, len(files))
	for _, file := range files {
		placeholders = append(placeholders, chattypes.Attachment{
			Name:      file.Name,
			MimeType:  file.MimeType,
			SizeBytes: int64(len(file.Data)),
		})
	}

	provisional := p.store.AppendProvisional(content, placeholders)
	logger.SendPhase("provisional_inserted", ref.String(), "message", provisional.ID)

	createdSessionID := ""
	if wasNew {
		created, err := p.store.CreateSession(ctx, category, DeriveTitle(content))
		if err != nil {
			p.rollback(provisional.ID, "create_failed", err)
			return nil, err
		}
		createdSessionID = created.ID
		logger.SendPhase("session_created", createdSessionID)
	}

	var attachments []chattypes.Attachment
	if len(files) > 0 {
		uploaded, err := p.backend.UploadFiles(ctx, files)
		if err != nil {
			// Attachments and text travel together or not at all.
			p.rollback(provisional.ID, "upload_failed", err)
			return nil, fmt.Errorf("%w: %v", chattypes.ErrUploadFailed, err)
		}
		attachments = uploaded
		logger.SendPhase("attachments_uploaded", p.store.CurrentID(), "count", len(attachments))
	}

	response, err := p.backend.Completion(ctx, category, chattypes.CompletionRequest{
		Content:       content,
		Attachments:   attachments,
		ContextWindow: window,
	})
	if err != nil {
		p.rollback(provisional.ID, "completion_failed", err)
		if chattypes.IsTransportError(err) || errors.Is(err, chattypes.ErrUsageLimitReached) {
			return nil, err
		}
		return nil, chattypes.NewTransportError("completion", err)
	}

	// Reconcile: the provisional entry is replaced wholesale by the
	// confirmed exchange, never merged field by field.
	confirmed := chattypes.Message{
		ID:          testutils.GenerateUUID(p.testMode),
		Role:        chattypes.RoleUser,
		Content:     content,
		Attachments: attachments,
		Timestamp:   provisional.Timestamp,
	}
	assistant := response.Message
	if assistant.ID == "" {
		assistant.ID = testutils.GenerateUUID(p.testMode)
	}
	if assistant.Role == "" {
		assistant.Role = chattypes.RoleAssistant
	}
	p.store.ReconcileExchange(provisional.ID, confirmed, assistant)
	logger.SendPhase("reconciled", p.store.CurrentID(), "assistant", assistant.ID)

	p.persist(ctx, category)
	p.quota.IncrementUsage(category)

	return &chattypes.SendResult{
		Session:          p.store.Snapshot(),
		WasNewlyCreated:  createdSessionID != "",
		CreatedSessionID: createdSessionID,
	}, nil
}

// rollback removes the provisional message so the log returns to exactly its
// pre-send contents.
func (p *SendService) rollback(provisionalID, phase string, cause error) {
	p.store.RemoveMessage(provisionalID)
	logger.SendPhase("rolled_back", p.store.CurrentID(), "reason", phase, "error", cause)
}

// persist saves the reconciled transcript remotely. The local state is
// already authoritative, so a persistence failure is logged and tolerated
// rather than surfaced: the next successful send retries it implicitly.
func (p *SendService) persist(ctx context.Context, category chattypes.Category) {
	snapshot := p.store.Snapshot()
	if snapshot == nil || snapshot.ID == "" {
		return
	}
	if _, err := p.backend.UpdateSession(ctx, category, snapshot); err != nil {
		logger.Warn("Transcript persistence failed", "session", snapshot.ID, "error", err)
	}
}
