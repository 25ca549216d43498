package services

import (
	"context"
	"sync"

	"toechat/internal/logger"
	"toechat/pkg/chattypes"
)

// permissiveLimit is used when the backend is unreachable: availability is
// preferred over strict enforcement, so an unknown quota never blocks a send.
const permissiveLimit = 1 << 20

// warningNumerator/warningDenominator express the 80% warning threshold
// without floating point.
const (
	warningNumerator   = 4
	warningDenominator = 5
)

// QuotaService tracks usage counters per session category against the plan
// limits reported by the backend. Increments are optimistic and may drift
// from server truth until the next fetch; that window is accepted and never
// reconciled mid-session.
type QuotaService struct {
	initialized bool
	backend     chattypes.Backend
	premium     bool

	mu     sync.Mutex
	usage  map[chattypes.Category]chattypes.QuotaState
	warned map[chattypes.Category]bool

	// onWarning, when set, fires once per category when usage crosses 80%
	// of the limit. It must not block.
	onWarning func(chattypes.Category, chattypes.QuotaState)
}

// NewQuotaService creates a quota tracker backed by the given collaborator.
// Premium accounts are never gated and never counted.
func NewQuotaService(backend chattypes.Backend, premium bool) *QuotaService {
	return &QuotaService{
		backend: backend,
		premium: premium,
		usage:   make(map[chattypes.Category]chattypes.QuotaState),
		warned:  make(map[chattypes.Category]bool),
	}
}

// Name returns the service name "quota_tracker" for registration.
func (q *QuotaService) Name() string {
	return "quota_tracker"
}

// Initialize sets up the QuotaService for operation.
func (q *QuotaService) Initialize() error {
	q.initialized = true
	logger.ServiceOperation("quota_tracker", "initialized", "premium", q.premium)
	return nil
}

// SetWarningFunc installs the non-blocking 80% warning callback.
func (q *QuotaService) SetWarningFunc(fn func(chattypes.Category, chattypes.QuotaState)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onWarning = fn
}

// FetchUsage retrieves current counters from the backend and replaces the
// local state with server truth. When the backend is unreachable the tracker
// falls back to a permissive default instead of blocking the user.
func (q *QuotaService) FetchUsage(ctx context.Context) (map[chattypes.Category]chattypes.QuotaState, error) {
	remote, err := q.backend.GetUsage(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		logger.Warn("Usage fetch failed, applying permissive fallback", "error", err)
		for _, category := range []chattypes.Category{chattypes.CategoryNormal, chattypes.CategoryInterview} {
			state, exists := q.usage[category]
			if !exists {
				state = chattypes.QuotaState{}
			}
			state.Limit = permissiveLimit
			q.usage[category] = state
		}
		return q.snapshotLocked(), nil
	}

	q.usage = make(map[chattypes.Category]chattypes.QuotaState, len(remote))
	for category, state := range remote {
		q.usage[category] = state
		logger.QuotaEvent("fetched", string(category), state.Used, state.Limit)
	}
	q.warned = make(map[chattypes.Category]bool)

	return q.snapshotLocked(), nil
}

// CheckLimit reports whether a send in the given category is allowed.
// Premium accounts always pass. Crossing 80% of the limit fires the warning
// callback without affecting the result. A category the tracker has never
// fetched is allowed through; the backend enforces the hard limit anyway.
func (q *QuotaService) CheckLimit(category chattypes.Category) bool {
	if q.premium {
		return true
	}

	q.mu.Lock()
	state, exists := q.usage[category]
	if !exists {
		q.mu.Unlock()
		return true
	}

	allowed := state.Used < state.Limit
	var warnFn func(chattypes.Category, chattypes.QuotaState)
	if allowed && !q.warned[category] && state.Used*warningDenominator >= state.Limit*warningNumerator {
		q.warned[category] = true
		warnFn = q.onWarning
	}
	q.mu.Unlock()

	if warnFn != nil {
		warnFn(category, state)
	}
	if !allowed {
		logger.QuotaEvent("limit_reached", string(category), state.Used, state.Limit)
	}

	return allowed
}

// IncrementUsage optimistically bumps the local counter after a successful
// send. It never decrements and is a no-op for premium accounts.
func (q *QuotaService) IncrementUsage(category chattypes.Category) {
	if q.premium {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	state := q.usage[category]
	state.Used++
	if state.Limit == 0 {
		// Never fetched; keep the gate permissive until real limits arrive.
		state.Limit = permissiveLimit
	}
	q.usage[category] = state
	logger.QuotaEvent("incremented", string(category), state.Used, state.Limit)
}

// Usage returns the tracked state for one category.
func (q *QuotaService) Usage(category chattypes.Category) chattypes.QuotaState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage[category]
}

func (q *QuotaService) snapshotLocked() map[chattypes.Category]chattypes.QuotaState {
	out := make(map[chattypes.Category]chattypes.QuotaState, len(q.usage))
	for category, state := range q.usage {
		out[category] = state
	}
	return out
}
