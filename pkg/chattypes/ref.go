package chattypes

import (
	"fmt"

	"github.com/google/uuid"
)

// NewSessionSentinel is the identifier the UI layer uses for a conversation
// that has not been created remotely yet.
const NewSessionSentinel = "new"

// SessionRef identifies the target of a send or load. It is either the "new"
// sentinel (no remote identity yet) or a validated canonical token. The zero
// value is a new-session ref.
type SessionRef struct {
	id string
}

// NewSession returns a ref addressing a not-yet-created session.
func NewSession() SessionRef {
	return SessionRef{}
}

// ExistingSession returns a ref addressing a persisted session. The identifier
// must be a canonical 36-character token; anything else is rejected locally.
func ExistingSession(id string) (SessionRef, error) {
	if !ValidToken(id) {
		return SessionRef{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return SessionRef{id: id}, nil
}

// ParseSessionRef converts a raw identifier from the UI boundary into a ref.
// Empty strings and the "new" sentinel map to a new-session ref; everything
// else must be a canonical token.
func ParseSessionRef(raw string) (SessionRef, error) {
	if raw == "" || raw == NewSessionSentinel {
		return NewSession(), nil
	}
	return ExistingSession(raw)
}

// IsNew reports whether the ref addresses a not-yet-created session.
func (r SessionRef) IsNew() bool {
	return r.id == ""
}

// ID returns the canonical token, or the empty string for a new-session ref.
func (r SessionRef) ID() string {
	return r.id
}

// String renders the ref for logging.
func (r SessionRef) String() string {
	if r.IsNew() {
		return NewSessionSentinel
	}
	return r.id
}

// ValidToken reports whether s is a canonical 36-character session token
// (8-4-4-4-12 hex groups). The check is purely local so malformed identifiers
// never cost a network round trip.
func ValidToken(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHexDigit(c) {
				return false
			}
		}
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
