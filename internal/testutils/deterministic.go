// Package testutils provides deterministic generators and test doubles for toechat testing.
// These utilities ensure consistent test output while maintaining production format compatibility.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex

	// Thread-safe counter for deterministic timestamp generation
	timeCounter int64
	timeMutex   sync.Mutex
)

// GenerateUUID generates a UUID that is deterministic in test mode but random in production.
// In test mode, returns UUIDs in format: 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, etc.
// In production mode, returns standard random UUIDs.
func GenerateUUID(testMode bool) string {
	if testMode {
		return getDeterministicUUID()
	}
	return uuid.New().String()
}

// GetCurrentTime returns the current time, deterministic in test mode but real in production.
// In test mode, returns incrementing time starting from 2025-01-01T00:00:00Z.
// In production mode, returns time.Now().
func GetCurrentTime(testMode bool) time.Time {
	if testMode {
		return getDeterministicTime()
	}
	return time.Now()
}

// GenerateProvisionalID generates a timestamp-prefixed local identifier for an
// optimistic message. The shape is distinct from a canonical session token so
// a provisional entry can never be mistaken for a confirmed one.
func GenerateProvisionalID(testMode bool) string {
	if testMode {
		idMutex.Lock()
		defer idMutex.Unlock()
		idCounter++
		return fmt.Sprintf("pending-1735689600-%06d", idCounter)
	}
	return fmt.Sprintf("pending-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}

// ResetCounters resets the deterministic counters so each test starts from a
// known sequence.
func ResetCounters() {
	idMutex.Lock()
	idCounter = 0
	idMutex.Unlock()

	timeMutex.Lock()
	timeCounter = 0
	timeMutex.Unlock()
}

// getDeterministicUUID generates a deterministic UUID maintaining UUID v4 format.
// Returns UUIDs like: 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002
func getDeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++

	// Format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
	// Where 4 indicates version 4, and y is 8, 9, a, or b (we use 8 for simplicity)
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

// getDeterministicTime generates incrementing deterministic timestamps for test mode.
// Each call returns a time that is 1 second later than the previous call.
func getDeterministicTime() time.Time {
	timeMutex.Lock()
	defer timeMutex.Unlock()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t := base.Add(time.Duration(timeCounter) * time.Second)
	timeCounter++
	return t
}
