package chattypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{"canonical token", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"uppercase hex", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", true},
		{"empty", "", false},
		{"new sentinel", "new", false},
		{"too short", "6ba7b810-9dad-11d1-80b4", false},
		{"too long", "6ba7b810-9dad-11d1-80b4-00c04fd430c8ff", false},
		{"missing hyphens", "6ba7b8109dad11d180b400c04fd430c8aaaa", false},
		{"non-hex characters", "6ba7b810-9dad-11d1-80b4-00c04fd430zz", false},
		{"hyphen misplaced", "6ba7b8109-dad-11d1-80b4-00c04fd430c8", false},
		{"braced form rejected", "{6ba7b810-9dad-11d1-80b4-00c04fd430c}", false},
		{"whitespace padded", " 6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidToken(tt.token))
		})
	}
}

func TestParseSessionRef(t *testing.T) {
	t.Run("empty string is a new-session ref", func(t *testing.T) {
		ref, err := ParseSessionRef("")
		require.NoError(t, err)
		assert.True(t, ref.IsNew())
		assert.Empty(t, ref.ID())
	})

	t.Run("new sentinel is a new-session ref", func(t *testing.T) {
		ref, err := ParseSessionRef(NewSessionSentinel)
		require.NoError(t, err)
		assert.True(t, ref.IsNew())
	})

	t.Run("canonical token is an existing ref", func(t *testing.T) {
		ref, err := ParseSessionRef("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		require.NoError(t, err)
		assert.False(t, ref.IsNew())
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", ref.ID())
	})

	t.Run("malformed token is rejected", func(t *testing.T) {
		_, err := ParseSessionRef("not-a-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})
}

func TestSessionRefString(t *testing.T) {
	ref := NewSession()
	assert.Equal(t, "new", ref.String())

	existing, err := ExistingSession("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", existing.String())
}

func TestQuotaStateRemaining(t *testing.T) {
	assert.Equal(t, 3, QuotaState{Used: 7, Limit: 10}.Remaining())
	assert.Equal(t, 0, QuotaState{Used: 10, Limit: 10}.Remaining())
	assert.Equal(t, 0, QuotaState{Used: 12, Limit: 10}.Remaining())
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryNormal.Valid())
	assert.True(t, CategoryInterview.Valid())
	assert.False(t, Category("voice").Valid())
	assert.False(t, Category("").Valid())
}
