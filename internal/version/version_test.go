package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	SetBuildInfo(version, commit, date)
	t.Cleanup(func() {
		SetBuildInfo(origVersion, origCommit, origDate)
	})
}

func TestGetVersion(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abc1234", "2025-01-01")
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestGetInfo(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abc1234", "2025-01-01")

	info, err := GetInfo()
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc1234", info.GitCommit)
	assert.Equal(t, "2025-01-01", info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	require.NotNil(t, info.SemVer)
	assert.Equal(t, uint64(1), info.SemVer.Major())
}

func TestGetInfoInvalidVersion(t *testing.T) {
	withBuildInfo(t, "not-a-version", "unknown", "unknown")

	_, err := GetInfo()
	assert.Error(t, err)
}

func TestGetFormattedVersion(t *testing.T) {
	t.Run("full build info", func(t *testing.T) {
		withBuildInfo(t, "1.2.3", "abcdef1234567890", "2025-01-01")

		formatted := GetFormattedVersion()
		assert.Contains(t, formatted, "toechat v1.2.3")
		assert.Contains(t, formatted, "commit abcdef1")
		assert.Contains(t, formatted, "built 2025-01-01")
	})

	t.Run("development build", func(t *testing.T) {
		withBuildInfo(t, "1.2.3", "unknown", "unknown")

		formatted := GetFormattedVersion()
		assert.Equal(t, "toechat v1.2.3", formatted)
	})
}

func TestValidateVersion(t *testing.T) {
	withBuildInfo(t, "0.1.0", "unknown", "unknown")
	assert.NoError(t, ValidateVersion())

	withBuildInfo(t, "bogus", "unknown", "unknown")
	assert.Error(t, ValidateVersion())
}

func TestIsDevelopment(t *testing.T) {
	withBuildInfo(t, "1.0.0", "unknown", "unknown")
	assert.True(t, IsDevelopment())

	withBuildInfo(t, "1.0.0", "abc1234", "2025-01-01")
	assert.False(t, IsDevelopment())
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2   string
		expected int
	}{
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.2.3", "1.2.3", 0},
		{"1.0.0-alpha", "1.0.0", -1},
	}

	for _, tt := range tests {
		result, err := CompareVersions(tt.v1, tt.v2)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, result, "%s vs %s", tt.v1, tt.v2)
	}

	_, err := CompareVersions("bad", "1.0.0")
	assert.Error(t, err)
}
