package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
)

func TestNew_AppliesDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s, err := New(" FOO ", "bar", "", "", now)
	require.NoError(t, err)

	assert.Equal(t, "FOO", s.Key)
	assert.Equal(t, "Setting for FOO", s.Description)
	assert.Equal(t, SystemActor, s.UpdatedBy)
	assert.Equal(t, now, s.LastUpdated)
}

func TestNew_KeepsExplicitMetadata(t *testing.T) {
	s, err := New(SyncScheduleKey, "*/5 * * * *", SyncScheduleDescription, "admin", time.Now())
	require.NoError(t, err)

	assert.Equal(t, SyncScheduleDescription, s.Description)
	assert.Equal(t, "admin", s.UpdatedBy)
}

func TestNew_RejectsEmptyKey(t *testing.T) {
	_, err := New("  ", "v", "", "", time.Now())
	assert.True(t, shared.IsValidation(err))
}
