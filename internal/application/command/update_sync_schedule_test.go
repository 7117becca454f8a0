package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
)

func TestUpdateSyncScheduleHandler(t *testing.T) {
	store := &memSettings{values: map[string]*settings.Setting{}}
	sched := &fakeRescheduler{}
	h := NewUpdateSyncScheduleHandler(store, sched)

	st, err := h.Handle(context.Background(), UpdateSyncScheduleCommand{Schedule: " */15 * * * * ", UpdatedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", st.Value)
	assert.Equal(t, "admin", st.UpdatedBy)
	assert.Equal(t, settings.SyncScheduleDescription, st.Description)
	assert.Equal(t, []string{"*/15 * * * *"}, sched.rescheduled)

	v, err := store.Get(context.Background(), settings.SyncScheduleKey, settings.DefaultSyncSchedule)
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", v)
}

func TestUpdateSyncScheduleHandler_Invalid(t *testing.T) {
	store := &memSettings{values: map[string]*settings.Setting{}}
	sched := &fakeRescheduler{invalid: true}
	h := NewUpdateSyncScheduleHandler(store, sched)

	_, err := h.Handle(context.Background(), UpdateSyncScheduleCommand{Schedule: "nonsense"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, store.values)
	assert.Empty(t, sched.rescheduled)
}
