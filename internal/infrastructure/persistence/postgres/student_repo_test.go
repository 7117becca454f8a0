package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

func TestUpdateAggregates_LeavesReminderColumnsAlone(t *testing.T) {
	assert.NotContains(t, updateAggregatesSQL, "email_reminders")

	st := &student.Student{
		ID:                    "s1",
		CurrentRating:         1650,
		EmailReminders:        4,
		EmailRemindersEnabled: true,
		PreferredLanguage:     student.DefaultPreferredLanguage,
	}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	args := updateAggregatesArgs(st, now)
	require.Len(t, args, 9, "one arg per placeholder")
	assert.Equal(t, 1650, args[0])
	assert.Equal(t, now, args[7])
	assert.Equal(t, "s1", args[8])
	assert.NotContains(t, args, 4)
}
