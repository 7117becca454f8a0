package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

func untaggedRecord() *student.ProblemRecord {
	return &student.ProblemRecord{
		ID:         "p1",
		StudentID:  "s1",
		ProblemID:  student.NewProblemID(1920, "D"),
		ContestID:  1920,
		Index:      "D",
		Name:       "Unrated",
		SolvedDate: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

// encodeTextArray encodes v the way pgx sends a text[] parameter.
// A nil result means SQL NULL.
func encodeTextArray(t *testing.T, v any) []byte {
	t.Helper()
	buf, err := pgtype.NewMap().Encode(pgtype.TextArrayOID, pgtype.BinaryFormatCode, v, nil)
	require.NoError(t, err)
	return buf
}

func TestProblemArgs_EmptyTagsEncodeAsArray(t *testing.T) {
	rec := untaggedRecord()

	insert := problemInsertArgs(rec)
	require.Len(t, insert, 13)
	assert.NotNil(t, encodeTextArray(t, insert[7]), "insert tags must not be NULL")

	update := problemUpdateArgs(rec)
	require.Len(t, update, 11)
	assert.NotNil(t, encodeTextArray(t, update[4]), "update tags must not be NULL")
}

func TestProblemArgs_NilSliceWouldBeNull(t *testing.T) {
	// Guards the assumption behind the test above.
	assert.Nil(t, encodeTextArray(t, []string(nil)))
}

func TestProblemArgs_TagsKeepOrder(t *testing.T) {
	rec := untaggedRecord()
	rec.Tags = student.NewTagSet("math", "dp")

	assert.Equal(t, []string{"dp", "math"}, problemInsertArgs(rec)[7])
}
