package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{
		"GNU C++17 (64)":  "GNU",
		"Python 3":        "Python",
		"Kotlin":          "Kotlin",
		"  Java 21  ":     "Java",
		"":                "",
		"PyPy 3.10 (7.3)": "PyPy",
	}

	for raw, want := range cases {
		assert.Equal(t, want, ParseLanguage(raw), "raw=%q", raw)
	}
}

func TestLanguageTally_MostFrequentWins(t *testing.T) {
	tally := NewLanguageTally()
	tally.Add("Python")
	tally.Add("GNU")
	tally.Add("GNU")

	lang, ok := tally.Most()
	assert.True(t, ok)
	assert.Equal(t, Language("GNU"), lang)
	assert.Equal(t, 2, tally.Count("GNU"))
}

func TestLanguageTally_TieGoesToFirstSeen(t *testing.T) {
	tally := NewLanguageTally()
	tally.Add("Kotlin")
	tally.Add("GNU")
	tally.Add("GNU")
	tally.Add("Kotlin")

	lang, ok := tally.Most()
	assert.True(t, ok)
	assert.Equal(t, Language("Kotlin"), lang)
}

func TestLanguageTally_Empty(t *testing.T) {
	_, ok := NewLanguageTally().Most()
	assert.False(t, ok)
}

func TestNewTagSet(t *testing.T) {
	tags := NewTagSet("math", "dp", "", "math", " greedy ")

	assert.Equal(t, TagSet{"dp", "greedy", "math"}, tags)
	assert.True(t, tags.Contains("dp"))
	assert.False(t, tags.Contains("graphs"))
}

func TestTagSet_StringsNeverNil(t *testing.T) {
	for _, tags := range []TagSet{nil, NewTagSet(), NewTagSet("", " ")} {
		got := tags.Strings()
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	src := NewTagSet("dp")
	got := src.Strings()
	got[0] = "math"
	assert.Equal(t, TagSet{"dp"}, src, "Strings returns a copy")
}

func TestNewProblemID(t *testing.T) {
	assert.Equal(t, ProblemID("1850-A"), NewProblemID(1850, "A"))
	assert.Equal(t, ProblemID("1850-A"), ProblemRef{ContestID: 1850, Index: "A"}.ID())
}

func TestNewStudent_Defaults(t *testing.T) {
	st, err := NewStudent(NewStudentParams{ID: "s1", Name: " Alice ", Handle: "tourist"})
	assert.NoError(t, err)

	assert.Equal(t, "Alice", st.Name)
	assert.Equal(t, DefaultPreferredLanguage, st.PreferredLanguage)
	assert.True(t, st.EmailRemindersEnabled)
	assert.Nil(t, st.LastSubmissionDate)
	assert.Zero(t, st.EmailReminders)
}

func TestNewStudent_InvalidHandle(t *testing.T) {
	_, err := NewStudent(NewStudentParams{ID: "s1", Handle: "a b"})
	assert.Error(t, err)
}
