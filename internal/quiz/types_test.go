package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizState(t *testing.T) {
	cases := []struct {
		name string
		quiz Quiz
		want Lifecycle
	}{
		{"draft", Quiz{}, StateDraft},
		{"locked", Quiz{IsLocked: true}, StateLocked},
		{"published", Quiz{IsLocked: true, IsPublished: true, PublishCount: 1}, StatePublished},
		{"active", Quiz{IsLocked: true, IsPublished: true, IsActive: true, PublishCount: 1}, StateActive},
		{"paused", Quiz{IsLocked: true, IsPublished: true, IsActive: true, IsPaused: true, PublishCount: 1}, StatePaused},
		{"stopped", Quiz{IsLocked: true, PublishCount: 2}, StateStopped},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.quiz.State())
		})
	}
}

func TestParseQuestionType(t *testing.T) {
	assert.Equal(t, TypeSingleChoice, ParseQuestionType("multiple-choice"))
	assert.Equal(t, TypeMultiSelect, ParseQuestionType("checkbox"))
	assert.Equal(t, TypeShortAnswer, ParseQuestionType("Short-Answer"))
	assert.Equal(t, TypeParagraph, ParseQuestionType("paragraph"))
	assert.Equal(t, QuestionType("true_false"), ParseQuestionType("true_false"))
	assert.False(t, ParseQuestionType("true_false").Known())
}

func TestLeaderboardVisible(t *testing.T) {
	q := Question{ShowLeaderboard: true}
	assert.False(t, Quiz{ShowLeaderboard: false}.LeaderboardVisible(q))
	assert.False(t, Quiz{ShowLeaderboard: true}.LeaderboardVisible(Question{}))
	assert.True(t, Quiz{ShowLeaderboard: true}.LeaderboardVisible(q))
}

func TestOverallTimerSeconds(t *testing.T) {
	assert.Equal(t, 0, Quiz{}.OverallTimerSeconds())
	assert.Equal(t, 0, Quiz{OverallTimerMinutes: -1}.OverallTimerSeconds())
	assert.Equal(t, 300, Quiz{OverallTimerMinutes: 5}.OverallTimerSeconds())
}

func TestNewJoinCode(t *testing.T) {
	code, err := NewJoinCode(0)
	require.NoError(t, err)
	assert.Len(t, code, DefaultJoinCodeLength)
	assert.True(t, ValidJoinCode(code))

	long, err := NewJoinCode(10)
	require.NoError(t, err)
	assert.Len(t, long, 10)
}

func TestNormalizeJoinCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeJoinCode("  ab12cd "))
	assert.False(t, ValidJoinCode("ab12"))
	assert.False(t, ValidJoinCode(""))
}
