package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func diagnosticQuestions() []AssessmentQuestion {
	return []AssessmentQuestion{
		{ID: 1, QuestionType: "grammar", CorrectAnswerKey: "A"},
		{ID: 2, QuestionType: "grammar", CorrectAnswerKey: "B"},
		{ID: 3, QuestionType: "grammar", CorrectAnswerKey: "C"},
		{ID: 4, QuestionType: "vocabulary", CorrectAnswerKey: "D"},
		{ID: 5, QuestionType: "vocabulary", CorrectAnswerKey: "A"},
		{ID: 21, QuestionType: "speaking_prompt"},
	}
}

func TestCalculateMCQScoreFlagsWeakTopics(t *testing.T) {
	answers := map[string]string{
		"1": "A", // correct
		"2": "D", // wrong
		"3": "D", // wrong -> grammar 1/3
		"4": "D", // correct
		"5": "A", // correct -> vocabulary 2/2
	}

	analysis := CalculateMCQScore(answers, diagnosticQuestions())

	assert.Equal(t, 3, analysis.CorrectCount)
	assert.Equal(t, 5, analysis.TotalQuestions)
	assert.Equal(t, 60.0, analysis.ScorePercent)
	assert.Equal(t, []string{"grammar (correct: 1/3)"}, analysis.WeakTopics)
}

func TestCalculateMCQScoreAnswersAreCaseInsensitive(t *testing.T) {
	answers := map[string]string{"1": "a", "2": "b", "3": "c", "4": "d", "5": "a"}

	analysis := CalculateMCQScore(answers, diagnosticQuestions())

	assert.Equal(t, 5, analysis.CorrectCount)
	assert.Equal(t, 100.0, analysis.ScorePercent)
	assert.Equal(t, []string{"No major weaknesses detected in the multiple-choice section."}, analysis.WeakTopics)
}

func TestCalculateMCQScoreIgnoresUnknownAndSpeaking(t *testing.T) {
	// An answer keyed to the speaking prompt or to a non-existent id never
	// counts toward the topic tallies.
	answers := map[string]string{"1": "A", "21": "A", "99": "A"}

	analysis := CalculateMCQScore(answers, diagnosticQuestions())

	assert.Equal(t, 1, analysis.CorrectCount)
	assert.Equal(t, 3, analysis.TotalQuestions)
	assert.Equal(t, []string{"No major weaknesses detected in the multiple-choice section."}, analysis.WeakTopics)
}

func TestCalculateMCQScoreEmptySubmission(t *testing.T) {
	analysis := CalculateMCQScore(map[string]string{}, diagnosticQuestions())

	assert.Equal(t, 0, analysis.CorrectCount)
	assert.Equal(t, 0, analysis.TotalQuestions)
	assert.Equal(t, 0.0, analysis.ScorePercent)
	assert.Nil(t, analysis.WeakTopics)
}

func TestCalculateMCQScoreMultipleWeakTopicsSorted(t *testing.T) {
	questions := []AssessmentQuestion{
		{ID: 1, QuestionType: "vocabulary", CorrectAnswerKey: "A"},
		{ID: 2, QuestionType: "grammar", CorrectAnswerKey: "A"},
	}
	answers := map[string]string{"1": "B", "2": "B"}

	analysis := CalculateMCQScore(answers, questions)

	assert.Equal(t, []string{
		"grammar (correct: 0/1)",
		"vocabulary (correct: 0/1)",
	}, analysis.WeakTopics)
}
