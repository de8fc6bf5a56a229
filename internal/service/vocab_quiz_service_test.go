package service

import (
	"testing"

	"english_edu_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizWord(id uint, word, definition, sentence string) model.VocabWord {
	return model.VocabWord{
		BaseModel:       model.BaseModel{ID: id},
		Word:            word,
		Definition:      definition,
		ContextSentence: sentence,
	}
}

func quizPool() []model.VocabWord {
	return []model.VocabWord{
		quizWord(1, "resilient", "able to recover quickly", "She stayed resilient after the setback."),
		quizWord(2, "frugal", "careful with money", ""),
		quizWord(3, "candid", "honest and direct", "He gave a candid answer."),
		quizWord(4, "tedious", "boring and repetitive", ""),
		quizWord(5, "vivid", "very clear and detailed", ""),
	}
}

func TestMCWordToDefQuestion(t *testing.T) {
	pool := quizPool()
	q := mcWordToDefQuestion(pool[0], pool)

	assert.Equal(t, VocabQuestionMCWordToDef, q.Type)
	assert.Equal(t, "resilient", q.QuestionText)
	assert.Equal(t, "able to recover quickly", q.CorrectAnswer)
	require.Len(t, q.Options, 4)
	assert.Contains(t, q.Options, q.CorrectAnswer)
	// Distractors come from other words, never from the answer itself.
	count := 0
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMCWordToDefQuestionPadsSmallPool(t *testing.T) {
	pool := quizPool()[:2]
	q := mcWordToDefQuestion(pool[0], pool)

	require.Len(t, q.Options, 4)
	assert.Contains(t, q.Options, "Incorrect definition placeholder")
	assert.Contains(t, q.Options, q.CorrectAnswer)
}

func TestMCClozeQuestionBlanksWholeWordOnly(t *testing.T) {
	pool := quizPool()
	correct := quizWord(9, "art", "creative work", "Art class starts early; the artist loves art.")
	q := mcClozeQuestion(correct, pool)

	assert.Equal(t, VocabQuestionMCCloze, q.Type)
	// Case-insensitive, word-boundary replacement: "artist" keeps its word.
	assert.Equal(t, "[...] class starts early; the artist loves [...].", q.QuestionText)
	assert.Equal(t, "art", q.CorrectAnswer)
	require.Len(t, q.Options, 4)
	assert.Contains(t, q.Options, "art")
}

func TestMCClozeQuestionFallsBackWithoutContext(t *testing.T) {
	pool := quizPool()
	q := mcClozeQuestion(pool[1], pool) // "frugal" has no context sentence

	assert.Equal(t, VocabQuestionMCWordToDef, q.Type)
	assert.Equal(t, "careful with money", q.CorrectAnswer)
}

func TestTypeDefToWordQuestion(t *testing.T) {
	q := typeDefToWordQuestion(quizPool()[2])

	assert.Equal(t, VocabQuestionTypeDefToWord, q.Type)
	assert.Equal(t, "honest and direct", q.QuestionText)
	assert.Equal(t, "candid", q.CorrectAnswer)
	assert.Nil(t, q.Options)
}
