package service

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	vocabQuizTotalQuestions = 10
	vocabQuizNumCloze       = 4
	vocabQuizNumTyped       = 2
	vocabQuizMinWords       = 4
)

const (
	// Multiple choice, word shown, pick the definition.
	VocabQuestionMCWordToDef = "MC_V2D"
	// Multiple choice, context sentence with the word blanked out.
	VocabQuestionMCCloze = "MC_C2V"
	// Free input, definition shown, type the word.
	VocabQuestionTypeDefToWord = "TYPE_D2V"
)

// VocabQuizQuestion is one generated game question. Options is nil for the
// typed variant.
type VocabQuizQuestion struct {
	Word          string   `json:"word"`
	Type          string   `json:"type"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// VocabQuizService builds mixed-mode vocabulary games from a deck and feeds
// graded results back into the roadmap and the suggestion queue.
type VocabQuizService struct {
	DeckRepo  *repository.DeckRepository
	VocabRepo *repository.VocabRepository
	Progress  *ProgressService
	Roadmap   *RoadmapService
}

func NewVocabQuizService(deckRepo *repository.DeckRepository, vocabRepo *repository.VocabRepository, progress *ProgressService, roadmap *RoadmapService) *VocabQuizService {
	return &VocabQuizService{
		DeckRepo:  deckRepo,
		VocabRepo: vocabRepo,
		Progress:  progress,
		Roadmap:   roadmap,
	}
}

func sampleWords(pool []model.VocabWord, n int) []model.VocabWord {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rand.Perm(len(pool))[:n]
	out := make([]model.VocabWord, 0, n)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

func shuffleStrings(s []string) {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

func mcWordToDefQuestion(correct model.VocabWord, pool []model.VocabWord) VocabQuizQuestion {
	var candidates []model.VocabWord
	for _, w := range pool {
		if w.ID != correct.ID && w.Definition != "" {
			candidates = append(candidates, w)
		}
	}
	options := []string{correct.Definition}
	for _, w := range sampleWords(candidates, 3) {
		options = append(options, w.Definition)
	}
	for len(options) < 4 {
		options = append(options, "Incorrect definition placeholder")
	}
	shuffleStrings(options)

	return VocabQuizQuestion{
		Word:          correct.Word,
		Type:          VocabQuestionMCWordToDef,
		QuestionText:  correct.Word,
		Options:       options,
		CorrectAnswer: correct.Definition,
	}
}

func mcClozeQuestion(correct model.VocabWord, pool []model.VocabWord) VocabQuizQuestion {
	if correct.ContextSentence == "" {
		return mcWordToDefQuestion(correct, pool)
	}

	blankRe, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(correct.Word) + `\b`)
	questionText := correct.ContextSentence
	if err == nil {
		questionText = blankRe.ReplaceAllString(correct.ContextSentence, "[...]")
	}

	var candidates []model.VocabWord
	for _, w := range pool {
		if w.ID != correct.ID {
			candidates = append(candidates, w)
		}
	}
	options := []string{correct.Word}
	for _, w := range sampleWords(candidates, 3) {
		options = append(options, w.Word)
	}
	for len(options) < 4 {
		options = append(options, "incorrect word")
	}
	shuffleStrings(options)

	return VocabQuizQuestion{
		Word:          correct.Word,
		Type:          VocabQuestionMCCloze,
		QuestionText:  questionText,
		Options:       options,
		CorrectAnswer: correct.Word,
	}
}

func typeDefToWordQuestion(correct model.VocabWord) VocabQuizQuestion {
	return VocabQuizQuestion{
		Word:          correct.Word,
		Type:          VocabQuestionTypeDefToWord,
		QuestionText:  correct.Definition,
		CorrectAnswer: correct.Word,
	}
}

// CreateQuiz assembles a 10-question game from the deck: cloze questions
// from words carrying context sentences first, a couple of typed questions,
// and word-to-definition questions filling the rest.
func (s *VocabQuizService) CreateQuiz(deckID, userID uint) ([]VocabQuizQuestion, error) {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return nil, err
	}
	if deck.UserID != userID && !deck.Public {
		return nil, util.ErrDeckNotFound
	}

	all, err := s.VocabRepo.WordsByDeck(deckID, deck.UserID)
	if err != nil {
		return nil, err
	}
	if len(all) < vocabQuizMinWords {
		return nil, util.ErrDeckTooSmall
	}

	used := make(map[uint]bool)
	var withContext, noContext []model.VocabWord
	for _, w := range all {
		switch {
		case w.ContextSentence != "" && w.Definition != "":
			withContext = append(withContext, w)
		case w.Definition != "":
			noContext = append(noContext, w)
		}
	}

	var questions []VocabQuizQuestion

	for _, w := range sampleWords(withContext, vocabQuizNumCloze) {
		questions = append(questions, mcClozeQuestion(w, all))
		used[w.ID] = true
	}

	var remaining []model.VocabWord
	for _, w := range append(withContext, noContext...) {
		if !used[w.ID] {
			remaining = append(remaining, w)
		}
	}
	for _, w := range sampleWords(remaining, vocabQuizNumTyped) {
		questions = append(questions, typeDefToWordQuestion(w))
		used[w.ID] = true
	}

	needed := vocabQuizTotalQuestions - len(questions)
	var pool []model.VocabWord
	for _, w := range all {
		if !used[w.ID] && w.Definition != "" {
			pool = append(pool, w)
		}
	}
	// Small decks may reuse words across question styles to fill the set.
	if len(pool) < needed {
		for _, w := range all {
			if used[w.ID] && w.Definition != "" {
				pool = append(pool, w)
			}
			if len(pool) >= needed {
				break
			}
		}
	}
	for _, w := range sampleWords(pool, needed) {
		questions = append(questions, mcWordToDefQuestion(w, all))
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions, nil
}

// VocabQuizResult reports a graded game back to the client.
type VocabQuizResult struct {
	Score            float64        `json:"score"`
	CorrectCount     int            `json:"correctCount"`
	TotalQuestions   int            `json:"totalQuestions"`
	SuggestionsAdded int            `json:"suggestionsAdded"`
	Attempt          *AttemptResult `json:"attempt,omitempty"`
}

// SubmitResults grades a finished game. Missed words are queued as
// suggestions (reusing public deck data when available), and decks tied to a
// roadmap lesson record a vocabulary attempt and run the weekly cascade.
func (s *VocabQuizService) SubmitResults(ctx context.Context, userID, deckID uint, correct, total int, missedWords []string) (*VocabQuizResult, error) {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return nil, err
	}

	score := NormalizeScore(float64(correct), float64(total))
	result := &VocabQuizResult{
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: total,
	}

	result.SuggestionsAdded = s.queueMissedWords(userID, missedWords)

	if deck.LessonID == "" {
		return result, nil
	}

	attempt, _, err := s.Progress.ApplyAttempt(ctx, userID, deck.LessonID, model.SkillVocabulary, score)
	if err != nil {
		return nil, err
	}
	result.Attempt = attempt

	if !attempt.AlreadyResolved {
		s.Roadmap.HandleAttemptOutcome(ctx, userID, deck.LessonID)
	}
	return result, nil
}

// queueMissedWords turns quiz misses into word suggestions, copying
// dictionary data from public decks where a match exists. Best-effort.
func (s *VocabQuizService) queueMissedWords(userID uint, missed []string) int {
	cleaned := make([]string, 0, len(missed))
	seen := make(map[string]bool)
	for _, w := range missed {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw != "" && !seen[lw] {
			seen[lw] = true
			cleaned = append(cleaned, lw)
		}
	}
	if len(cleaned) == 0 {
		return 0
	}

	existing, err := s.VocabRepo.ExistingWordStrings(userID, cleaned)
	if err != nil {
		logger.Log.Warn("missed word dedupe lookup failed", zap.Error(err))
		return 0
	}
	known := make(map[string]bool, len(existing))
	for _, w := range existing {
		known[strings.ToLower(w)] = true
	}
	fresh := cleaned[:0]
	for _, w := range cleaned {
		if !known[w] {
			fresh = append(fresh, w)
		}
	}
	if len(fresh) == 0 {
		return 0
	}

	public, err := s.VocabRepo.FindPublicWordsData(fresh)
	if err != nil {
		logger.Log.Warn("public word lookup failed", zap.Error(err))
		return 0
	}

	suggestions := make([]model.WordSuggestion, 0, len(public))
	for _, w := range public {
		suggestions = append(suggestions, model.WordSuggestion{
			UserID:          userID,
			Word:            w.Word,
			Type:            w.Type,
			Definition:      w.Definition,
			Pronunciation:   w.Pronunciation,
			ContextSentence: w.ContextSentence,
			AudioURL:        w.AudioURL,
		})
	}
	if len(suggestions) == 0 {
		return 0
	}
	if err := s.VocabRepo.BulkCreateSuggestions(suggestions); err != nil {
		logger.Log.Warn("missed word suggestion insert failed", zap.Error(err))
		return 0
	}
	logger.Log.Info("missed quiz words queued as suggestions",
		zap.Uint("userId", userID), zap.Int("count", len(suggestions)))
	return len(suggestions)
}
