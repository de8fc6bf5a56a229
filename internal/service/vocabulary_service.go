package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	deckGenerationWordCount = 15
	// A word whose review interval has grown past this is considered
	// permanently learned and leaves the review rotation.
	masteredIntervalDays = 90
)

// CalculateSRS is the SM-2 scheduling update. Quality runs 0-5; below 3 the
// interval resets and the ease factor is penalized. The ease factor never
// drops below 1.3.
func CalculateSRS(quality, intervalDays int, easeFactor float64) (int, float64, time.Time) {
	var newInterval int
	var newEase float64

	if quality < 3 {
		newInterval = 1
		newEase = easeFactor - 0.2
	} else {
		if intervalDays <= 1 {
			newInterval = 6
		} else {
			newInterval = int(float64(intervalDays) * easeFactor)
		}
		q := float64(5 - quality)
		newEase = easeFactor + (0.1 - q*(0.08+q*0.02))
	}
	if newEase < 1.3 {
		newEase = 1.3
	}

	next := time.Now().AddDate(0, 0, newInterval)
	return newInterval, newEase, next
}

// VocabularyService manages decks, the SM-2 review loop, AI deck generation
// and word suggestions harvested from conversations.
type VocabularyService struct {
	DeckRepo  *repository.DeckRepository
	VocabRepo *repository.VocabRepository
	UserRepo  *repository.UserRepository
	AI        TextGenerator
	TTS       *TTSService
	Storage   *StorageService
}

func NewVocabularyService(deckRepo *repository.DeckRepository, vocabRepo *repository.VocabRepository, userRepo *repository.UserRepository, ai TextGenerator, tts *TTSService, storage *StorageService) *VocabularyService {
	return &VocabularyService{
		DeckRepo:  deckRepo,
		VocabRepo: vocabRepo,
		UserRepo:  userRepo,
		AI:        ai,
		TTS:       tts,
		Storage:   storage,
	}
}

// GetOrCreateDeck returns the user's deck for the topic, creating it and
// kicking off background word generation when it does not exist yet.
func (s *VocabularyService) GetOrCreateDeck(ctx context.Context, userID uint, topic, lessonID string) (*model.Deck, error) {
	deck, err := s.DeckRepo.FindByUserAndName(userID, topic)
	if err == nil {
		return deck, nil
	}
	if !errors.Is(err, util.ErrDeckNotFound) {
		return nil, err
	}

	deck = &model.Deck{
		UserID:      userID,
		Name:        topic,
		Description: fmt.Sprintf("AI generated for %s", topic),
		LessonID:    lessonID,
	}
	if err := s.DeckRepo.Create(deck); err != nil {
		return nil, err
	}

	go s.generateDeckWords(deck.ID, userID, topic)

	return deck, nil
}

type generatedWord struct {
	Word          string `json:"word"`
	Type          string `json:"type"`
	Meaning       string `json:"meaning"`
	Pronunciation string `json:"pronunciation"`
	Context       string `json:"context"`
}

func (s *VocabularyService) generateDeckWords(deckID, userID uint, topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	level := "B1"
	if user, err := s.UserRepo.FindByID(userID); err == nil && user.Level != "" {
		level = user.Level
	}

	var raw []generatedWord
	if err := GenerateJSON(ctx, s.AI, buildDeckWordsPrompt(topic, level, deckGenerationWordCount), &raw); err != nil {
		logger.Log.Error("deck word generation failed",
			zap.Uint("deckId", deckID), zap.Error(err))
		return
	}

	now := time.Now()
	words := make([]model.VocabWord, 0, len(raw))
	for _, item := range raw {
		if item.Word == "" {
			continue
		}
		words = append(words, model.VocabWord{
			DeckID:          deckID,
			UserID:          userID,
			Word:            item.Word,
			Type:            item.Type,
			Definition:      item.Meaning,
			Pronunciation:   item.Pronunciation,
			ContextSentence: item.Context,
			AudioURL:        s.fetchWordAudio(ctx, item.Word),
			IntervalDays:    1,
			EaseFactor:      2.5,
			NextReview:      now,
		})
	}
	if len(words) == 0 {
		logger.Log.Warn("deck word generation returned nothing usable",
			zap.Uint("deckId", deckID))
		return
	}

	if err := s.VocabRepo.BulkCreate(words); err != nil {
		logger.Log.Error("deck word insert failed",
			zap.Uint("deckId", deckID), zap.Error(err))
		return
	}
	if err := s.DeckRepo.SetReady(deckID, true); err != nil {
		logger.Log.Error("deck ready flag update failed",
			zap.Uint("deckId", deckID), zap.Error(err))
	}
	logger.Log.Info("deck ready",
		zap.Uint("deckId", deckID), zap.Int("words", len(words)))
}

// fetchWordAudio stores a pronunciation clip for the word and returns its
// URL. Best-effort; a deck is fine without audio.
func (s *VocabularyService) fetchWordAudio(ctx context.Context, word string) string {
	if s.TTS == nil || s.Storage == nil {
		return ""
	}
	audio, err := s.TTS.Speak(ctx, word)
	if err != nil {
		logger.Log.Debug("word audio fetch failed",
			zap.String("word", word), zap.Error(err))
		return ""
	}
	objectName := fmt.Sprintf("pronunciation/%s_%d.mp3", strings.ToLower(word), time.Now().Unix())
	url, err := s.Storage.Upload(ctx, objectName, bytes.NewReader(audio), int64(len(audio)), "audio/mpeg")
	if err != nil {
		logger.Log.Debug("word audio upload failed",
			zap.String("word", word), zap.Error(err))
		return ""
	}
	return url
}

func (s *VocabularyService) ListDecks(userID uint) ([]model.Deck, error) {
	return s.DeckRepo.ListByUser(userID)
}

func (s *VocabularyService) ListPublicDecks() ([]model.Deck, error) {
	return s.DeckRepo.ListPublic()
}

func (s *VocabularyService) Words(deckID, userID uint) (*model.Deck, []model.VocabWord, error) {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return nil, nil, err
	}
	if deck.UserID != userID && !deck.Public {
		return nil, nil, util.ErrDeckNotFound
	}
	words, err := s.VocabRepo.WordsByDeck(deckID, deck.UserID)
	if err != nil {
		return nil, nil, err
	}
	return deck, words, nil
}

func (s *VocabularyService) DeleteDeck(deckID, userID uint) error {
	return s.DeckRepo.Delete(deckID, userID)
}

// DueWords returns the learner's review queue.
func (s *VocabularyService) DueWords(userID uint, limit int) ([]model.VocabWord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.VocabRepo.DueForReview(userID, limit)
}

// ReviewWord applies one SM-2 self-assessment to a word.
func (s *VocabularyService) ReviewWord(userID, wordID uint, quality int) (*model.VocabWord, error) {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}

	word, err := s.VocabRepo.FindByID(wordID, userID)
	if err != nil {
		return nil, err
	}

	interval, ease, next := CalculateSRS(quality, word.IntervalDays, word.EaseFactor)
	word.IntervalDays = interval
	word.EaseFactor = ease
	word.NextReview = next
	if interval >= masteredIntervalDays {
		word.Mastered = true
	}

	if err := s.VocabRepo.Update(word); err != nil {
		return nil, err
	}
	return word, nil
}

var wordCleanRe = regexp.MustCompile(`[^\w\s-]`)

func cleanWord(word string) string {
	return strings.ToLower(strings.TrimSpace(wordCleanRe.ReplaceAllString(word, "")))
}

type enrichedSuggestion struct {
	Word    string `json:"word"`
	Type    string `json:"type"`
	Meaning string `json:"meaning"`
	Context string `json:"context"`
}

// SuggestFromTranscript enriches candidate words against the conversation
// transcript and queues them as suggestions. Everything here is best-effort;
// it runs inside conversation summarization and must never fail it.
func (s *VocabularyService) SuggestFromTranscript(ctx context.Context, userID uint, transcript string, candidates []string) {
	cleaned := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if w := cleanWord(c); w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return
	}

	existing, err := s.VocabRepo.ExistingWordStrings(userID, cleaned)
	if err != nil {
		logger.Log.Warn("suggestion dedupe lookup failed", zap.Error(err))
	}
	known := make(map[string]bool, len(existing))
	for _, w := range existing {
		known[w] = true
	}
	fresh := cleaned[:0]
	for _, w := range cleaned {
		if !known[w] {
			fresh = append(fresh, w)
		}
	}
	if len(fresh) == 0 {
		return
	}

	var enriched []enrichedSuggestion
	if err := GenerateJSON(ctx, s.AI, buildVocabEnrichmentPrompt(transcript, fresh), &enriched); err != nil {
		logger.Log.Warn("suggestion enrichment failed", zap.Error(err))
		return
	}

	suggestions := make([]model.WordSuggestion, 0, len(enriched))
	for _, e := range enriched {
		if e.Word == "" {
			continue
		}
		suggestions = append(suggestions, model.WordSuggestion{
			UserID:          userID,
			Word:            cleanWord(e.Word),
			Type:            e.Type,
			Definition:      e.Meaning,
			ContextSentence: e.Context,
		})
	}
	if err := s.VocabRepo.BulkCreateSuggestions(suggestions); err != nil {
		logger.Log.Warn("suggestion insert failed", zap.Error(err))
		return
	}
	logger.Log.Info("vocabulary suggestions queued",
		zap.Uint("userId", userID), zap.Int("count", len(suggestions)))
}

func (s *VocabularyService) ListSuggestions(userID uint) ([]model.WordSuggestion, error) {
	return s.VocabRepo.ListSuggestions(userID)
}

// AcceptSuggestion moves a queued suggestion into a deck as a fresh word.
func (s *VocabularyService) AcceptSuggestion(ctx context.Context, userID, suggestionID, deckID uint) (*model.VocabWord, error) {
	suggestions, err := s.VocabRepo.ListSuggestions(userID)
	if err != nil {
		return nil, err
	}
	var target *model.WordSuggestion
	for i := range suggestions {
		if suggestions[i].ID == suggestionID {
			target = &suggestions[i]
			break
		}
	}
	if target == nil {
		return nil, util.ErrSuggestionNotFound
	}

	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return nil, err
	}
	if deck.UserID != userID {
		return nil, util.ErrDeckNotFound
	}

	word := model.VocabWord{
		DeckID:          deckID,
		UserID:          userID,
		Word:            target.Word,
		Type:            target.Type,
		Definition:      target.Definition,
		Pronunciation:   target.Pronunciation,
		ContextSentence: target.ContextSentence,
		AudioURL:        target.AudioURL,
		IntervalDays:    1,
		EaseFactor:      2.5,
		NextReview:      time.Now(),
	}
	if word.AudioURL == "" {
		word.AudioURL = s.fetchWordAudio(ctx, word.Word)
	}
	if err := s.VocabRepo.BulkCreate([]model.VocabWord{word}); err != nil {
		return nil, err
	}
	if err := s.VocabRepo.DeleteSuggestion(suggestionID, userID); err != nil {
		logger.Log.Warn("accepted suggestion cleanup failed",
			zap.Uint("suggestionId", suggestionID), zap.Error(err))
	}
	return &word, nil
}

func (s *VocabularyService) RejectSuggestion(userID, suggestionID uint) error {
	return s.VocabRepo.DeleteSuggestion(suggestionID, userID)
}
