package repository

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type VocabRepository struct {
	DB *gorm.DB
}

func NewVocabRepository(db *gorm.DB) *VocabRepository {
	return &VocabRepository{DB: db}
}

func (r *VocabRepository) BulkCreate(words []model.VocabWord) error {
	if len(words) == 0 {
		return nil
	}
	return r.DB.Create(&words).Error
}

func (r *VocabRepository) WordsByDeck(deckID uint, userID uint) ([]model.VocabWord, error) {
	var words []model.VocabWord
	err := r.DB.Where("deck_id = ? AND user_id = ?", deckID, userID).
		Find(&words).Error
	return words, err
}

func (r *VocabRepository) FindByID(id uint, userID uint) (*model.VocabWord, error) {
	var word model.VocabWord
	err := r.DB.Where("id = ? AND user_id = ?", id, userID).First(&word).Error
	if err != nil {
		return nil, err
	}
	return &word, nil
}

// DueForReview returns words whose next review date has arrived.
func (r *VocabRepository) DueForReview(userID uint, limit int) ([]model.VocabWord, error) {
	var words []model.VocabWord
	err := r.DB.Where("user_id = ? AND mastered = ? AND next_review <= ?", userID, false, time.Now()).
		Order("next_review ASC").
		Limit(limit).
		Find(&words).Error
	return words, err
}

func (r *VocabRepository) Update(word *model.VocabWord) error {
	return r.DB.Save(word).Error
}

// ExistingWordStrings filters candidates down to those the user already has,
// either as deck words or pending suggestions.
func (r *VocabRepository) ExistingWordStrings(userID uint, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var fromWords []string
	if err := r.DB.Model(&model.VocabWord{}).
		Where("user_id = ? AND word IN ?", userID, candidates).
		Pluck("word", &fromWords).Error; err != nil {
		return nil, err
	}

	var fromSuggestions []string
	if err := r.DB.Model(&model.WordSuggestion{}).
		Where("user_id = ? AND word IN ?", userID, candidates).
		Pluck("word", &fromSuggestions).Error; err != nil {
		return nil, err
	}

	return append(fromWords, fromSuggestions...), nil
}

// FindPublicWordsData looks the words up in public decks to reuse their
// dictionary data for suggestions.
func (r *VocabRepository) FindPublicWordsData(words []string) ([]model.VocabWord, error) {
	if len(words) == 0 {
		return nil, nil
	}
	var out []model.VocabWord
	err := r.DB.
		Joins("JOIN decks ON decks.id = vocab_words.deck_id").
		Where("decks.public = ? AND vocab_words.word IN ?", true, words).
		Find(&out).Error
	return out, err
}

func (r *VocabRepository) BulkCreateSuggestions(suggestions []model.WordSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return r.DB.Create(&suggestions).Error
}

func (r *VocabRepository) ListSuggestions(userID uint) ([]model.WordSuggestion, error) {
	var suggestions []model.WordSuggestion
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&suggestions).Error
	return suggestions, err
}

func (r *VocabRepository) DeleteSuggestion(id uint, userID uint) error {
	res := r.DB.Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.WordSuggestion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrSuggestionNotFound
	}
	return nil
}
