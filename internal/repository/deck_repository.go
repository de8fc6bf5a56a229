package repository

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

type DeckRepository struct {
	DB *gorm.DB
}

func NewDeckRepository(db *gorm.DB) *DeckRepository {
	return &DeckRepository{DB: db}
}

func (r *DeckRepository) Create(deck *model.Deck) error {
	return r.DB.Create(deck).Error
}

func (r *DeckRepository) FindByID(id uint) (*model.Deck, error) {
	var deck model.Deck
	err := r.DB.First(&deck, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrDeckNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deck, nil
}

func (r *DeckRepository) FindByUserAndName(userID uint, name string) (*model.Deck, error) {
	var deck model.Deck
	err := r.DB.Where("user_id = ? AND name = ?", userID, name).First(&deck).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrDeckNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deck, nil
}

func (r *DeckRepository) ListByUser(userID uint) ([]model.Deck, error) {
	var decks []model.Deck
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&decks).Error
	return decks, err
}

func (r *DeckRepository) ListPublic() ([]model.Deck, error) {
	var decks []model.Deck
	err := r.DB.Where("public = ?", true).Order("name ASC").Find(&decks).Error
	return decks, err
}

func (r *DeckRepository) SetReady(deckID uint, ready bool) error {
	return r.DB.Model(&model.Deck{}).Where("id = ?", deckID).Update("ready", ready).Error
}

func (r *DeckRepository) Delete(id uint, userID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Deck{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrDeckNotFound
		}
		return tx.Where("deck_id = ?", id).Delete(&model.VocabWord{}).Error
	})
}
