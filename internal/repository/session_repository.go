package repository

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.ConversationSession) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) FindByID(id string) (*model.ConversationSession, error) {
	var session model.ConversationSession
	err := r.DB.Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) ListByUser(userID uint) ([]model.ConversationSession, error) {
	var sessions []model.ConversationSession
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) Update(session *model.ConversationSession) error {
	return r.DB.Save(session).Error
}

func (r *SessionRepository) Delete(id string, userID uint) error {
	return r.DB.Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.ConversationSession{}).Error
}
