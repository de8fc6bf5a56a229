package repository

import (
	"errors"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) CreateSession(session *model.QuizSession) error {
	return r.DB.Create(session).Error
}

func (r *QuizRepository) UpdateSession(session *model.QuizSession) error {
	return r.DB.Save(session).Error
}

func (r *QuizRepository) FindSessionByID(id uint, userID uint) (*model.QuizSession, error) {
	var session model.QuizSession
	err := r.DB.Where("id = ? AND user_id = ?", id, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *QuizRepository) BulkCreateQuestions(questions []model.QuizQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Create(&questions).Error
}

func (r *QuizRepository) QuestionsBySession(sessionID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&questions).Error
	return questions, err
}
