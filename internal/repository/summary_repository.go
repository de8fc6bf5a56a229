package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

// SummaryRepository persists the append-only weekly audit rows.
type SummaryRepository struct {
	DB *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{DB: db}
}

func (r *SummaryRepository) Insert(summary *model.WeeklySummary) error {
	return r.DB.Create(summary).Error
}

// Exists reports whether a summary row was already written for the week.
// Rows are immutable, so an existing row means the week's cascade already ran.
func (r *SummaryRepository) Exists(userID uint, phaseOrdinal, weekNumber int) (bool, error) {
	var count int64
	err := r.DB.Model(&model.WeeklySummary{}).
		Where("user_id = ? AND phase_ordinal = ? AND week_number = ?", userID, phaseOrdinal, weekNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *SummaryRepository) ListByUser(userID uint) ([]model.WeeklySummary, error) {
	var summaries []model.WeeklySummary
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&summaries).Error
	return summaries, err
}
