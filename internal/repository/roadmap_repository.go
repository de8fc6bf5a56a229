package repository

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// RoadmapRepository is the document store for roadmaps. The store keeps at
// most one live roadmap per user; replaces are whole-document writes guarded
// by the version column.
type RoadmapRepository struct {
	DB *gorm.DB
}

func NewRoadmapRepository(db *gorm.DB) *RoadmapRepository {
	return &RoadmapRepository{DB: db}
}

// GetCurrent returns the most recently created roadmap for the user.
func (r *RoadmapRepository) GetCurrent(userID uint) (*model.Roadmap, error) {
	var roadmap model.Roadmap
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&roadmap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRoadmapNotFound
	}
	if err != nil {
		return nil, err
	}
	return &roadmap, nil
}

// Replace overwrites the stored document wholesale. The update only succeeds
// when the in-memory version matches the stored one; a concurrent writer
// surfaces as ErrVersionConflict so the caller can re-read and retry.
func (r *RoadmapRepository) Replace(roadmap *model.Roadmap) error {
	res := r.DB.Model(&model.Roadmap{}).
		Where("id = ? AND version = ?", roadmap.ID, roadmap.Version).
		Updates(map[string]interface{}{
			"data":    roadmap.Data,
			"level":   roadmap.Level,
			"version": roadmap.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrVersionConflict
	}
	roadmap.Version++
	return nil
}

// CreateFresh replaces the user's roadmap history with a brand new document.
// Old rows are removed so the newest row is unambiguously "current".
func (r *RoadmapRepository) CreateFresh(userID uint, doc *model.RoadmapDocument) (*model.Roadmap, error) {
	roadmap := &model.Roadmap{
		UserID:  userID,
		Version: 1,
	}
	if err := roadmap.SetDocument(doc); err != nil {
		return nil, err
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&model.Roadmap{}).Error; err != nil {
			return err
		}
		return tx.Create(roadmap).Error
	})
	if err != nil {
		return nil, err
	}
	return roadmap, nil
}
