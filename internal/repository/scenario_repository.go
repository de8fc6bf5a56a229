package repository

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

type ScenarioRepository struct {
	DB *gorm.DB
}

func NewScenarioRepository(db *gorm.DB) *ScenarioRepository {
	return &ScenarioRepository{DB: db}
}

func (r *ScenarioRepository) Create(scenario *model.Scenario) error {
	return r.DB.Create(scenario).Error
}

func (r *ScenarioRepository) FindByID(id uint) (*model.Scenario, error) {
	var scenario model.Scenario
	err := r.DB.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("scenario_lines.turn ASC")
	}).First(&scenario, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrScenarioNotFound
	}
	if err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (r *ScenarioRepository) FindByTopicAndLevel(topic, level string) ([]model.Scenario, error) {
	var scenarios []model.Scenario
	err := r.DB.Where("topic = ? AND level = ? AND enabled = ?", topic, level, true).
		Find(&scenarios).Error
	return scenarios, err
}

func (r *ScenarioRepository) List(page, limit int) ([]model.Scenario, int64, error) {
	var scenarios []model.Scenario
	var total int64

	if err := r.DB.Model(&model.Scenario{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.DB.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&scenarios).Error
	return scenarios, total, err
}

func (r *ScenarioRepository) Update(scenario *model.Scenario) error {
	return r.DB.Save(scenario).Error
}

// ReplaceLines swaps the scenario's dialogue script atomically.
func (r *ScenarioRepository) ReplaceLines(scenarioID uint, lines []model.ScenarioLine) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("scenario_id = ?", scenarioID).Delete(&model.ScenarioLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].ScenarioID = scenarioID
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
}

func (r *ScenarioRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("scenario_id = ?", id).Delete(&model.ScenarioLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Scenario{}, id).Error
	})
}
