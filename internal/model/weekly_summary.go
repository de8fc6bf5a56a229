package model

import (
	"gorm.io/datatypes"
)

// SkillSummary condenses one skill block of a resolved week. ReviewTasks
// lists the titles of tasks that exhausted their attempts and still need
// remediation.
type SkillSummary struct {
	CompletedTasks int      `json:"completed_tasks"`
	ReviewTasks    []string `json:"review_tasks"`
	AvgScore       float64  `json:"avg_score"`
	// AvgMastery mirrors AvgScore on the vocabulary summary, which names
	// its average differently in the summary document.
	AvgMastery *float64 `json:"avg_mastery,omitempty"`
}

// WeeklySummary is the append-only audit row created once per resolved week.
// Immutable after creation.
type WeeklySummary struct {
	BaseModel
	UserID         uint                              `gorm:"index;not null" json:"userId"`
	Phase          string                            `gorm:"size:10" json:"phase"` // short label, e.g. "P1"
	PhaseOrdinal   int                               `json:"phaseOrdinal"`
	WeekNumber     int                               `json:"weekNumber"`
	Grammar        datatypes.JSONType[SkillSummary]  `json:"grammar"`
	Vocabulary     datatypes.JSONType[SkillSummary]  `json:"vocabulary"`
	Speaking       datatypes.JSONType[SkillSummary]  `json:"speaking"`
	CompletionRate float64                           `json:"completionRate"`
	ReviewRequired bool                              `json:"reviewRequired"`
}

func (WeeklySummary) TableName() string {
	return "weekly_summaries"
}
