package model

import (
	"gorm.io/datatypes"
)

const (
	QuizStatusPending   = "PENDING" // generation queued
	QuizStatusReady     = "READY"
	QuizStatusError     = "ERROR"
	QuizStatusCompleted = "COMPLETED"
)

// QuizSession is one generated quiz for a roadmap lesson. Question generation
// runs in the background; the session status tracks it.
type QuizSession struct {
	BaseModel
	UserID    uint           `gorm:"index;not null" json:"userId"`
	LessonID  string         `gorm:"size:100;index;not null" json:"lessonId"`
	Topic     string         `gorm:"size:300" json:"topic"`
	Skill     SkillType      `gorm:"size:20;not null" json:"skill"`
	Status    string         `gorm:"size:20;default:'PENDING'" json:"status"`
	Score     float64        `json:"score"`
	WeakAreas datatypes.JSON `gorm:"type:jsonb" json:"weakAreas"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

type QuizQuestion struct {
	BaseModel
	SessionID     uint           `gorm:"index;not null" json:"sessionId"`
	Topic         string         `gorm:"size:200" json:"topic"`
	Question      string         `gorm:"type:text;not null" json:"question"`
	Options       datatypes.JSON `gorm:"type:jsonb" json:"options"` // []string
	CorrectAnswer string         `gorm:"size:300" json:"-"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}
