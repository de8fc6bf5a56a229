package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

const (
	ConversationModeFree     = "free"
	ConversationModeScenario = "scenario"
)

// ConversationMessage is one turn stored in a session's message history.
type ConversationMessage struct {
	Role     string                 `json:"role"` // "user" | "ai" | "system"
	Text     string                 `json:"text"`
	Type     string                 `json:"type"` // greeting | text | speech | feedback | reply | summary
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationSession is a speaking-practice session. LessonID, when set,
// ties the session to a roadmap speaking task so that summarization can feed
// the progress ledger.
type ConversationSession struct {
	UUIDBase
	UserID     uint           `gorm:"index;not null" json:"userId"`
	Mode       string         `gorm:"size:20;not null" json:"mode"`
	Level      string         `gorm:"size:30" json:"level"`
	Topic      string         `gorm:"size:200" json:"topic"`
	LessonID   string         `gorm:"size:100;index" json:"lessonId"`
	ScenarioID uint           `json:"scenarioId,omitempty"`
	Summary    string         `gorm:"type:text" json:"summary"`
	Summarized bool           `gorm:"default:false" json:"summarized"`
	Messages   datatypes.JSON `gorm:"type:jsonb" json:"messages"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

func (s *ConversationSession) MessageList() ([]ConversationMessage, error) {
	if len(s.Messages) == 0 {
		return nil, nil
	}
	var msgs []ConversationMessage
	if err := json.Unmarshal(s.Messages, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *ConversationSession) SetMessageList(msgs []ConversationMessage) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	s.Messages = datatypes.JSON(raw)
	return nil
}
