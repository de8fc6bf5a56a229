package model

// Scenario is a scripted role-play dialogue used by scenario-mode
// conversations. Lines alternate between the AI and the learner by turn.
type Scenario struct {
	BaseModel
	Title   string         `gorm:"size:200;not null" json:"title"`
	Topic   string         `gorm:"size:100;index" json:"topic"`
	Level   string         `gorm:"size:30;index" json:"level"`
	Enabled bool           `gorm:"default:true" json:"enabled"`
	Lines   []ScenarioLine `gorm:"foreignKey:ScenarioID" json:"lines,omitempty"`
}

func (Scenario) TableName() string {
	return "scenarios"
}

type ScenarioLine struct {
	BaseModel
	ScenarioID uint   `gorm:"index;not null" json:"scenarioId"`
	Turn       int    `gorm:"not null" json:"turn"`
	Speaker    string `gorm:"size:10;not null" json:"speaker"` // "ai" | "user"
	Line       string `gorm:"type:text;not null" json:"line"`
}

func (ScenarioLine) TableName() string {
	return "scenario_lines"
}
