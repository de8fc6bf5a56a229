package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"gorm.io/datatypes"
)

type SkillType string

const (
	SkillGrammar    SkillType = "grammar"
	SkillVocabulary SkillType = "vocabulary"
	SkillSpeaking   SkillType = "speaking"
)

// TaskStatus is the lifecycle of a single roadmap task. PENDING is the only
// non-terminal state; SUCCESS and END_OF_ATTEMPTS are terminal and a task in
// either of them counts as resolved for week-completion purposes.
type TaskStatus string

const (
	StatusPending       TaskStatus = "PENDING"
	StatusSuccess       TaskStatus = "SUCCESS"
	StatusEndOfAttempts TaskStatus = "END_OF_ATTEMPTS"
)

func (s TaskStatus) Resolved() bool {
	return s == StatusSuccess || s == StatusEndOfAttempts
}

// TaskProgress is the per-lesson attempt record kept in the ledger.
type TaskProgress struct {
	Type         SkillType  `json:"type"`
	Score        *float64   `json:"score"`
	AttemptCount int        `json:"attempt_count"`
	Status       TaskStatus `json:"status"`
	Completed    bool       `json:"completed"`
}

func NewTaskProgress(skill SkillType) *TaskProgress {
	return &TaskProgress{
		Type:   skill,
		Status: StatusPending,
	}
}

// ProgressLedger maps lesson ids to their attempt records. Lesson ids encode
// phase/week/skill for debugging but are treated as opaque keys here.
type ProgressLedger map[string]*TaskProgress

type TaskItem struct {
	Title    string `json:"title"`
	LessonID string `json:"lesson_id"`
	Type     string `json:"type,omitempty"` // "review" marks AI-injected remedial tasks
}

type SkillBlock struct {
	Title    string     `json:"title"`
	LessonID string     `json:"lesson_id"`
	Items    []TaskItem `json:"items"`
}

type Week struct {
	WeekNumber      int        `json:"week_number"`
	Grammar         SkillBlock `json:"grammar"`
	Vocabulary      SkillBlock `json:"vocabulary"`
	Speaking        SkillBlock `json:"speaking"`
	ExpectedOutcome string     `json:"expected_outcome"`
}

// SkillBlocks returns the three skill blocks in a stable order.
func (w *Week) SkillBlocks() map[SkillType]*SkillBlock {
	return map[SkillType]*SkillBlock{
		SkillGrammar:    &w.Grammar,
		SkillVocabulary: &w.Vocabulary,
		SkillSpeaking:   &w.Speaking,
	}
}

// LessonIDs collects every non-empty item lesson id in the week. Items with a
// missing lesson id are skipped and counted (malformed AI output defense); the
// caller decides whether to log.
func (w *Week) LessonIDs() (ids []string, skipped int) {
	for _, block := range []*SkillBlock{&w.Grammar, &w.Vocabulary, &w.Speaking} {
		for _, item := range block.Items {
			if item.LessonID == "" {
				skipped++
				continue
			}
			ids = append(ids, item.LessonID)
		}
	}
	return ids, skipped
}

// ContainsLesson reports whether any item in the week carries the lesson id.
func (w *Week) ContainsLesson(lessonID string) bool {
	ids, _ := w.LessonIDs()
	for _, id := range ids {
		if id == lessonID {
			return true
		}
	}
	return false
}

type Phase struct {
	PhaseName string `json:"phase_name"`
	// Ordinal is the stable machine-readable phase number. The human label
	// in PhaseName is display-only; Normalize backfills Ordinal from the
	// label for documents generated before the field existed.
	Ordinal       int    `json:"ordinal,omitempty"`
	DurationWeeks int    `json:"duration_weeks"`
	Weeks         []Week `json:"weeks"`
}

// RoadmapDocument is the single logical learning-plan document per learner.
// Updates replace it wholesale; there is no row-level diffing.
type RoadmapDocument struct {
	Level                   string         `json:"level"`
	UserSummary             string         `json:"user_summary,omitempty"`
	Summary                 string         `json:"summary"`
	CurrentStatus           string         `json:"current_status"`
	DailyPlanRecommendation string         `json:"daily_plan_recommendation"`
	LearningPhases          []Phase        `json:"learning_phases"`
	UserProgress            ProgressLedger `json:"user_progress"`
}

var phaseOrdinalRe = regexp.MustCompile(`(?i)\bphase\s+(\d+)\b`)

// PhaseOrdinalFromLabel extracts the ordinal from a phase label such as
// "Phase 2: Consolidation" or the short form "P2". Returns 0 when no ordinal
// can be parsed.
func PhaseOrdinalFromLabel(label string) int {
	if m := phaseOrdinalRe.FindStringSubmatch(label); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	var n int
	if _, err := fmt.Sscanf(label, "P%d", &n); err == nil {
		return n
	}
	return 0
}

// PhaseIndexByOrdinal finds the phase with the given ordinal. Phases without
// a stored ordinal are matched against their label with a word-boundary
// pattern, so "P1" matches "Phase 1: ..." but never "Phase 11: ...".
func (d *RoadmapDocument) PhaseIndexByOrdinal(ordinal int) int {
	if ordinal <= 0 {
		return -1
	}
	boundary := regexp.MustCompile(fmt.Sprintf(`(?i)\bphase\s+%d\b`, ordinal))
	for i := range d.LearningPhases {
		p := &d.LearningPhases[i]
		if p.Ordinal == ordinal {
			return i
		}
		if p.Ordinal == 0 && boundary.MatchString(p.PhaseName) {
			return i
		}
	}
	return -1
}

// WeekContaining locates the week whose items include the lesson id.
func (d *RoadmapDocument) WeekContaining(lessonID string) (*Week, int, int) {
	for pi := range d.LearningPhases {
		phase := &d.LearningPhases[pi]
		for wi := range phase.Weeks {
			if phase.Weeks[wi].ContainsLesson(lessonID) {
				return &phase.Weeks[wi], pi, wi
			}
		}
	}
	return nil, -1, -1
}

// AllLessonIDs walks every phase and week and returns the union of item
// lesson ids mapped to their owning skill.
func (d *RoadmapDocument) AllLessonIDs() map[string]SkillType {
	out := make(map[string]SkillType)
	for pi := range d.LearningPhases {
		for wi := range d.LearningPhases[pi].Weeks {
			week := &d.LearningPhases[pi].Weeks[wi]
			for skill, block := range week.SkillBlocks() {
				for _, item := range block.Items {
					if item.LessonID != "" {
						out[item.LessonID] = skill
					}
				}
			}
		}
	}
	return out
}

// Normalize repairs a freshly loaded or freshly generated document: it
// allocates the ledger when absent and backfills phase ordinals from labels.
func (d *RoadmapDocument) Normalize() {
	if d.UserProgress == nil {
		d.UserProgress = make(ProgressLedger)
	}
	for i := range d.LearningPhases {
		if d.LearningPhases[i].Ordinal == 0 {
			d.LearningPhases[i].Ordinal = PhaseOrdinalFromLabel(d.LearningPhases[i].PhaseName)
		}
	}
}

// Roadmap is the persisted row wrapping one RoadmapDocument. Only the most
// recently created row per user is "current". Version backs optimistic
// concurrency on whole-document replaces.
type Roadmap struct {
	BaseModel
	UserID  uint           `gorm:"index;not null" json:"userId"`
	Level   string         `gorm:"size:30" json:"level"`
	Version int            `gorm:"not null;default:1" json:"version"`
	Data    datatypes.JSON `gorm:"type:jsonb" json:"data"`
}

func (Roadmap) TableName() string {
	return "roadmaps"
}

func (r *Roadmap) Document() (*RoadmapDocument, error) {
	var doc RoadmapDocument
	if err := json.Unmarshal(r.Data, &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

func (r *Roadmap) SetDocument(doc *RoadmapDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.Data = datatypes.JSON(raw)
	r.Level = doc.Level
	return nil
}
