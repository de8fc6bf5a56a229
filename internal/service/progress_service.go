package service

import (
	"context"
	"sync"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// RoadmapStore is the slice of the roadmap repository the progress pipeline
// needs. Kept narrow so tests can drive the state machine with an in-memory
// store.
type RoadmapStore interface {
	GetCurrent(userID uint) (*model.Roadmap, error)
	Replace(roadmap *model.Roadmap) error
	CreateFresh(userID uint, doc *model.RoadmapDocument) (*model.Roadmap, error)
}

// NormalizeScore converts a raw correct-count into a [0,1] ratio. A zero or
// negative total grades to 0 rather than dividing by zero.
func NormalizeScore(raw, total float64) float64 {
	if total <= 0 {
		return 0
	}
	score := raw / total
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SpeakingScores carries the evaluator's sub-scores. Nil means the evaluator
// did not produce that dimension (scenario mode never grades grammar), which
// is different from scoring zero.
type SpeakingScores struct {
	Grammar       *float64 `json:"grammar"`
	Vocabulary    *float64 `json:"vocabulary"`
	Pronunciation *float64 `json:"pronunciation"`
}

// OverallSpeakingScore averages whichever sub-scores are present. No present
// sub-scores grades to 0.
func OverallSpeakingScore(scores SpeakingScores) float64 {
	var sum float64
	var n int
	for _, s := range []*float64{scores.Grammar, scores.Vocabulary, scores.Pronunciation} {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// userMutex serializes roadmap read-modify-write cycles per user. Two
// submissions for the same learner landing in the same instant must not both
// read the same prior document and discard each other's ledger writes.
type userMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newUserMutex() *userMutex {
	return &userMutex{locks: make(map[uint]*sync.Mutex)}
}

func (m *userMutex) Lock(userID uint) func() {
	m.mu.Lock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// AttemptResult reports what a graded submission did to the ledger.
type AttemptResult struct {
	LessonID     string           `json:"lessonId"`
	Score        float64          `json:"score"`
	AttemptCount int              `json:"attemptCount"`
	AttemptsLeft int              `json:"attemptsLeft"`
	Status       model.TaskStatus `json:"status"`
	Mastered     bool             `json:"mastered"`
	// AlreadyResolved is set when the lesson was in a terminal state before
	// this submission; the ledger was left untouched.
	AlreadyResolved bool `json:"alreadyResolved"`
}

// ProgressService owns the per-lesson attempt state machine.
type ProgressService struct {
	cfg      config.ProgressConfig
	roadmaps RoadmapStore
	locks    *userMutex
}

func NewProgressService(cfg config.ProgressConfig, roadmaps RoadmapStore) *ProgressService {
	return &ProgressService{
		cfg:      cfg,
		roadmaps: roadmaps,
		locks:    newUserMutex(),
	}
}

func (s *ProgressService) thresholdFor(skill model.SkillType) float64 {
	switch skill {
	case model.SkillVocabulary:
		return s.cfg.MasteryVocabulary
	case model.SkillSpeaking:
		return s.cfg.MasterySpeaking
	default:
		return s.cfg.MasteryGrammar
	}
}

// applyToEntry runs the transition function on one ledger entry. Pure with
// respect to storage; the caller persists.
func (s *ProgressService) applyToEntry(entry *model.TaskProgress, score float64) {
	entry.AttemptCount++
	entry.Score = &score

	threshold := s.thresholdFor(entry.Type)
	switch {
	case score >= threshold:
		entry.Status = model.StatusSuccess
		entry.Completed = true
	case entry.AttemptCount >= s.cfg.MaxAttempts:
		entry.Status = model.StatusEndOfAttempts
		entry.Completed = false
	default:
		entry.Status = model.StatusPending
		entry.Completed = false
	}
}

// ApplyAttempt records a graded submission against the learner's current
// roadmap. The whole read-modify-write runs under the user's lock; the store
// additionally rejects stale versions, and one conflicting write is retried.
func (s *ProgressService) ApplyAttempt(ctx context.Context, userID uint, lessonID string, skill model.SkillType, score float64) (*AttemptResult, *model.Roadmap, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var result *AttemptResult
	var roadmap *model.Roadmap
	var err error
	for try := 0; try < 2; try++ {
		result, roadmap, err = s.applyOnce(userID, lessonID, skill, score)
		if err != util.ErrVersionConflict {
			break
		}
		logger.Log.Warn("roadmap version conflict, retrying attempt",
			zap.Uint("userId", userID),
			zap.String("lessonId", lessonID))
	}
	return result, roadmap, err
}

func (s *ProgressService) applyOnce(userID uint, lessonID string, skill model.SkillType, score float64) (*AttemptResult, *model.Roadmap, error) {
	roadmap, err := s.roadmaps.GetCurrent(userID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := roadmap.Document()
	if err != nil {
		return nil, nil, err
	}

	entry, ok := doc.UserProgress[lessonID]
	if !ok {
		entry = model.NewTaskProgress(skill)
		doc.UserProgress[lessonID] = entry
	}

	if entry.Status.Resolved() {
		// Terminal states never revert; re-grading is a no-op.
		return &AttemptResult{
			LessonID:        lessonID,
			Score:           score,
			AttemptCount:    entry.AttemptCount,
			AttemptsLeft:    maxInt(0, s.cfg.MaxAttempts-entry.AttemptCount),
			Status:          entry.Status,
			Mastered:        entry.Status == model.StatusSuccess,
			AlreadyResolved: true,
		}, roadmap, nil
	}

	s.applyToEntry(entry, score)

	if err := roadmap.SetDocument(doc); err != nil {
		return nil, nil, err
	}
	if err := s.roadmaps.Replace(roadmap); err != nil {
		return nil, nil, err
	}

	return &AttemptResult{
		LessonID:     lessonID,
		Score:        score,
		AttemptCount: entry.AttemptCount,
		AttemptsLeft: maxInt(0, s.cfg.MaxAttempts-entry.AttemptCount),
		Status:       entry.Status,
		Mastered:     entry.Status == model.StatusSuccess,
	}, roadmap, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
