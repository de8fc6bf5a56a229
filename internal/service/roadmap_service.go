package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SummaryStore persists the weekly audit rows.
type SummaryStore interface {
	Insert(summary *model.WeeklySummary) error
	Exists(userID uint, phaseOrdinal, weekNumber int) (bool, error)
	ListByUser(userID uint) ([]model.WeeklySummary, error)
}

// RoadmapService owns the week-level pipeline: completion detection, summary
// aggregation and the adaptive rewrite of the following week.
type RoadmapService struct {
	cfg       config.ProgressConfig
	roadmaps  RoadmapStore
	summaries SummaryStore
	ai        TextGenerator
	progress  *ProgressService
}

func NewRoadmapService(cfg config.ProgressConfig, roadmaps RoadmapStore, summaries SummaryStore, ai TextGenerator, progress *ProgressService) *RoadmapService {
	return &RoadmapService{
		cfg:       cfg,
		roadmaps:  roadmaps,
		summaries: summaries,
		ai:        ai,
		progress:  progress,
	}
}

// Current loads the learner's live roadmap and its parsed document.
func (s *RoadmapService) Current(userID uint) (*model.Roadmap, *model.RoadmapDocument, error) {
	roadmap, err := s.roadmaps.GetCurrent(userID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := roadmap.Document()
	if err != nil {
		return nil, nil, err
	}
	return roadmap, doc, nil
}

func (s *RoadmapService) ListSummaries(userID uint) ([]model.WeeklySummary, error) {
	return s.summaries.ListByUser(userID)
}

// IsWeekResolved reports whether every task in the week reached a terminal
// status. A week with no identifiable tasks is never resolved. Resolution
// does not require success: a week can complete entirely through exhausted
// attempts.
func IsWeekResolved(ledger model.ProgressLedger, week *model.Week) bool {
	ids, skipped := week.LessonIDs()
	if skipped > 0 {
		logger.Log.Warn("week contains items without lesson ids",
			zap.Int("weekNumber", week.WeekNumber),
			zap.Int("skipped", skipped))
	}
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		entry, ok := ledger[id]
		if !ok || !entry.Status.Resolved() {
			return false
		}
	}
	return true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func summarizeSkill(block *model.SkillBlock, ledger model.ProgressLedger) model.SkillSummary {
	out := model.SkillSummary{ReviewTasks: []string{}}
	var scores []float64
	for _, item := range block.Items {
		if item.LessonID == "" {
			continue
		}
		entry, ok := ledger[item.LessonID]
		if !ok {
			continue
		}
		switch entry.Status {
		case model.StatusSuccess:
			out.CompletedTasks++
			if entry.Score != nil {
				scores = append(scores, *entry.Score)
			}
		case model.StatusEndOfAttempts:
			out.ReviewTasks = append(out.ReviewTasks, item.Title)
			if entry.Score != nil {
				scores = append(scores, *entry.Score)
			}
		}
	}
	if len(scores) > 0 {
		var sum float64
		for _, v := range scores {
			sum += v
		}
		out.AvgScore = round4(sum / float64(len(scores)))
	}
	return out
}

// BuildWeeklySummary aggregates a resolved week into its immutable audit row.
func (s *RoadmapService) BuildWeeklySummary(userID uint, phase *model.Phase, week *model.Week, ledger model.ProgressLedger) *model.WeeklySummary {
	grammar := summarizeSkill(&week.Grammar, ledger)
	vocabulary := summarizeSkill(&week.Vocabulary, ledger)
	speaking := summarizeSkill(&week.Speaking, ledger)

	// Vocabulary carries its average under avg_mastery as well.
	mastery := vocabulary.AvgScore
	vocabulary.AvgMastery = &mastery

	var total, resolved int
	for _, block := range []*model.SkillBlock{&week.Grammar, &week.Vocabulary, &week.Speaking} {
		for _, item := range block.Items {
			if item.LessonID == "" {
				continue
			}
			total++
			if entry, ok := ledger[item.LessonID]; ok && entry.Status.Resolved() {
				resolved++
			}
		}
	}
	var rate float64
	if total > 0 {
		rate = round4(float64(resolved) / float64(total))
	}

	return &model.WeeklySummary{
		UserID:         userID,
		Phase:          fmt.Sprintf("P%d", phase.Ordinal),
		PhaseOrdinal:   phase.Ordinal,
		WeekNumber:     week.WeekNumber,
		Grammar:        datatypes.NewJSONType(grammar),
		Vocabulary:     datatypes.NewJSONType(vocabulary),
		Speaking:       datatypes.NewJSONType(speaking),
		CompletionRate: rate,
		ReviewRequired: len(grammar.ReviewTasks)+len(vocabulary.ReviewTasks)+len(speaking.ReviewTasks) > 0,
	}
}

// weeklySummaryView is the JSON shape handed to the rewrite prompt, matching
// what the aggregator persists.
type weeklySummaryView struct {
	Phase          string             `json:"phase"`
	WeekNumber     int                `json:"week_number"`
	Grammar        model.SkillSummary `json:"grammar"`
	Vocabulary     model.SkillSummary `json:"vocabulary"`
	Speaking       model.SkillSummary `json:"speaking"`
	CompletionRate float64            `json:"completion_rate"`
	ReviewRequired bool               `json:"review_required"`
}

func summaryView(rec *model.WeeklySummary) weeklySummaryView {
	return weeklySummaryView{
		Phase:          rec.Phase,
		WeekNumber:     rec.WeekNumber,
		Grammar:        rec.Grammar.Data(),
		Vocabulary:     rec.Vocabulary.Data(),
		Speaking:       rec.Speaking.Data(),
		CompletionRate: rec.CompletionRate,
		ReviewRequired: rec.ReviewRequired,
	}
}

// SyncLedger reconciles the ledger with the document after a structural
// rewrite: entries whose lesson id vanished are dropped, new lesson ids are
// seeded as PENDING.
func SyncLedger(doc *model.RoadmapDocument) {
	known := doc.AllLessonIDs()
	for id := range doc.UserProgress {
		if _, ok := known[id]; !ok {
			delete(doc.UserProgress, id)
		}
	}
	for id, skill := range known {
		if _, ok := doc.UserProgress[id]; !ok {
			doc.UserProgress[id] = model.NewTaskProgress(skill)
		}
	}
}

// AdaptNextWeek rewrites the week after the one the summary describes, based
// on the learner's performance. Returns true when the document is persisted
// or when there is nothing left to adapt; false means the document was left
// unmodified.
func (s *RoadmapService) AdaptNextWeek(ctx context.Context, userID uint, rec *model.WeeklySummary) (bool, error) {
	unlock := s.progress.locks.Lock(userID)
	defer unlock()
	return s.adaptNextWeekLocked(ctx, userID, rec)
}

func (s *RoadmapService) adaptNextWeekLocked(ctx context.Context, userID uint, rec *model.WeeklySummary) (bool, error) {
	roadmap, doc, err := s.Current(userID)
	if err != nil {
		return false, err
	}

	ordinal := rec.PhaseOrdinal
	if ordinal == 0 {
		ordinal = model.PhaseOrdinalFromLabel(rec.Phase)
	}
	phaseIdx := doc.PhaseIndexByOrdinal(ordinal)
	if phaseIdx < 0 {
		return false, fmt.Errorf("%w: %q", util.ErrPhaseNotFound, rec.Phase)
	}

	phase := &doc.LearningPhases[phaseIdx]
	weekIdx := -1
	for i := range phase.Weeks {
		if phase.Weeks[i].WeekNumber == rec.WeekNumber {
			weekIdx = i
			break
		}
	}
	if weekIdx < 0 {
		return false, fmt.Errorf("week %d not found in phase %q", rec.WeekNumber, phase.PhaseName)
	}

	// Next week: same phase, or the first week of the next phase. Running
	// past the last phase means the roadmap is finished.
	nextPhaseIdx, nextWeekIdx := phaseIdx, weekIdx+1
	if nextWeekIdx >= len(phase.Weeks) {
		nextPhaseIdx, nextWeekIdx = phaseIdx+1, 0
		if nextPhaseIdx >= len(doc.LearningPhases) || len(doc.LearningPhases[nextPhaseIdx].Weeks) == 0 {
			logger.Log.Info("roadmap finished, nothing to adapt",
				zap.Uint("userId", userID))
			return true, nil
		}
	}

	nextPhase := &doc.LearningPhases[nextPhaseIdx]
	originalWeek := nextPhase.Weeks[nextWeekIdx]
	phaseLabel := fmt.Sprintf("P%d", nextPhase.Ordinal)

	adapted := s.rewriteWeek(ctx, rec, &originalWeek, phaseLabel)
	nextPhase.Weeks[nextWeekIdx] = *adapted

	SyncLedger(doc)

	if err := roadmap.SetDocument(doc); err != nil {
		return false, err
	}
	if err := s.roadmaps.Replace(roadmap); err != nil {
		return false, err
	}
	return true, nil
}

// rewriteWeek asks the model for an adjusted week. Any failure falls back to
// the original structure: the week still advances, just without
// personalization.
func (s *RoadmapService) rewriteWeek(ctx context.Context, rec *model.WeeklySummary, original *model.Week, phaseLabel string) *model.Week {
	summaryJSON, err := json.Marshal(summaryView(rec))
	if err != nil {
		return original
	}
	weekJSON, err := json.Marshal(original)
	if err != nil {
		return original
	}

	prompt := buildWeekAdjustmentPrompt(rec.WeekNumber, string(summaryJSON), original.WeekNumber, string(weekJSON), phaseLabel)

	var adjusted model.Week
	if err := GenerateJSON(ctx, s.ai, prompt, &adjusted); err != nil {
		logger.Log.Warn("adaptive rewrite failed, keeping original week",
			zap.Int("weekNumber", original.WeekNumber),
			zap.Error(err))
		return original
	}
	if adjusted.WeekNumber != original.WeekNumber {
		logger.Log.Warn("adaptive rewrite changed week_number, keeping original week",
			zap.Int("expected", original.WeekNumber),
			zap.Int("got", adjusted.WeekNumber))
		return original
	}
	// A week with no tasks at all could never resolve, stranding the learner.
	if len(adjusted.Grammar.Items)+len(adjusted.Vocabulary.Items)+len(adjusted.Speaking.Items) == 0 {
		logger.Log.Warn("adaptive rewrite returned an empty week, keeping original week",
			zap.Int("weekNumber", original.WeekNumber))
		return original
	}
	return &adjusted
}

// HandleAttemptOutcome runs the post-attempt cascade: if the attempt resolved
// its whole week, write the weekly summary and adapt the following week.
// Every step is best-effort; a failure is logged and never surfaces to the
// submitting request, whose ledger write already committed.
func (s *RoadmapService) HandleAttemptOutcome(ctx context.Context, userID uint, lessonID string) {
	// The whole cascade holds the per-user lock so that two attempts
	// resolving the same week cannot both pass the Exists guard and insert
	// the summary twice.
	unlock := s.progress.locks.Lock(userID)
	defer unlock()

	_, doc, err := s.Current(userID)
	if err != nil {
		logger.Log.Warn("cascade skipped: cannot load roadmap",
			zap.Uint("userId", userID), zap.Error(err))
		return
	}

	week, phaseIdx, _ := doc.WeekContaining(lessonID)
	if week == nil {
		logger.Log.Warn("cascade skipped: lesson not in any week",
			zap.Uint("userId", userID), zap.String("lessonId", lessonID))
		return
	}
	if !IsWeekResolved(doc.UserProgress, week) {
		return
	}

	phase := &doc.LearningPhases[phaseIdx]
	exists, err := s.summaries.Exists(userID, phase.Ordinal, week.WeekNumber)
	if err != nil {
		logger.Log.Warn("cascade skipped: summary lookup failed",
			zap.Uint("userId", userID), zap.Error(err))
		return
	}
	if exists {
		return
	}

	rec := s.BuildWeeklySummary(userID, phase, week, doc.UserProgress)
	if err := s.summaries.Insert(rec); err != nil {
		logger.Log.Warn("weekly summary insert failed, skipping adaptation",
			zap.Uint("userId", userID),
			zap.Int("weekNumber", week.WeekNumber),
			zap.Error(err))
		return
	}

	if ok, err := s.adaptNextWeekLocked(ctx, userID, rec); err != nil {
		logger.Log.Warn("adaptive roadmap update failed",
			zap.Uint("userId", userID),
			zap.Int("weekNumber", week.WeekNumber),
			zap.Error(err))
	} else if ok {
		logger.Log.Info("weekly cascade completed",
			zap.Uint("userId", userID),
			zap.String("phase", rec.Phase),
			zap.Int("weekNumber", week.WeekNumber))
	}
}
