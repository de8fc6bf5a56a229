package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"english_edu_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummaryStore struct {
	rows []*model.WeeklySummary
}

func (f *fakeSummaryStore) Insert(summary *model.WeeklySummary) error {
	f.rows = append(f.rows, summary)
	return nil
}

func (f *fakeSummaryStore) Exists(userID uint, phaseOrdinal, weekNumber int) (bool, error) {
	for _, r := range f.rows {
		if r.UserID == userID && r.PhaseOrdinal == phaseOrdinal && r.WeekNumber == weekNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSummaryStore) ListByUser(userID uint) ([]model.WeeklySummary, error) {
	var out []model.WeeklySummary
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// stubGenerator returns a canned reply for every prompt.
type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func newTestRoadmapService(t *testing.T, gen TextGenerator) (*RoadmapService, *fakeRoadmapStore, *fakeSummaryStore) {
	t.Helper()
	store := newFakeRoadmapStore()
	_, err := store.CreateFresh(1, testRoadmapDoc())
	require.NoError(t, err)

	summaries := &fakeSummaryStore{}
	progress := NewProgressService(testProgressConfig(), store)
	svc := NewRoadmapService(testProgressConfig(), store, summaries, gen, progress)
	return svc, store, summaries
}

func resolveLedger(ledger model.ProgressLedger, id string, status model.TaskStatus, score float64) {
	entry := ledger[id]
	if entry == nil {
		entry = model.NewTaskProgress(model.SkillGrammar)
		ledger[id] = entry
	}
	entry.Status = status
	entry.Score = &score
	entry.AttemptCount = 1
	entry.Completed = status == model.StatusSuccess
}

func TestIsWeekResolved(t *testing.T) {
	doc := testRoadmapDoc()
	week := &doc.LearningPhases[0].Weeks[0]

	assert.False(t, IsWeekResolved(doc.UserProgress, week), "fresh week is unresolved")

	resolveLedger(doc.UserProgress, "P1_W1_G1", model.StatusSuccess, 0.9)
	resolveLedger(doc.UserProgress, "P1_W1_G2", model.StatusEndOfAttempts, 0.4)
	resolveLedger(doc.UserProgress, "P1_W1_V1", model.StatusSuccess, 1.0)
	assert.False(t, IsWeekResolved(doc.UserProgress, week), "speaking still pending")

	// Exhausted attempts count as resolution; success is not required.
	resolveLedger(doc.UserProgress, "P1_W1_S1", model.StatusEndOfAttempts, 0.2)
	assert.True(t, IsWeekResolved(doc.UserProgress, week))
}

func TestIsWeekResolvedEmptyWeek(t *testing.T) {
	week := &model.Week{WeekNumber: 9}
	assert.False(t, IsWeekResolved(model.ProgressLedger{}, week))
}

func TestBuildWeeklySummary(t *testing.T) {
	svc, _, _ := newTestRoadmapService(t, &stubGenerator{})
	doc := testRoadmapDoc()
	phase := &doc.LearningPhases[0]
	week := &phase.Weeks[0]

	resolveLedger(doc.UserProgress, "P1_W1_G1", model.StatusSuccess, 0.9)
	resolveLedger(doc.UserProgress, "P1_W1_G2", model.StatusEndOfAttempts, 0.4)
	resolveLedger(doc.UserProgress, "P1_W1_V1", model.StatusSuccess, 1.0)
	resolveLedger(doc.UserProgress, "P1_W1_S1", model.StatusSuccess, 0.8)

	rec := svc.BuildWeeklySummary(1, phase, week, doc.UserProgress)

	assert.Equal(t, "P1", rec.Phase)
	assert.Equal(t, 1, rec.PhaseOrdinal)
	assert.Equal(t, 1, rec.WeekNumber)

	// Every task terminal, so the rate is 1.0 even though one task failed out.
	assert.Equal(t, 1.0, rec.CompletionRate)
	assert.True(t, rec.ReviewRequired)

	grammar := rec.Grammar.Data()
	assert.Equal(t, 1, grammar.CompletedTasks)
	assert.Equal(t, []string{"Past tense drills"}, grammar.ReviewTasks)
	assert.InDelta(t, 0.65, grammar.AvgScore, 1e-9)

	vocabulary := rec.Vocabulary.Data()
	assert.Equal(t, 1, vocabulary.CompletedTasks)
	assert.Empty(t, vocabulary.ReviewTasks)
	assert.Equal(t, 1.0, vocabulary.AvgScore)
	// The vocabulary summary exposes its average under avg_mastery too.
	require.NotNil(t, vocabulary.AvgMastery)
	assert.Equal(t, 1.0, *vocabulary.AvgMastery)
	raw, err := json.Marshal(vocabulary)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"avg_mastery":1`)
	assert.Nil(t, rec.Grammar.Data().AvgMastery)
}

func TestBuildWeeklySummaryPartialWeek(t *testing.T) {
	svc, _, _ := newTestRoadmapService(t, &stubGenerator{})
	doc := testRoadmapDoc()
	phase := &doc.LearningPhases[0]
	week := &phase.Weeks[0]

	resolveLedger(doc.UserProgress, "P1_W1_G1", model.StatusSuccess, 0.9)

	rec := svc.BuildWeeklySummary(1, phase, week, doc.UserProgress)
	assert.Equal(t, 0.25, rec.CompletionRate)
	assert.False(t, rec.ReviewRequired)
}

func TestSyncLedger(t *testing.T) {
	doc := testRoadmapDoc()

	// Mark one entry, add one stale entry whose lesson no longer exists.
	resolveLedger(doc.UserProgress, "P1_W1_G1", model.StatusSuccess, 0.9)
	doc.UserProgress["GONE_L1"] = model.NewTaskProgress(model.SkillGrammar)

	SyncLedger(doc)

	assert.NotContains(t, doc.UserProgress, "GONE_L1")
	// Existing progress is preserved.
	assert.Equal(t, model.StatusSuccess, doc.UserProgress["P1_W1_G1"].Status)
	// Every current lesson is present and seeded.
	for id := range doc.AllLessonIDs() {
		require.Contains(t, doc.UserProgress, id)
	}
	assert.Equal(t, model.StatusPending, doc.UserProgress["P2_W3_G1"].Status)
}

func weeklyRecFor(t *testing.T, svc *RoadmapService, doc *model.RoadmapDocument, phaseIdx, weekIdx int) *model.WeeklySummary {
	t.Helper()
	phase := &doc.LearningPhases[phaseIdx]
	week := &phase.Weeks[weekIdx]
	ids, _ := week.LessonIDs()
	for _, id := range ids {
		resolveLedger(doc.UserProgress, id, model.StatusSuccess, 0.9)
	}
	return svc.BuildWeeklySummary(1, phase, week, doc.UserProgress)
}

func TestAdaptNextWeekFallbackOnBadJSON(t *testing.T) {
	gen := &stubGenerator{reply: "this is not json at all"}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 0, 0)
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, gen.calls)

	// The original week 2 structure survives the failed rewrite.
	updated, err := store.GetCurrent(1)
	require.NoError(t, err)
	updatedDoc, err := updated.Document()
	require.NoError(t, err)
	week2 := updatedDoc.LearningPhases[0].Weeks[1]
	assert.Equal(t, 2, week2.WeekNumber)
	assert.Equal(t, "Articles", week2.Grammar.Items[0].Title)
}

func TestAdaptNextWeekRewrites(t *testing.T) {
	adjusted := model.Week{
		WeekNumber: 2,
		Grammar: model.SkillBlock{Title: "Review + Articles", Items: []model.TaskItem{
			{Title: "REVIEW: Past tense drills", LessonID: "P1_W2_G_Review1", Type: "review"},
			{Title: "Articles", LessonID: "P1_W2_G1"},
		}},
		Vocabulary: model.SkillBlock{Items: []model.TaskItem{{Title: "Food", LessonID: "P1_W2_V1"}}},
		Speaking:   model.SkillBlock{Items: []model.TaskItem{{Title: "Ordering food", LessonID: "P1_W2_S1"}}},
	}
	raw, err := json.Marshal(adjusted)
	require.NoError(t, err)

	gen := &stubGenerator{reply: "```json\n" + string(raw) + "\n```"}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 0, 0)
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := store.GetCurrent(1)
	require.NoError(t, err)
	updatedDoc, err := updated.Document()
	require.NoError(t, err)

	week2 := updatedDoc.LearningPhases[0].Weeks[1]
	require.Len(t, week2.Grammar.Items, 2)
	assert.Equal(t, "review", week2.Grammar.Items[0].Type)

	// The injected review task is seeded into the ledger as PENDING.
	entry := updatedDoc.UserProgress["P1_W2_G_Review1"]
	require.NotNil(t, entry)
	assert.Equal(t, model.StatusPending, entry.Status)
}

func TestAdaptNextWeekRejectsChangedWeekNumber(t *testing.T) {
	adjusted := model.Week{WeekNumber: 7}
	raw, err := json.Marshal(adjusted)
	require.NoError(t, err)

	gen := &stubGenerator{reply: string(raw)}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 0, 0)
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := store.GetCurrent(1)
	require.NoError(t, err)
	updatedDoc, err := updated.Document()
	require.NoError(t, err)
	assert.Equal(t, 2, updatedDoc.LearningPhases[0].Weeks[1].WeekNumber)
	assert.Equal(t, "Articles", updatedDoc.LearningPhases[0].Weeks[1].Grammar.Items[0].Title)
}

func TestAdaptNextWeekRejectsEmptyWeek(t *testing.T) {
	// Valid JSON, right week number, but no tasks anywhere: splicing it in
	// would leave a week that can never resolve.
	adjusted := model.Week{WeekNumber: 2}
	raw, err := json.Marshal(adjusted)
	require.NoError(t, err)

	gen := &stubGenerator{reply: string(raw)}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 0, 0)
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := store.GetCurrent(1)
	require.NoError(t, err)
	updatedDoc, err := updated.Document()
	require.NoError(t, err)
	week2 := updatedDoc.LearningPhases[0].Weeks[1]
	require.Len(t, week2.Grammar.Items, 1)
	assert.Equal(t, "Articles", week2.Grammar.Items[0].Title)
}

func TestAdaptNextWeekCrossesPhaseBoundary(t *testing.T) {
	gen := &stubGenerator{reply: "not json"}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 0, 1) // last week of phase 1
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	// The rewrite targeted phase 2 week 3.
	assert.Equal(t, 1, gen.calls)
}

func TestAdaptNextWeekEndOfRoadmap(t *testing.T) {
	gen := &stubGenerator{reply: "should never be called"}
	svc, store, _ := newTestRoadmapService(t, gen)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	rec := weeklyRecFor(t, svc, doc, 1, 0) // last week of the last phase
	require.NoError(t, roadmap.SetDocument(doc))
	require.NoError(t, store.Replace(roadmap))

	ok, err := svc.AdaptNextWeek(context.Background(), 1, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, gen.calls)
}

func TestHandleAttemptOutcomeFullCascade(t *testing.T) {
	gen := &stubGenerator{reply: "not json"}
	svc, store, summaries := newTestRoadmapService(t, gen)
	progress := svc.progress

	ctx := context.Background()
	finish := func(lessonID string, skill model.SkillType) {
		result, _, err := progress.ApplyAttempt(ctx, 1, lessonID, skill, 0.9)
		require.NoError(t, err)
		require.False(t, result.AlreadyResolved)
		svc.HandleAttemptOutcome(ctx, 1, lessonID)
	}

	finish("P1_W1_G1", model.SkillGrammar)
	finish("P1_W1_G2", model.SkillGrammar)
	finish("P1_W1_V1", model.SkillVocabulary)
	assert.Empty(t, summaries.rows, "week not resolved yet")

	finish("P1_W1_S1", model.SkillSpeaking)
	require.Len(t, summaries.rows, 1)
	rec := summaries.rows[0]
	assert.Equal(t, "P1", rec.Phase)
	assert.Equal(t, 1, rec.WeekNumber)
	assert.Equal(t, 1.0, rec.CompletionRate)
	assert.False(t, rec.ReviewRequired)

	// Re-running the cascade for the same week is a no-op.
	svc.HandleAttemptOutcome(ctx, 1, "P1_W1_G1")
	assert.Len(t, summaries.rows, 1)

	_, err := store.GetCurrent(1)
	require.NoError(t, err)
}

// slowSummaryStore widens the window between the existence check and the
// insert, so an unserialized cascade would double-insert.
type slowSummaryStore struct {
	mu    sync.Mutex
	delay time.Duration
	rows  []*model.WeeklySummary
}

func (s *slowSummaryStore) Insert(summary *model.WeeklySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, summary)
	return nil
}

func (s *slowSummaryStore) Exists(userID uint, phaseOrdinal, weekNumber int) (bool, error) {
	s.mu.Lock()
	found := false
	for _, r := range s.rows {
		if r.UserID == userID && r.PhaseOrdinal == phaseOrdinal && r.WeekNumber == weekNumber {
			found = true
			break
		}
	}
	s.mu.Unlock()
	time.Sleep(s.delay)
	return found, nil
}

func (s *slowSummaryStore) ListByUser(userID uint) ([]model.WeeklySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WeeklySummary
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestHandleAttemptOutcomeConcurrentCascades(t *testing.T) {
	store := newFakeRoadmapStore()
	_, err := store.CreateFresh(1, testRoadmapDoc())
	require.NoError(t, err)

	summaries := &slowSummaryStore{delay: 20 * time.Millisecond}
	progress := NewProgressService(testProgressConfig(), store)
	svc := NewRoadmapService(testProgressConfig(), store, summaries, &stubGenerator{reply: "not json"}, progress)

	ctx := context.Background()
	for _, c := range []struct {
		lessonID string
		skill    model.SkillType
	}{
		{"P1_W1_G1", model.SkillGrammar},
		{"P1_W1_G2", model.SkillGrammar},
		{"P1_W1_V1", model.SkillVocabulary},
		{"P1_W1_S1", model.SkillSpeaking},
	} {
		_, _, err := progress.ApplyAttempt(ctx, 1, c.lessonID, c.skill, 0.9)
		require.NoError(t, err)
	}

	// The week is fully resolved; both cascades see it that way, but only
	// one may write the summary row.
	var wg sync.WaitGroup
	for _, lessonID := range []string{"P1_W1_V1", "P1_W1_S1"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			svc.HandleAttemptOutcome(ctx, 1, id)
		}(lessonID)
	}
	wg.Wait()

	assert.Len(t, summaries.rows, 1)
}

func TestListSummaries(t *testing.T) {
	svc, _, summaries := newTestRoadmapService(t, &stubGenerator{})
	summaries.rows = append(summaries.rows,
		&model.WeeklySummary{UserID: 1, Phase: "P1", WeekNumber: 1},
		&model.WeeklySummary{UserID: 2, Phase: "P1", WeekNumber: 1},
	)

	rows, err := svc.ListSummaries(1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
