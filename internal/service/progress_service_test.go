package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeRoadmapStore mimics the repository's optimistic concurrency: a replace
// with a stale version is rejected.
type fakeRoadmapStore struct {
	mu       sync.Mutex
	roadmaps map[uint]*model.Roadmap
	replaces int
}

func newFakeRoadmapStore() *fakeRoadmapStore {
	return &fakeRoadmapStore{roadmaps: make(map[uint]*model.Roadmap)}
}

func (f *fakeRoadmapStore) GetCurrent(userID uint) (*model.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.roadmaps[userID]
	if !ok {
		return nil, util.ErrRoadmapNotFound
	}
	copied := *stored
	copied.Data = append([]byte(nil), stored.Data...)
	return &copied, nil
}

func (f *fakeRoadmapStore) Replace(roadmap *model.Roadmap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.roadmaps[roadmap.UserID]
	if !ok || stored.Version != roadmap.Version {
		return util.ErrVersionConflict
	}
	roadmap.Version++
	copied := *roadmap
	copied.Data = append([]byte(nil), roadmap.Data...)
	f.roadmaps[roadmap.UserID] = &copied
	f.replaces++
	return nil
}

func (f *fakeRoadmapStore) CreateFresh(userID uint, doc *model.RoadmapDocument) (*model.Roadmap, error) {
	roadmap := &model.Roadmap{UserID: userID, Version: 1}
	if err := roadmap.SetDocument(doc); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *roadmap
	f.roadmaps[userID] = &copied
	return roadmap, nil
}

func testProgressConfig() config.ProgressConfig {
	return config.ProgressConfig{
		MasteryGrammar:    0.80,
		MasteryVocabulary: 0.80,
		MasterySpeaking:   0.80,
		MaxAttempts:       4,
	}
}

func testRoadmapDoc() *model.RoadmapDocument {
	doc := &model.RoadmapDocument{
		Level: "A2",
		LearningPhases: []model.Phase{
			{
				PhaseName: "Phase 1: Foundation",
				Ordinal:   1,
				Weeks: []model.Week{
					{
						WeekNumber: 1,
						Grammar: model.SkillBlock{Title: "Tenses", Items: []model.TaskItem{
							{Title: "Present simple", LessonID: "P1_W1_G1"},
							{Title: "Past tense drills", LessonID: "P1_W1_G2"},
						}},
						Vocabulary: model.SkillBlock{Title: "Daily life", Items: []model.TaskItem{
							{Title: "Routines", LessonID: "P1_W1_V1"},
						}},
						Speaking: model.SkillBlock{Title: "Introductions", Items: []model.TaskItem{
							{Title: "Self introduction", LessonID: "P1_W1_S1"},
						}},
					},
					{
						WeekNumber: 2,
						Grammar: model.SkillBlock{Items: []model.TaskItem{
							{Title: "Articles", LessonID: "P1_W2_G1"},
						}},
						Vocabulary: model.SkillBlock{Items: []model.TaskItem{
							{Title: "Food", LessonID: "P1_W2_V1"},
						}},
						Speaking: model.SkillBlock{Items: []model.TaskItem{
							{Title: "Ordering food", LessonID: "P1_W2_S1"},
						}},
					},
				},
			},
			{
				PhaseName: "Phase 2: Consolidation",
				Ordinal:   2,
				Weeks: []model.Week{
					{
						WeekNumber: 3,
						Grammar: model.SkillBlock{Items: []model.TaskItem{
							{Title: "Conditionals", LessonID: "P2_W3_G1"},
						}},
						Vocabulary: model.SkillBlock{Items: []model.TaskItem{
							{Title: "Travel", LessonID: "P2_W3_V1"},
						}},
						Speaking: model.SkillBlock{Items: []model.TaskItem{
							{Title: "At the airport", LessonID: "P2_W3_S1"},
						}},
					},
				},
			},
		},
	}
	doc.Normalize()
	SyncLedger(doc)
	return doc
}

func newTestProgress(t *testing.T) (*ProgressService, *fakeRoadmapStore) {
	t.Helper()
	store := newFakeRoadmapStore()
	_, err := store.CreateFresh(1, testRoadmapDoc())
	require.NoError(t, err)
	return NewProgressService(testProgressConfig(), store), store
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeScore(5, 0))
	assert.Equal(t, 0.0, NormalizeScore(5, -1))
	assert.Equal(t, 0.5, NormalizeScore(5, 10))
	assert.Equal(t, 1.0, NormalizeScore(12, 10))
	assert.Equal(t, 0.0, NormalizeScore(-3, 10))
}

func TestOverallSpeakingScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Equal(t, 0.0, OverallSpeakingScore(SpeakingScores{}))
	assert.InDelta(t, 0.9, OverallSpeakingScore(SpeakingScores{Pronunciation: f(0.9)}), 1e-9)

	// Scenario mode never grades grammar; the mean covers present scores only.
	got := OverallSpeakingScore(SpeakingScores{Vocabulary: f(0.6), Pronunciation: f(0.8)})
	assert.InDelta(t, 0.7, got, 1e-9)

	got = OverallSpeakingScore(SpeakingScores{Grammar: f(0.9), Vocabulary: f(0.6), Pronunciation: f(0.6)})
	assert.InDelta(t, 0.7, got, 1e-9)
}

func TestApplyAttemptFailedAttemptStaysPending(t *testing.T) {
	svc, _ := newTestProgress(t)

	result, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AttemptCount)
	assert.Equal(t, 3, result.AttemptsLeft)
	assert.Equal(t, model.StatusPending, result.Status)
	assert.False(t, result.Mastered)
	assert.False(t, result.AlreadyResolved)
}

func TestApplyAttemptMastery(t *testing.T) {
	svc, store := newTestProgress(t)

	result, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.85)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.True(t, result.Mastered)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	entry := doc.UserProgress["P1_W1_G1"]
	require.NotNil(t, entry)
	assert.Equal(t, model.StatusSuccess, entry.Status)
	require.NotNil(t, entry.Score)
	assert.Equal(t, 0.85, *entry.Score)
}

func TestApplyAttemptExactThresholdPasses(t *testing.T) {
	svc, _ := newTestProgress(t)

	result, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_V1", model.SkillVocabulary, 0.80)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Status)
}

func TestApplyAttemptExhaustion(t *testing.T) {
	svc, _ := newTestProgress(t)

	var result *AttemptResult
	var err error
	for i := 0; i < 4; i++ {
		result, _, err = svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.3)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, result.AttemptCount)
	assert.Equal(t, 0, result.AttemptsLeft)
	assert.Equal(t, model.StatusEndOfAttempts, result.Status)
	assert.False(t, result.Mastered)
}

func TestApplyAttemptTerminalIsNoOp(t *testing.T) {
	svc, store := newTestProgress(t)

	_, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.9)
	require.NoError(t, err)
	replacesAfterFirst := store.replaces

	// Re-grading a mastered lesson must not touch the ledger, even with a
	// failing score.
	result, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.1)
	require.NoError(t, err)

	assert.True(t, result.AlreadyResolved)
	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.AttemptCount)
	assert.Equal(t, replacesAfterFirst, store.replaces)
}

func TestApplyAttemptSeedsUnknownLesson(t *testing.T) {
	svc, store := newTestProgress(t)

	result, _, err := svc.ApplyAttempt(context.Background(), 1, "EXTRA_L1", model.SkillSpeaking, 0.9)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Status)

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)
	entry := doc.UserProgress["EXTRA_L1"]
	require.NotNil(t, entry)
	assert.Equal(t, model.SkillSpeaking, entry.Type)
}

func TestApplyAttemptNoRoadmap(t *testing.T) {
	store := newFakeRoadmapStore()
	svc := NewProgressService(testProgressConfig(), store)

	_, _, err := svc.ApplyAttempt(context.Background(), 42, "x", model.SkillGrammar, 0.5)
	assert.ErrorIs(t, err, util.ErrRoadmapNotFound)
}

func TestApplyAttemptConcurrentSubmissions(t *testing.T) {
	svc, store := newTestProgress(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.ApplyAttempt(context.Background(), 1, "P1_W1_G1", model.SkillGrammar, 0.3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	roadmap, err := store.GetCurrent(1)
	require.NoError(t, err)
	doc, err := roadmap.Document()
	require.NoError(t, err)

	// Serialized writes: exactly 4 attempts land, then the entry goes
	// terminal and the rest are no-ops.
	entry := doc.UserProgress["P1_W1_G1"]
	require.NotNil(t, entry)
	assert.Equal(t, 4, entry.AttemptCount)
	assert.Equal(t, model.StatusEndOfAttempts, entry.Status)
}
