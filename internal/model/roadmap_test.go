package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrdinalFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  int
	}{
		{"Phase 1: Foundation Building", 1},
		{"Phase 2: Consolidation", 2},
		{"phase 3 fluency", 3},
		{"P2", 2},
		{"Phase 11: Advanced", 11},
		{"Foundation", 0},
		{"", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PhaseOrdinalFromLabel(tc.label), "label %q", tc.label)
	}
}

func TestPhaseIndexByOrdinal(t *testing.T) {
	doc := &RoadmapDocument{
		LearningPhases: []Phase{
			{PhaseName: "Phase 1: Foundation"},
			{PhaseName: "Phase 11: Mastery"},
			{PhaseName: "Consolidation", Ordinal: 2},
		},
	}

	// Label matching uses a word boundary so "Phase 1" never matches
	// "Phase 11".
	assert.Equal(t, 0, doc.PhaseIndexByOrdinal(1))
	assert.Equal(t, 1, doc.PhaseIndexByOrdinal(11))

	// Stored ordinal wins over the label.
	assert.Equal(t, 2, doc.PhaseIndexByOrdinal(2))

	assert.Equal(t, -1, doc.PhaseIndexByOrdinal(5))
	assert.Equal(t, -1, doc.PhaseIndexByOrdinal(0))
}

func TestWeekLessonIDsSkipsEmpty(t *testing.T) {
	week := &Week{
		WeekNumber: 1,
		Grammar: SkillBlock{Items: []TaskItem{
			{Title: "a", LessonID: "P1_W1_G1"},
			{Title: "b", LessonID: ""},
		}},
		Vocabulary: SkillBlock{Items: []TaskItem{{Title: "c", LessonID: "P1_W1_V1"}}},
	}

	ids, skipped := week.LessonIDs()
	assert.ElementsMatch(t, []string{"P1_W1_G1", "P1_W1_V1"}, ids)
	assert.Equal(t, 1, skipped)

	assert.True(t, week.ContainsLesson("P1_W1_V1"))
	assert.False(t, week.ContainsLesson("P1_W1_G2"))
}

func TestDocumentNormalize(t *testing.T) {
	doc := &RoadmapDocument{
		LearningPhases: []Phase{
			{PhaseName: "Phase 2: Consolidation"},
			{PhaseName: "Custom", Ordinal: 7},
		},
	}
	doc.Normalize()

	require.NotNil(t, doc.UserProgress)
	assert.Equal(t, 2, doc.LearningPhases[0].Ordinal)
	assert.Equal(t, 7, doc.LearningPhases[1].Ordinal)
}

func TestRoadmapDocumentRoundTrip(t *testing.T) {
	doc := &RoadmapDocument{
		Level: "B1",
		LearningPhases: []Phase{{
			PhaseName: "Phase 1: Foundation",
			Ordinal:   1,
			Weeks: []Week{{
				WeekNumber: 1,
				Grammar:    SkillBlock{Items: []TaskItem{{Title: "t", LessonID: "P1_W1_G1"}}},
			}},
		}},
		UserProgress: ProgressLedger{
			"P1_W1_G1": {Type: SkillGrammar, Status: StatusPending},
		},
	}

	var roadmap Roadmap
	require.NoError(t, roadmap.SetDocument(doc))
	assert.Equal(t, "B1", roadmap.Level)

	got, err := roadmap.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, got.LearningPhases[0].Ordinal)
	require.Contains(t, got.UserProgress, "P1_W1_G1")
	assert.Equal(t, StatusPending, got.UserProgress["P1_W1_G1"].Status)
}

func TestTaskStatusResolved(t *testing.T) {
	assert.False(t, StatusPending.Resolved())
	assert.True(t, StatusSuccess.Resolved())
	assert.True(t, StatusEndOfAttempts.Resolved())
}

func TestAllLessonIDs(t *testing.T) {
	doc := &RoadmapDocument{
		LearningPhases: []Phase{{
			Ordinal: 1,
			Weeks: []Week{{
				WeekNumber: 1,
				Grammar:    SkillBlock{Items: []TaskItem{{LessonID: "g1"}}},
				Vocabulary: SkillBlock{Items: []TaskItem{{LessonID: "v1"}, {LessonID: ""}}},
				Speaking:   SkillBlock{Items: []TaskItem{{LessonID: "s1"}}},
			}},
		}},
	}

	ids := doc.AllLessonIDs()
	assert.Len(t, ids, 3)
	assert.Equal(t, SkillGrammar, ids["g1"])
	assert.Equal(t, SkillVocabulary, ids["v1"])
	assert.Equal(t, SkillSpeaking, ids["s1"])
}
