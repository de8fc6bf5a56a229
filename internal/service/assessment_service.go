package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

const weakTopicThreshold = 0.60

// RoadmapPreferences is the learner's stated goal, collected before the
// diagnostic test.
type RoadmapPreferences struct {
	DailyCommitment   string `json:"daily_commitment" binding:"required"`
	CommunicationGoal string `json:"communication_goal" binding:"required"`
	TargetDuration    string `json:"target_duration" binding:"required"`
	Barrier           string `json:"barrier"`
}

// AssessmentQuestion is one diagnostic test item. Question 21 is an
// open-ended speaking prompt with no options.
type AssessmentQuestion struct {
	ID               int      `json:"id"`
	QuestionText     string   `json:"question_text"`
	Options          []string `json:"options"`
	CorrectAnswerKey string   `json:"correct_answer_key"`
	QuestionType     string   `json:"question_type"`
}

type diagnosticTest struct {
	Questions []AssessmentQuestion `json:"questions"`
}

// MCQAnalysis is the graded multiple-choice section with per-topic weak
// areas.
type MCQAnalysis struct {
	ScorePercent   float64  `json:"score_percent"`
	CorrectCount   int      `json:"correct_count"`
	TotalQuestions int      `json:"total_questions"`
	WeakTopics     []string `json:"weak_topics"`
}

// SpeakingSample is the learner's recorded answer to the speaking prompt.
type SpeakingSample struct {
	Transcript string  `json:"transcript"`
	WordCount  int     `json:"word_count"`
	LatencySec float64 `json:"latency_s"`
}

// AssessmentSubmission is the full diagnostic test hand-in.
type AssessmentSubmission struct {
	Preferences RoadmapPreferences   `json:"preferences"`
	Questions   []AssessmentQuestion `json:"quiz_questions"`
	MCQAnswers  map[string]string    `json:"mcq_answers"`
	// LatencyMs is the learner's response delay on the speaking prompt.
	LatencyMs float64 `json:"latency_ms"`
}

type AssessmentService struct {
	AI       AudioGenerator
	Roadmaps RoadmapStore
	UserRepo *repository.UserRepository
}

func NewAssessmentService(ai AudioGenerator, roadmaps RoadmapStore, userRepo *repository.UserRepository) *AssessmentService {
	return &AssessmentService{
		AI:       ai,
		Roadmaps: roadmaps,
		UserRepo: userRepo,
	}
}

// GenerateDiagnosticTest builds the 21-question placement test from the
// learner's stated preferences.
func (s *AssessmentService) GenerateDiagnosticTest(ctx context.Context, prefs RoadmapPreferences) ([]AssessmentQuestion, error) {
	prompt := buildDiagnosticTestPrompt(prefs.CommunicationGoal, prefs.Barrier, prefs.DailyCommitment, prefs.TargetDuration)

	var test diagnosticTest
	if err := GenerateJSON(ctx, s.AI, prompt, &test); err != nil {
		return nil, err
	}
	if len(test.Questions) == 0 {
		return nil, fmt.Errorf("diagnostic test generation returned no questions")
	}
	return test.Questions, nil
}

// CalculateMCQScore grades the multiple-choice answers against the question
// set and flags topics scoring below the weak-area threshold.
func CalculateMCQScore(answers map[string]string, questions []AssessmentQuestion) MCQAnalysis {
	type tally struct{ correct, total int }

	answerKey := make(map[string]struct {
		key   string
		topic string
	})
	for _, q := range questions {
		if q.QuestionType == "speaking_prompt" {
			continue
		}
		answerKey[fmt.Sprint(q.ID)] = struct {
			key   string
			topic string
		}{q.CorrectAnswerKey, q.QuestionType}
	}

	var correctCount int
	topics := make(map[string]*tally)
	for qID, userKey := range answers {
		entry, ok := answerKey[qID]
		if !ok {
			continue
		}
		t := topics[entry.topic]
		if t == nil {
			t = &tally{}
			topics[entry.topic] = t
		}
		t.total++
		if strings.EqualFold(entry.key, userKey) {
			correctCount++
			t.correct++
		}
	}

	var weakTopics []string
	topicNames := make([]string, 0, len(topics))
	for name := range topics {
		topicNames = append(topicNames, name)
	}
	sort.Strings(topicNames)
	for _, name := range topicNames {
		t := topics[name]
		if t.total > 0 && float64(t.correct)/float64(t.total) < weakTopicThreshold {
			weakTopics = append(weakTopics, fmt.Sprintf("%s (correct: %d/%d)", name, t.correct, t.total))
		}
	}

	total := len(answers)
	var percent float64
	if total > 0 {
		percent = float64(correctCount) / float64(total) * 100
		if len(weakTopics) == 0 {
			weakTopics = append(weakTopics, "No major weaknesses detected in the multiple-choice section.")
		}
	}

	return MCQAnalysis{
		ScorePercent:   percent,
		CorrectCount:   correctCount,
		TotalQuestions: total,
		WeakTopics:     weakTopics,
	}
}

// TranscribeSpeakingSample transcribes the recorded speaking answer. Failures
// degrade to an empty sample; the roadmap can still be generated without it.
func (s *AssessmentService) TranscribeSpeakingSample(ctx context.Context, audio []byte, mimeType string, latencyMs float64) SpeakingSample {
	sample := SpeakingSample{LatencySec: latencyMs / 1000}
	if len(audio) == 0 {
		return sample
	}
	transcript, err := s.AI.GenerateWithAudio(ctx, "Please transcribe this audio.", mimeType, audio)
	if err != nil {
		logger.Log.Warn("speaking sample transcription failed", zap.Error(err))
		return sample
	}
	sample.Transcript = strings.TrimSpace(transcript)
	sample.WordCount = len(strings.Fields(sample.Transcript))
	return sample
}

// generatedRoadmap is the shape the model returns for initial generation.
type generatedRoadmap struct {
	UserSummary    string `json:"user_summary"`
	EstimatedLevel string `json:"estimated_level"`
	Roadmap        struct {
		Summary                 string        `json:"summary"`
		CurrentStatus           string        `json:"current_status"`
		DailyPlanRecommendation string        `json:"daily_plan_recommendation"`
		LearningPhases          []model.Phase `json:"learning_phases"`
	} `json:"roadmap"`
}

// GenerateRoadmap grades the submission, asks the model for a personalized
// multi-phase roadmap, seeds the progress ledger, and installs the document
// as the learner's current roadmap (replacing any previous one).
func (s *AssessmentService) GenerateRoadmap(ctx context.Context, userID uint, sub AssessmentSubmission, speaking SpeakingSample) (*model.Roadmap, MCQAnalysis, error) {
	analysis := CalculateMCQScore(sub.MCQAnswers, sub.Questions)

	weakPoints := append([]string{}, analysis.WeakTopics...)
	if speaking.LatencySec > 1.5 {
		weakPoints = append(weakPoints, "Slow spoken response (latency > 1.5s)")
	}
	speakingOverall := "No speaking data."
	if speaking.Transcript != "" {
		speakingOverall = speaking.Transcript
	}

	analysisJSON := fmt.Sprintf("score %.0f%% (%d/%d correct)",
		analysis.ScorePercent, analysis.CorrectCount, analysis.TotalQuestions)
	prompt := buildRoadmapPrompt(analysisJSON, weakPoints, speakingOverall, sub.Preferences)

	var generated generatedRoadmap
	if err := GenerateJSON(ctx, s.AI, prompt, &generated); err != nil {
		return nil, analysis, fmt.Errorf("roadmap generation failed: %w", err)
	}
	if len(generated.Roadmap.LearningPhases) == 0 {
		return nil, analysis, fmt.Errorf("roadmap generation returned no phases")
	}

	doc := &model.RoadmapDocument{
		Level:                   generated.EstimatedLevel,
		UserSummary:             generated.UserSummary,
		Summary:                 generated.Roadmap.Summary,
		CurrentStatus:           generated.Roadmap.CurrentStatus,
		DailyPlanRecommendation: generated.Roadmap.DailyPlanRecommendation,
		LearningPhases:          generated.Roadmap.LearningPhases,
	}
	doc.Normalize()
	SyncLedger(doc)

	roadmap, err := s.Roadmaps.CreateFresh(userID, doc)
	if err != nil {
		return nil, analysis, err
	}

	if err := s.UserRepo.UpdateLevel(userID, doc.Level); err != nil {
		logger.Log.Warn("failed to mirror estimated level onto user",
			zap.Uint("userId", userID), zap.Error(err))
	}

	logger.Log.Info("new roadmap installed",
		zap.Uint("userId", userID),
		zap.String("level", doc.Level),
		zap.Int("phases", len(doc.LearningPhases)))

	return roadmap, analysis, nil
}
