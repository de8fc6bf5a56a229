package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const quizStatusTTL = 10 * time.Minute

// QuizService generates lesson quizzes with the model and grades submissions
// into the progress pipeline. Question generation runs in the background;
// clients poll the session status (mirrored in redis to keep polling off the
// database).
type QuizService struct {
	QuizRepo *repository.QuizRepository
	UserRepo *repository.UserRepository
	AI       TextGenerator
	Progress *ProgressService
	Roadmap  *RoadmapService
	Redis    *redis.Client
}

func NewQuizService(quizRepo *repository.QuizRepository, userRepo *repository.UserRepository, ai TextGenerator, progress *ProgressService, roadmap *RoadmapService, rdb *redis.Client) *QuizService {
	return &QuizService{
		QuizRepo: quizRepo,
		UserRepo: userRepo,
		AI:       ai,
		Progress: progress,
		Roadmap:  roadmap,
		Redis:    rdb,
	}
}

func quizStatusKey(sessionID uint) string {
	return fmt.Sprintf("quiz:session:%d:status", sessionID)
}

func (s *QuizService) setStatusFlag(ctx context.Context, sessionID uint, status string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Set(ctx, quizStatusKey(sessionID), status, quizStatusTTL).Err(); err != nil {
		logger.Log.Debug("quiz status cache write failed", zap.Error(err))
	}
}

// StartQuiz creates a PENDING session and kicks off question generation in
// the background.
func (s *QuizService) StartQuiz(ctx context.Context, userID uint, lessonID, topic string, skill model.SkillType) (*model.QuizSession, error) {
	session := &model.QuizSession{
		UserID:   userID,
		LessonID: lessonID,
		Topic:    topic,
		Skill:    skill,
		Status:   model.QuizStatusPending,
	}
	if err := s.QuizRepo.CreateSession(session); err != nil {
		return nil, err
	}
	s.setStatusFlag(ctx, session.ID, model.QuizStatusPending)

	go s.generateQuestions(session.ID, userID, topic)

	return session, nil
}

type generatedQuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

func (s *QuizService) generateQuestions(sessionID, userID uint, topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	level := "A2"
	if user, err := s.UserRepo.FindByID(userID); err == nil && user.Level != "" {
		level = user.Level
	}

	var raw []generatedQuizQuestion
	err := GenerateJSON(ctx, s.AI, buildGrammarQuizPrompt(topic, level), &raw)
	if err == nil && len(raw) == 0 {
		err = fmt.Errorf("model returned an empty question set")
	}
	if err != nil {
		logger.Log.Error("quiz generation failed",
			zap.Uint("sessionId", sessionID), zap.Error(err))
		s.markSession(ctx, sessionID, userID, model.QuizStatusError)
		return
	}

	questions := make([]model.QuizQuestion, 0, len(raw))
	for _, q := range raw {
		opts, _ := json.Marshal(q.Options)
		questions = append(questions, model.QuizQuestion{
			SessionID:     sessionID,
			Topic:         topic,
			Question:      q.Question,
			Options:       datatypes.JSON(opts),
			CorrectAnswer: strings.TrimSpace(q.Answer),
		})
	}
	if err := s.QuizRepo.BulkCreateQuestions(questions); err != nil {
		logger.Log.Error("quiz question insert failed",
			zap.Uint("sessionId", sessionID), zap.Error(err))
		s.markSession(ctx, sessionID, userID, model.QuizStatusError)
		return
	}

	s.markSession(ctx, sessionID, userID, model.QuizStatusReady)
	logger.Log.Info("quiz ready",
		zap.Uint("sessionId", sessionID), zap.Int("questions", len(questions)))
}

func (s *QuizService) markSession(ctx context.Context, sessionID, userID uint, status string) {
	session, err := s.QuizRepo.FindSessionByID(sessionID, userID)
	if err != nil {
		logger.Log.Error("quiz session vanished during generation",
			zap.Uint("sessionId", sessionID), zap.Error(err))
		return
	}
	session.Status = status
	if err := s.QuizRepo.UpdateSession(session); err != nil {
		logger.Log.Error("quiz session status update failed",
			zap.Uint("sessionId", sessionID), zap.Error(err))
		return
	}
	s.setStatusFlag(ctx, sessionID, status)
}

// Status returns the session's generation status, served from redis when the
// flag is still warm.
func (s *QuizService) Status(ctx context.Context, userID, sessionID uint) (string, error) {
	if s.Redis != nil {
		if status, err := s.Redis.Get(ctx, quizStatusKey(sessionID)).Result(); err == nil {
			return status, nil
		}
	}
	session, err := s.QuizRepo.FindSessionByID(sessionID, userID)
	if err != nil {
		return "", err
	}
	return session.Status, nil
}

// QuizQuestionView is a question with the answer key stripped.
type QuizQuestionView struct {
	ID       uint     `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Questions returns the generated question set for a READY session.
func (s *QuizService) Questions(userID, sessionID uint) (*model.QuizSession, []QuizQuestionView, error) {
	session, err := s.QuizRepo.FindSessionByID(sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != model.QuizStatusReady && session.Status != model.QuizStatusCompleted {
		return nil, nil, util.ErrQuizNotReady
	}

	questions, err := s.QuizRepo.QuestionsBySession(sessionID)
	if err != nil {
		return nil, nil, err
	}

	views := make([]QuizQuestionView, 0, len(questions))
	for _, q := range questions {
		var opts []string
		if err := json.Unmarshal(q.Options, &opts); err != nil {
			logger.Log.Warn("question has malformed options",
				zap.Uint("questionId", q.ID), zap.Error(err))
		}
		views = append(views, QuizQuestionView{ID: q.ID, Question: q.Question, Options: opts})
	}
	return session, views, nil
}

// QuizResult is the graded outcome handed back to the client.
type QuizResult struct {
	Score           float64        `json:"score"`
	CorrectCount    int            `json:"correctCount"`
	TotalQuestions  int            `json:"totalQuestions"`
	MasteryAchieved bool           `json:"masteryAchieved"`
	WeakAreas       []string       `json:"weakAreas"`
	Attempt         *AttemptResult `json:"attempt,omitempty"`
}

// Submit grades the answers, closes the session, records the attempt on the
// learner's roadmap, and runs the weekly cascade.
func (s *QuizService) Submit(ctx context.Context, userID, sessionID uint, answers map[uint]string) (*QuizResult, error) {
	session, err := s.QuizRepo.FindSessionByID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.QuizStatusReady {
		return nil, util.ErrQuizNotReady
	}

	questions, err := s.QuizRepo.QuestionsBySession(sessionID)
	if err != nil {
		return nil, err
	}

	var correct int
	for _, q := range questions {
		if ans, ok := answers[q.ID]; ok && strings.EqualFold(strings.TrimSpace(ans), q.CorrectAnswer) {
			correct++
		}
	}
	score := NormalizeScore(float64(correct), float64(len(questions)))
	mastered := score >= s.Progress.thresholdFor(session.Skill)

	weakAreas := []string{"Topic mastered."}
	if !mastered {
		weakAreas = []string{fmt.Sprintf("Needs review: %s (score: %.0f%%)", session.Topic, score*100)}
	}
	weakJSON, _ := json.Marshal(weakAreas)

	session.Status = model.QuizStatusCompleted
	session.Score = score
	session.WeakAreas = datatypes.JSON(weakJSON)
	if err := s.QuizRepo.UpdateSession(session); err != nil {
		return nil, err
	}
	s.setStatusFlag(ctx, sessionID, model.QuizStatusCompleted)

	result := &QuizResult{
		Score:           score,
		CorrectCount:    correct,
		TotalQuestions:  len(questions),
		MasteryAchieved: mastered,
		WeakAreas:       weakAreas,
	}

	if session.LessonID == "" {
		return result, nil
	}

	attempt, _, err := s.Progress.ApplyAttempt(ctx, userID, session.LessonID, session.Skill, score)
	if err != nil {
		// The quiz itself graded fine; surface the ledger failure, the
		// learner's attempt was not durably recorded.
		return nil, err
	}
	result.Attempt = attempt

	if !attempt.AlreadyResolved {
		s.Roadmap.HandleAttemptOutcome(ctx, userID, session.LessonID)
	}

	return result, nil
}
