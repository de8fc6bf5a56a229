package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationService runs speaking-practice sessions: free talk with an AI
// partner or scripted scenario role-play. Summarizing a session grades it as
// a speaking attempt on the learner's roadmap.
type ConversationService struct {
	Sessions  *repository.SessionRepository
	Scenarios *repository.ScenarioRepository
	AI        AudioGenerator
	Progress  *ProgressService
	Roadmap   *RoadmapService
	Storage   *StorageService
	Vocab     *VocabularyService
}

func NewConversationService(sessions *repository.SessionRepository, scenarios *repository.ScenarioRepository, ai AudioGenerator, progress *ProgressService, roadmap *RoadmapService, storage *StorageService, vocab *VocabularyService) *ConversationService {
	return &ConversationService{
		Sessions:  sessions,
		Scenarios: scenarios,
		AI:        ai,
		Progress:  progress,
		Roadmap:   roadmap,
		Storage:   storage,
		Vocab:     vocab,
	}
}

// StartResult is the opening state of a new session.
type StartResult struct {
	SessionID   string   `json:"sessionId"`
	Greeting    string   `json:"greeting"`
	Suggestions []string `json:"suggestions"`
}

// Start opens a session. Free mode greets via the model with a plain-text
// fallback; scenario mode opens with the script's first AI line and suggests
// the learner's lines.
func (s *ConversationService) Start(ctx context.Context, userID uint, mode, level, topic string, scenarioID uint, lessonID string) (*StartResult, error) {
	var greeting string
	var suggestions []string
	savedTopic := topic

	switch mode {
	case model.ConversationModeScenario:
		scenario, err := s.Scenarios.FindByID(scenarioID)
		if err != nil {
			return nil, err
		}
		savedTopic = scenario.Title
		for _, line := range scenario.Lines {
			if line.Speaker == "user" {
				suggestions = append(suggestions, line.Line)
			}
		}
		if len(scenario.Lines) > 0 {
			greeting = scenario.Lines[0].Line
		}
	case model.ConversationModeFree:
		if topic == "" {
			return nil, fmt.Errorf("topic is required for free talk")
		}
		text, err := s.AI.GenerateText(ctx, buildConversationStartPrompt(level, topic))
		if err != nil {
			logger.Log.Warn("greeting generation failed, using canned greeting", zap.Error(err))
			greeting = fmt.Sprintf("Hi! Let's talk about %s. How are you?", topic)
		} else {
			greeting = strings.TrimSpace(text)
		}
	default:
		return nil, fmt.Errorf("unknown conversation mode %q", mode)
	}

	session := &model.ConversationSession{
		UserID:     userID,
		Mode:       mode,
		Level:      level,
		Topic:      savedTopic,
		LessonID:   lessonID,
		ScenarioID: scenarioID,
	}
	if err := session.SetMessageList([]model.ConversationMessage{
		{Role: "ai", Text: greeting, Type: "greeting"},
	}); err != nil {
		return nil, err
	}
	if err := s.Sessions.Create(session); err != nil {
		return nil, err
	}

	return &StartResult{SessionID: session.ID, Greeting: greeting, Suggestions: suggestions}, nil
}

func (s *ConversationService) ownedSession(sessionID string, userID uint) (*model.ConversationSession, error) {
	session, err := s.Sessions.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrSessionNotFound
	}
	return session, nil
}

func (s *ConversationService) List(userID uint) ([]model.ConversationSession, error) {
	return s.Sessions.ListByUser(userID)
}

func (s *ConversationService) Get(sessionID string, userID uint) (*model.ConversationSession, error) {
	return s.ownedSession(sessionID, userID)
}

func (s *ConversationService) Delete(sessionID string, userID uint) error {
	return s.Sessions.Delete(sessionID, userID)
}

// recent renders the last n messages as prompt context.
func recentContext(msgs []model.ConversationMessage, n int) string {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Text))
	}
	return strings.Join(lines, "\n")
}

func (s *ConversationService) appendMessages(session *model.ConversationSession, newMsgs ...model.ConversationMessage) error {
	msgs, err := session.MessageList()
	if err != nil {
		return err
	}
	msgs = append(msgs, newMsgs...)
	if err := session.SetMessageList(msgs); err != nil {
		return err
	}
	return s.Sessions.Update(session)
}

// FreeTalkReply is the model's structured reply to a text turn.
type FreeTalkReply struct {
	Reply    string                 `json:"reply"`
	Feedback string                 `json:"feedback"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Reply handles one free-talk text turn.
func (s *ConversationService) Reply(ctx context.Context, userID uint, sessionID, message string) (*FreeTalkReply, error) {
	session, err := s.ownedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := session.MessageList()
	if err != nil {
		return nil, err
	}
	history := recentContext(msgs, 8)

	var parsed FreeTalkReply
	if err := GenerateJSON(ctx, s.AI, buildFreeTalkTextPrompt(session.Level, session.Topic, history, message), &parsed); err != nil {
		logger.Log.Warn("free talk reply generation failed", zap.Error(err))
		parsed = FreeTalkReply{Reply: "Sorry, I could not process that. Could you say it again?"}
	}

	if err := s.appendMessages(session,
		model.ConversationMessage{Role: "user", Text: message, Type: "text"},
		model.ConversationMessage{Role: "ai", Text: parsed.Feedback, Type: "feedback", Metadata: parsed.Metadata},
		model.ConversationMessage{Role: "ai", Text: parsed.Reply, Type: "reply"},
	); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// prepareAudio writes the upload to a temp file, transcodes to mp3, archives
// the clip, and returns the mp3 bytes for the model. Archival is best-effort.
func (s *ConversationService) prepareAudio(ctx context.Context, sessionID string, audio []byte, filename string) ([]byte, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".webm"
	}
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("speak_%s%s", uuid.New().String(), ext))
	if err := os.WriteFile(tmp, audio, 0600); err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	mp3Path, err := util.TranscodeToMP3(tmp)
	if err != nil {
		return nil, err
	}
	if mp3Path != tmp {
		defer os.Remove(mp3Path)
	}

	objectName := fmt.Sprintf("speaking/%s/%d%s", sessionID, time.Now().UnixNano(), ".mp3")
	if _, err := s.Storage.UploadFile(ctx, objectName, mp3Path, "audio/mpeg"); err != nil {
		logger.Log.Warn("failed to archive speaking clip", zap.Error(err))
	}

	return os.ReadFile(mp3Path)
}

// VoiceReply is the model's structured evaluation of a spoken turn.
type VoiceReply struct {
	TranscribedText    string                 `json:"transcribed_text"`
	Reply              string                 `json:"reply,omitempty"`
	Feedback           string                 `json:"feedback,omitempty"`
	ImmediateFeedback  string                 `json:"immediate_feedback,omitempty"`
	NextAIReply        string                 `json:"next_ai_reply,omitempty"`
	NextUserSuggestion string                 `json:"next_user_suggestion,omitempty"`
	IsComplete         bool                   `json:"is_complete,omitempty"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// Voice handles one free-talk spoken turn: transcribe, converse, critique.
func (s *ConversationService) Voice(ctx context.Context, userID uint, sessionID string, audio []byte, filename string) (*VoiceReply, error) {
	session, err := s.ownedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	mp3, err := s.prepareAudio(ctx, sessionID, audio, filename)
	if err != nil {
		return nil, err
	}

	msgs, err := session.MessageList()
	if err != nil {
		return nil, err
	}
	history := recentContext(msgs, 6)

	var parsed VoiceReply
	prompt := buildFreeTalkVoicePrompt(session.Level, session.Topic, history)
	if err := generateJSONWithAudio(ctx, s.AI, prompt, "audio/mpeg", mp3, &parsed); err != nil {
		logger.Log.Warn("voice turn evaluation failed", zap.Error(err))
		parsed = VoiceReply{TranscribedText: "(audio error)", Reply: "Sorry, I could not hear that clearly."}
	}

	if err := s.appendMessages(session,
		model.ConversationMessage{Role: "user", Text: parsed.TranscribedText, Type: "speech"},
		model.ConversationMessage{Role: "ai", Text: parsed.Feedback, Type: "feedback", Metadata: parsed.Metadata},
		model.ConversationMessage{Role: "ai", Text: parsed.Reply, Type: "reply"},
	); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ScenarioVoice evaluates one scripted turn against the expected line and
// advances the script.
func (s *ConversationService) ScenarioVoice(ctx context.Context, userID uint, sessionID string, turn int, audio []byte, filename string) (*VoiceReply, error) {
	session, err := s.ownedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	scenario, err := s.Scenarios.FindByID(session.ScenarioID)
	if err != nil {
		return nil, err
	}

	expected := "(no expected line)"
	for _, line := range scenario.Lines {
		if line.Turn == turn && line.Speaker == "user" {
			expected = line.Line
			break
		}
	}

	mp3, err := s.prepareAudio(ctx, sessionID, audio, filename)
	if err != nil {
		return nil, err
	}

	var parsed VoiceReply
	prompt := buildScenarioVoicePrompt(session.Level, expected)
	if err := generateJSONWithAudio(ctx, s.AI, prompt, "audio/mpeg", mp3, &parsed); err != nil {
		logger.Log.Warn("scenario turn evaluation failed", zap.Error(err))
		parsed = VoiceReply{TranscribedText: "(audio error)", ImmediateFeedback: "Sorry, I could not hear that clearly."}
	}

	// Advance the script: close with the AI's next line, suggest the
	// learner's line after that.
	parsed.NextAIReply = "Scenario completed!"
	for _, line := range scenario.Lines {
		if line.Turn == turn+1 && line.Speaker == "ai" {
			parsed.NextAIReply = line.Line
		}
		if line.Turn == turn+2 && line.Speaker == "user" {
			parsed.NextUserSuggestion = line.Line
		}
	}
	parsed.IsComplete = parsed.NextUserSuggestion == ""

	if err := s.appendMessages(session,
		model.ConversationMessage{Role: "user", Text: parsed.TranscribedText, Type: "speech"},
		model.ConversationMessage{Role: "ai", Text: parsed.ImmediateFeedback, Type: "feedback", Metadata: parsed.Metadata},
		model.ConversationMessage{Role: "ai", Text: parsed.NextAIReply, Type: "reply"},
	); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// SummaryMetadata is the evaluator's scorecard. Grammar is nil for scenario
// sessions, where the learner reads a script.
type SummaryMetadata struct {
	Grammar                *float64 `json:"grammar"`
	Vocabulary             *float64 `json:"vocabulary"`
	Pronunciation          *float64 `json:"pronunciation"`
	KeyGrammarPoints       []string `json:"key_grammar_points_observed"`
	KeyVocabulary          []string `json:"key_vocabulary_highlighted"`
	KeyPronunciationPoints []string `json:"key_pronunciation_points"`
	VocabSuggestions       []string `json:"relevant_vocabulary_suggestions"`
}

type SessionSummary struct {
	SummaryText     string          `json:"summary_text"`
	SummaryMetadata SummaryMetadata `json:"summary_metadata"`
	OverallScore    float64         `json:"overall_score"`
	Attempt         *AttemptResult  `json:"attempt,omitempty"`
}

// transcriptFor renders the session log for the summary prompt, tagging
// feedback entries with their pronunciation scores.
func transcriptFor(msgs []model.ConversationMessage) string {
	var lines []string
	for _, m := range msgs {
		switch {
		case m.Role == "system":
			continue
		case m.Role == "user":
			lines = append(lines, fmt.Sprintf("[USER]: %s", m.Text))
		case m.Type == "feedback":
			pron := "N/A"
			if m.Metadata != nil {
				if v, ok := m.Metadata["pronunciation_score"]; ok {
					pron = fmt.Sprint(v)
				}
			}
			lines = append(lines, fmt.Sprintf("   >>> [LOG]: Pronunciation=%s | Feedback='%s'", pron, m.Text))
		case m.Role == "ai":
			lines = append(lines, fmt.Sprintf("[AI]: %s", m.Text))
		}
	}
	return strings.Join(lines, "\n")
}

// Summarize closes the session with an overall evaluation and, when the
// session is tied to a roadmap lesson, grades it as a speaking attempt. A
// session is only ever summarized once; repeat calls return the stored
// summary.
func (s *ConversationService) Summarize(ctx context.Context, userID uint, sessionID string) (*SessionSummary, error) {
	session, err := s.ownedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := session.MessageList()
	if err != nil {
		return nil, err
	}

	if session.Summarized {
		out := &SessionSummary{SummaryText: session.Summary}
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Type == "summary" {
				out.SummaryText = msgs[i].Text
				break
			}
		}
		return out, nil
	}

	transcript := transcriptFor(msgs)
	if strings.TrimSpace(transcript) == "" {
		return &SessionSummary{SummaryText: "No content."}, nil
	}

	var parsed struct {
		SummaryText     string          `json:"summary_text"`
		SummaryMetadata SummaryMetadata `json:"summary_metadata"`
	}
	prompt := buildSessionSummaryPrompt(session.Mode, session.Level, session.Topic, transcript)
	if err := GenerateJSON(ctx, s.AI, prompt, &parsed); err != nil {
		logger.Log.Warn("session summary generation failed", zap.Error(err))
		parsed.SummaryText = "The session could not be evaluated."
	}

	meta := parsed.SummaryMetadata
	overall := OverallSpeakingScore(SpeakingScores{
		Grammar:       meta.Grammar,
		Vocabulary:    meta.Vocabulary,
		Pronunciation: meta.Pronunciation,
	})

	session.Summary = parsed.SummaryText
	session.Summarized = true
	metaMap := map[string]interface{}{
		"grammar":       meta.Grammar,
		"vocabulary":    meta.Vocabulary,
		"pronunciation": meta.Pronunciation,
	}
	if err := s.appendMessages(session,
		model.ConversationMessage{Role: "ai", Text: parsed.SummaryText, Type: "summary", Metadata: metaMap},
	); err != nil {
		return nil, err
	}

	out := &SessionSummary{
		SummaryText:     parsed.SummaryText,
		SummaryMetadata: meta,
		OverallScore:    overall,
	}

	// Free-talk summaries may carry vocabulary the learner should pick up.
	if session.Mode == model.ConversationModeFree && len(meta.VocabSuggestions) > 0 && s.Vocab != nil {
		s.Vocab.SuggestFromTranscript(ctx, userID, transcript, meta.VocabSuggestions)
	}

	if session.LessonID == "" {
		return out, nil
	}

	attempt, _, err := s.Progress.ApplyAttempt(ctx, userID, session.LessonID, model.SkillSpeaking, overall)
	if err != nil {
		return nil, err
	}
	out.Attempt = attempt

	if !attempt.AlreadyResolved {
		s.Roadmap.HandleAttemptOutcome(ctx, userID, session.LessonID)
	}

	return out, nil
}
