package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/pkg/monitoring"
)

// TextGenerator is the single seam between the domain services and the
// language model. Everything that talks to the model goes through it, so
// tests can substitute a canned generator.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// AudioGenerator extends text generation with an inline audio attachment,
// used for speaking-turn transcription and grading.
type AudioGenerator interface {
	TextGenerator
	GenerateWithAudio(ctx context.Context, prompt string, mimeType string, audio []byte) (string, error)
}

// AIService calls the Gemini generateContent REST endpoint directly.
type AIService struct {
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
	Role  string         `json:"role,omitempty"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateText sends a single-turn prompt and returns the model's text reply.
func (s *AIService) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.generate(ctx, []generatePart{{Text: prompt}})
}

// GenerateWithAudio sends a prompt plus an inline base64 audio part. The
// caller is responsible for transcoding to a model-supported format first.
func (s *AIService) GenerateWithAudio(ctx context.Context, prompt string, mimeType string, audio []byte) (string, error) {
	return s.generate(ctx, []generatePart{
		{Text: prompt},
		{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(audio),
		}},
	})
}

func (s *AIService) generate(ctx context.Context, parts []generatePart) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{
			{Parts: parts},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(s.config.BaseURL, "/"), s.config.Model, s.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		monitoring.LLMRequestCounter.WithLabelValues("transport_error").Inc()
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.LLMRequestCounter.WithLabelValues("transport_error").Inc()
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		monitoring.LLMRequestCounter.WithLabelValues("api_error").Inc()
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		monitoring.LLMRequestCounter.WithLabelValues("bad_response").Inc()
		return "", fmt.Errorf("AI API returned unparseable body: %w", err)
	}
	if parsed.Error != nil {
		monitoring.LLMRequestCounter.WithLabelValues("api_error").Inc()
		return "", fmt.Errorf("AI API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		monitoring.LLMRequestCounter.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("AI API returned no candidates")
	}

	monitoring.LLMRequestCounter.WithLabelValues("ok").Inc()

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag. The model frequently wraps JSON replies in ```json fences
// even when asked not to.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.Contains(first, "{") && !strings.Contains(first, "[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// GenerateJSON prompts the model and unmarshals its reply into out, stripping
// any code fences first. Callers must treat an error as "use the fallback",
// never as fatal.
func GenerateJSON(ctx context.Context, gen TextGenerator, prompt string, out interface{}) error {
	raw, err := gen.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeModelJSON(raw, out)
}

// generateJSONWithAudio is GenerateJSON for prompts carrying an audio clip.
func generateJSONWithAudio(ctx context.Context, gen AudioGenerator, prompt string, mimeType string, audio []byte, out interface{}) error {
	raw, err := gen.GenerateWithAudio(ctx, prompt, mimeType, audio)
	if err != nil {
		return err
	}
	return decodeModelJSON(raw, out)
}

func decodeModelJSON(raw string, out interface{}) error {
	cleaned := StripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		monitoring.LLMRequestCounter.WithLabelValues("bad_json").Inc()
		return fmt.Errorf("model reply is not valid JSON: %w", err)
	}
	return nil
}
