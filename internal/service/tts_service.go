package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"english_edu_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	ttsEndpoint = "https://translate.google.com/translate_tts"
	ttsCacheTTL = 7 * 24 * time.Hour
	// The endpoint rejects requests without a browser user agent.
	ttsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// TTSService fetches spoken mp3 audio for short English text, cached in
// redis by text hash.
type TTSService struct {
	Redis  *redis.Client
	client *http.Client
}

func NewTTSService(rdb *redis.Client) *TTSService {
	return &TTSService{
		Redis:  rdb,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func ttsCacheKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return "tts:" + hex.EncodeToString(sum[:])
}

// Speak returns mp3 audio for the text, from cache when warm.
func (s *TTSService) Speak(ctx context.Context, text string) ([]byte, error) {
	key := ttsCacheKey(text)
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", "en")
	q.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ttsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ttsUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts endpoint returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if err := s.Redis.Set(ctx, key, audio, ttsCacheTTL).Err(); err != nil {
			logger.Log.Debug("tts cache write failed", zap.Error(err))
		}
	}
	return audio, nil
}
