package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GenerateFunc - 키 하나로 한 번 호출
type GenerateFunc func(ctx context.Context, apiKey string) (string, error)

// retryWait - 429 후 같은 키 재시도 전 대기
var retryWait = 2 * time.Second

const maxRetriesPerKey = 3

// WithRetry - 429 에러 시 여러 API 키로 재시도
// 각 키당 최대 3번, 429가 아닌 에러는 즉시 반환
func WithRetry(ctx context.Context, apiKeys []string, call GenerateFunc) (string, error) {
	if len(apiKeys) == 0 {
		return "", fmt.Errorf("no API keys provided")
	}

	var lastErr error
	for keyIndex, apiKey := range apiKeys {
		log.Debug().Msgf("🔑 [Gemini Retry] Trying API key #%d/%d", keyIndex+1, len(apiKeys))

		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			text, err := call(ctx, apiKey)
			if err == nil {
				log.Debug().Msgf("✅ [Gemini Retry] Success with API key #%d (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
				return text, nil
			}
			lastErr = err

			if !is429Error(err) {
				log.Error().Msgf("❌ [Gemini Retry] Key #%d failed with non-429 error: %v", keyIndex+1, err)
				return "", err
			}

			log.Warn().Msgf("⚠️  [Gemini Retry] Key #%d hit rate limit (429) on attempt %d/%d", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(retryWait):
				}
			}
		}
		log.Warn().Msgf("⚠️  [Gemini Retry] Key #%d exhausted all %d attempts, trying next key...", keyIndex+1, maxRetriesPerKey)
	}

	return "", fmt.Errorf("all %d API keys exhausted (%d attempts each), last error: %w", len(apiKeys), maxRetriesPerKey, lastErr)
}

// is429Error - 429 Rate Limit 에러인지 확인
func is429Error(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "resourceexhausted")
}

// generateText - generative-ai-go 로 텍스트 한 번 생성
func generateText(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty Gemini response")
	}
	return sb.String(), nil
}
