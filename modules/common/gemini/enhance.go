package gemini

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

const enhanceInstruction = `Rewrite the following image generation prompt for a diffusion model.
Keep the subject and intent, add concrete visual detail (lighting, composition, style).
Answer with the rewritten prompt only, no quotes, no explanation.

Prompt: `

// Enhancer - 프롬프트 보강 (선택 기능)
type Enhancer struct {
	keys     []string
	model    string
	generate func(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// NewEnhancer - 키가 없으면 nil 반환
func NewEnhancer(apiKeys []string, model string) *Enhancer {
	if len(apiKeys) == 0 {
		return nil
	}
	return &Enhancer{keys: apiKeys, model: model, generate: generateText}
}

// Enhance - 보강된 프롬프트 반환. 실패하면 원본 그대로.
func (e *Enhancer) Enhance(ctx context.Context, prompt string) string {
	if e == nil || strings.TrimSpace(prompt) == "" {
		return prompt
	}
	out, err := WithRetry(ctx, e.keys, func(ctx context.Context, apiKey string) (string, error) {
		return e.generate(ctx, apiKey, e.model, enhanceInstruction+prompt)
	})
	if err != nil {
		log.Warn().Msgf("⚠️  [Gemini] Prompt enhancement failed, using original prompt: %v", err)
		return prompt
	}
	out = strings.Trim(strings.TrimSpace(out), "\"")
	if out == "" {
		return prompt
	}
	log.Info().Msgf("✨ [Gemini] Prompt enhanced: %q → %q", prompt, out)
	return out
}
