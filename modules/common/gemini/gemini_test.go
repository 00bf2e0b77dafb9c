package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWithRetryRotatesKeysOn429(t *testing.T) {
	retryWait = 0
	var tried []string
	out, err := WithRetry(context.Background(), []string{"k1", "k2"}, func(_ context.Context, key string) (string, error) {
		tried = append(tried, key)
		if key == "k1" {
			return "", errors.New("googleapi: Error 429: quota exceeded")
		}
		return "ok", nil
	})
	if err != nil || out != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if len(tried) != maxRetriesPerKey+1 {
		t.Fatalf("attempts = %v", tried)
	}
}

func TestWithRetryStopsOnOtherErrors(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), []string{"k1", "k2"}, func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("invalid argument")
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestWithRetryNoKeys(t *testing.T) {
	if _, err := WithRetry(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error without keys")
	}
}

func TestEnhanceFallsBackToOriginal(t *testing.T) {
	e := &Enhancer{keys: []string{"k"}, model: "m", generate: func(context.Context, string, string, string) (string, error) {
		return "", errors.New("boom")
	}}
	if got := e.Enhance(context.Background(), "a red apple"); got != "a red apple" {
		t.Fatalf("got %q", got)
	}

	var nilEnhancer *Enhancer
	if got := nilEnhancer.Enhance(context.Background(), "x"); got != "x" {
		t.Fatalf("nil enhancer changed prompt: %q", got)
	}
}

func TestEnhanceTrimsModelOutput(t *testing.T) {
	var sent string
	e := &Enhancer{keys: []string{"k"}, model: "m", generate: func(_ context.Context, _, _, prompt string) (string, error) {
		sent = prompt
		return "  \"a glossy red apple, studio light\"\n", nil
	}}
	if got := e.Enhance(context.Background(), "a red apple"); got != "a glossy red apple, studio light" {
		t.Fatalf("got %q", got)
	}
	if !strings.HasSuffix(sent, "a red apple") {
		t.Fatalf("instruction did not carry prompt: %q", sent)
	}
}
