package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

type fakeLLM struct {
	got  []llms.MessageContent
	resp *llms.ContentResponse
	err  error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	return f.resp, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateRecordsUsage(t *testing.T) {
	fake := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "sprint plan",
		GenerationInfo: map[string]any{"InputTokens": 12, "OutputTokens": int64(30)},
	}}}}
	mc := metrics.NewCollector()
	m := NewFromLLM(fake, "test-model", mc)

	got, err := m.GenerateWithSystem(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "sprint plan" {
		t.Errorf("got %q", got)
	}
	if len(fake.got) != 2 || fake.got[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("unexpected messages %+v", fake.got)
	}

	snap := mc.Snapshot().LLMGenerate
	if snap == nil || snap.Count != 1 {
		t.Fatalf("expected one llm_generate sample, got %+v", snap)
	}
	if *snap.TotalInputTokens != 12 || *snap.TotalOutputTokens != 30 {
		t.Errorf("tokens = %d/%d", *snap.TotalInputTokens, *snap.TotalOutputTokens)
	}
}

func TestGenerateErrors(t *testing.T) {
	m := NewFromLLM(&fakeLLM{err: errors.New("HTTP 401: invalid api key")}, "x", nil)
	_, err := m.Generate(context.Background(), "hi")
	if !errors.Is(err, ErrFatalAPI) {
		t.Errorf("expected ErrFatalAPI, got %v", err)
	}

	m = NewFromLLM(&fakeLLM{resp: &llms.ContentResponse{}}, "x", nil)
	if _, err := m.Generate(context.Background(), "hi"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestNewModelRejectsMissingKeys(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderHuggingFace, "gpt-local"} {
		_, err := NewModel(context.Background(), config.Config{LLMProvider: provider, LLMModel: "m"}, nil)
		if err == nil {
			t.Errorf("%s: expected error", provider)
		}
	}
}
