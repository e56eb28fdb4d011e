package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestConvertMessages(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "extract fields"},
		{Role: "user", Content: "document text"},
		{Role: "assistant", Content: "{}"},
	}

	claude, system, err := convertMessagesToClaude(messages)
	require.NoError(t, err)
	assert.Equal(t, "extract fields", system)
	assert.Len(t, claude, 2)

	gemini, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)
	assert.Equal(t, "extract fields", system)
	require.Len(t, gemini, 2)
	assert.Equal(t, "user", gemini[0].Role)
	assert.Equal(t, "model", gemini[1].Role)

	_, _, err = convertMessagesToClaude([]interfaces.Message{{Role: "system", Content: "x"}})
	assert.Error(t, err)
	_, _, err = convertMessagesToGemini(nil)
	assert.Error(t, err)
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), true},
		{errors.New("exceeded your current quota"), true},
		{errors.New(`{"type":"rate_limit_error"}`), true},
		{errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimitError(tt.err))
	}
}

func TestExtractRetryDelayAndBackoff(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 12500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("boom")))

	cfg := NewDefaultRetryConfig()
	assert.Equal(t, 45*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 17500*time.Millisecond, cfg.CalculateBackoff(0, 12500*time.Millisecond))
	assert.Equal(t, 90*time.Second, cfg.CalculateBackoff(5, 0))
}

func TestCallWithRetry(t *testing.T) {
	logger := arbor.NewLogger()
	cfg := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}

	calls := 0
	text, err := callWithRetry(context.Background(), cfg, logger, "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429 too many requests")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)

	// Non rate-limit errors are not retried
	calls = 0
	_, err = callWithRetry(context.Background(), cfg, logger, "test", func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("invalid request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewLLMService_NoCredentials(t *testing.T) {
	logger := arbor.NewLogger()
	ctx := context.Background()

	cfg := common.NewDefaultConfig()
	cfg.Claude.APIKey = ""
	cfg.LLM.Provider = common.LLMProviderClaude
	service, err := NewLLMService(ctx, cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, service)

	cfg.LLM.Provider = common.LLMProviderNone
	cfg.Claude.APIKey = "sk-test"
	service, err = NewLLMService(ctx, cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, service)

	cfg.LLM.Provider = "openai"
	_, err = NewLLMService(ctx, cfg, logger)
	assert.Error(t, err)
}

func TestNewLLMService_Claude(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.Provider = common.LLMProviderClaude
	cfg.Claude.APIKey = "sk-test"

	service, err := NewLLMService(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, service)
	assert.Equal(t, "claude", service.Name())
	assert.NoError(t, service.Close())
}

type stubService struct {
	err error
}

func (s *stubService) Chat(ctx context.Context, messages []interfaces.Message, opts interfaces.ChatOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "{}", nil
}
func (s *stubService) Name() string { return "stub" }
func (s *stubService) Close() error { return nil }

type callRecorder struct {
	calls map[bool]int
}

func (r *callRecorder) ObserveRun(*models.RunResult)               {}
func (r *callRecorder) ObserveSuccession(*models.SuccessionResult) {}
func (r *callRecorder) ObserveBackendCall(provider string, ok bool) {
	r.calls[ok]++
}

func TestInstrumentedService(t *testing.T) {
	assert.Nil(t, NewInstrumentedService(nil, &callRecorder{}))

	recorder := &callRecorder{calls: map[bool]int{}}
	ok := NewInstrumentedService(&stubService{}, recorder)
	_, err := ok.Chat(context.Background(), nil, interfaces.ChatOptions{})
	require.NoError(t, err)

	failing := NewInstrumentedService(&stubService{err: assert.AnError}, recorder)
	_, err = failing.Chat(context.Background(), nil, interfaces.ChatOptions{})
	require.Error(t, err)

	assert.Equal(t, 1, recorder.calls[true])
	assert.Equal(t, 1, recorder.calls[false])
	assert.Equal(t, "stub", ok.Name())
}
