package llm

import (
	"context"
	"fmt"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// NewLLMService creates the extraction backend selected by configuration.
// It returns (nil, nil) when the provider is "none" or no credentials are
// configured. Callers then fall back to pattern-only extraction.
func NewLLMService(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch cfg.LLM.Provider {
	case common.LLMProviderNone:
		logger.Info().Msg("LLM provider disabled, using pattern extraction only")
		return nil, nil

	case common.LLMProviderClaude, "":
		if cfg.Claude.APIKey == "" {
			logger.Warn().Msg("No Claude API key configured, using pattern extraction only")
			return nil, nil
		}
		service, err := NewClaudeService(&cfg.Claude, logger)
		if err != nil {
			return nil, err
		}
		return service, nil

	case common.LLMProviderGemini:
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("No Gemini API key configured, using pattern extraction only")
			return nil, nil
		}
		service, err := NewGeminiService(ctx, &cfg.Gemini, logger)
		if err != nil {
			return nil, err
		}
		return service, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
