package llm

import (
	"fmt"

	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

// NewProvider builds the provider named by LLM_PROVIDER.
func NewProvider(cfg *config.Config, logger *zap.Logger) (ports.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "", "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			Timeout:    cfg.LLMTimeout,
			MaxRetries: 2,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", domain.ErrLLMConfig, cfg.LLMProvider)
	}
}
