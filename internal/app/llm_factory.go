package app

import (
	"context"
	"fmt"

	"github.com/tobenna/aria/internal/config"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/assistant"
)

// NewProvider builds the reply provider named in config. The pipeline
// is provider-agnostic; this is the only place backends are compared.
func NewProvider(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (assistant.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai", "":
		if cfg.LLM.OpenAIApiKey == "" {
			return nil, fmt.Errorf("llm provider openai requires open_ai_api_key")
		}
		logger.Infof("using openai reply provider")
		return assistant.NewOpenAI(cfg.LLM.OpenAIApiKey, cfg.LLM.Model), nil

	case "gemini":
		if cfg.LLM.GeminiApiKey == "" {
			return nil, fmt.Errorf("llm provider gemini requires gemini_api_key")
		}
		logger.Infof("using gemini reply provider")
		return assistant.NewGemini(ctx, cfg.LLM.GeminiApiKey, cfg.LLM.Model)

	case "ollama":
		if len(cfg.LLM.OllamaURLs) == 0 {
			return nil, fmt.Errorf("llm provider ollama requires at least one url")
		}
		logger.Infof("using ollama reply provider with %d hosts", len(cfg.LLM.OllamaURLs))
		return assistant.NewOllama(cfg.LLM.OllamaURLs, cfg.LLM.Model)

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
