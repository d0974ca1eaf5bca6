package mainconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/wolfman30/storage-assistant/internal/completion"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// NewLLMClient builds the configured provider, wrapped in a fallback when a
// second provider is configured. A missing primary credential is not fatal:
// it returns nil and the engine answers with its fixed apology.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) completion.LLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	primary, err := llmProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		logger.Error("primary LLM provider unavailable", "provider", cfg.LLMProvider, "error", err)
		primary = nil
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary
	}
	fallback, err := llmProvider(ctx, cfg.LLMFallbackProvider, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback LLM provider unavailable", "provider", cfg.LLMFallbackProvider, "error", err)
		return primary
	}
	if primary == nil {
		return fallback
	}
	logger.Info("LLM fallback enabled", "primary", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	return completion.NewFallbackLLMClient(primary, fallback, logger)
}

func llmProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (completion.LLMClient, error) {
	switch name {
	case "openai", "":
		client, err := completion.NewOpenAILLMClient(completion.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, completion.ErrMissingCredential
		}
		client, err := completion.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "bedrock":
		if awsCfg == nil || cfg.BedrockModelID == "" {
			return nil, completion.ErrMissingCredential
		}
		return completion.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
}
