package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/lookalike/internal/config"
)

// New builds the oracle selected by cfg.Oracle.Provider.
func New(ctx context.Context, cfg *config.Config, capture *Capture, logger *slog.Logger) (Classifier, error) {
	opts := Options{
		MaxImageSize: cfg.Oracle.MaxImage,
		Timeout:      cfg.Oracle.Timeout,
		Capture:      capture,
		Logger:       logger,
	}

	switch cfg.Oracle.Provider {
	case "", "gemini":
		opts.Model = cfg.Gemini.Model
		opts.Pricing = pricingFor(cfg, cfg.Gemini.Model)
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, opts)
	case "openai":
		opts.Model = cfg.OpenAI.Model
		opts.BaseURL = cfg.OpenAI.BaseURL
		opts.Pricing = pricingFor(cfg, cfg.OpenAI.Model)
		return NewOpenAIProvider(cfg.OpenAI.Token, opts)
	case "ollama":
		opts.Model = cfg.Ollama.Model
		return NewOllamaProvider(cfg.Ollama.URL, opts), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q (expected gemini, openai or ollama)", cfg.Oracle.Provider)
	}
}

func pricingFor(cfg *config.Config, model string) RequestPricing {
	p := cfg.GetModelPricing(model).Standard
	return RequestPricing{Input: p.Input, Output: p.Output}
}
