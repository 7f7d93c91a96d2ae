package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/lookalike/internal/match"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultTimeout     = 30 * time.Second
	// maxParseAttempts bounds how often a malformed answer is sent back for correction.
	maxParseAttempts = 2
)

// Options configures an oracle provider.
type Options struct {
	Model        string
	BaseURL      string // overrides the API endpoint, used by tests
	MaxImageSize int
	Timeout      time.Duration
	Pricing      RequestPricing
	Capture      *Capture
	Logger       *slog.Logger
}

func (o *Options) withDefaults(model string) {
	if o.Model == "" {
		o.Model = model
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type GeminiProvider struct {
	usageTracker
	client *genai.Client
	opts   Options
	logger *slog.Logger
	genCfg *genai.GenerateContentConfig
}

func NewGeminiProvider(ctx context.Context, apiKey string, opts Options) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini oracle")
	}
	opts.withDefaults(defaultGeminiModel)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Portrait comparisons of real people trip the default filters; the prompt only asks for a lookalike.
	safety := []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	}

	return &GeminiProvider{
		usageTracker: usageTracker{pricing: opts.Pricing},
		client:       client,
		opts:         opts,
		logger:       opts.Logger.With(slog.String("component", "oracle"), slog.String("provider", "gemini")),
		genCfg: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			SafetySettings:   safety,
		},
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.opts.Model
}

func (p *GeminiProvider) Classify(ctx context.Context, photo []byte) (*match.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	data, mimeType := preparePhoto(photo, p.opts.MaxImageSize, p.logger)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildLookalikePrompt()},
				{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			},
		},
	}

	var lastErr error
	for attempt := range maxParseAttempts {
		result, err := p.client.Models.GenerateContent(ctx, p.opts.Model, contents, p.genCfg)
		if err != nil {
			return nil, oracleError(p.Name(), FailureTransport, err)
		}

		if result.UsageMetadata != nil {
			p.track(int64(result.UsageMetadata.PromptTokenCount), int64(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return nil, oracleError(p.Name(), FailureEmpty, errors.New("no analysis result returned (blocked or empty)"))
		}
		if _, err := p.opts.Capture.Save(p.Name(), content); err != nil {
			p.logger.Warn("failed to capture response", slog.String("error", err.Error()))
		}

		rec, err := ParseMatchResponse(p.Name(), content)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		var oe *OracleResponseError
		if !errors.As(err, &oe) || oe.Kind != FailureMalformed {
			return nil, err
		}

		p.logger.Debug("malformed oracle JSON, asking for a correction", slog.Int("attempt", attempt+1))
		contents = append(contents,
			&genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: content}},
			},
			&genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: fmt.Sprintf("JSON parse error: %v. Reply again with only the corrected JSON object.", oe.Cause)}},
			},
		)
	}

	return nil, lastErr
}
