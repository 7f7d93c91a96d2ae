package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/lookalike/internal/match"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = string(openai.ChatModelGPT4_1Mini)

type OpenAIProvider struct {
	usageTracker
	client *openai.Client
	opts   Options
	logger *slog.Logger
}

func NewOpenAIProvider(apiKey string, opts Options) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_TOKEN is required for the openai oracle")
	}
	opts.withDefaults(defaultOpenAIModel)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	return &OpenAIProvider{
		usageTracker: usageTracker{pricing: opts.Pricing},
		client:       &client,
		opts:         opts,
		logger:       opts.Logger.With(slog.String("component", "oracle"), slog.String("provider", "openai")),
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return p.opts.Model
}

func (p *OpenAIProvider) Classify(ctx context.Context, photo []byte) (*match.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	data, mimeType := preparePhoto(photo, p.opts.MaxImageSize, p.logger)
	imageURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(buildLookalikePrompt()),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Which footballer does this person look like?"),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := range maxParseAttempts {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(p.opts.Model),
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(500),
		})
		if err != nil {
			return nil, oracleError(p.Name(), FailureTransport, err)
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			p.track(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return nil, oracleError(p.Name(), FailureEmpty, errors.New("no response from OpenAI"))
		}
		content := resp.Choices[0].Message.Content
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
		messages = append(messages,
			openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(content),
					},
				},
			},
			openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf("JSON parse error: %v. Reply again with only the corrected JSON object.", oe.Cause)),
					},
				},
			},
		)
	}

	return nil, lastErr
}
