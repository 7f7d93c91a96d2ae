package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/lookalike/internal/match"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2-vision:11b"
)

// OllamaProvider classifies with a local vision model served by Ollama.
type OllamaProvider struct {
	usageTracker
	baseURL string
	client  *http.Client
	opts    Options
	logger  *slog.Logger
}

func NewOllamaProvider(baseURL string, opts Options) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	opts.withDefaults(defaultOllamaModel)
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "oracle"), slog.String("provider", "ollama")),
	}
}

func (p *OllamaProvider) Name() string {
	return p.opts.Model
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64 encoded images
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func (p *OllamaProvider) Classify(ctx context.Context, photo []byte) (*match.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	data, _ := preparePhoto(photo, p.opts.MaxImageSize, p.logger)
	messages := []ollamaMessage{
		{Role: "system", Content: buildLookalikePrompt()},
		{
			Role:    "user",
			Content: "Which footballer does this person look like?",
			Images:  []string{base64.StdEncoding.EncodeToString(data)},
		},
	}

	var lastErr error
	for attempt := range maxParseAttempts {
		resp, err := p.sendRequest(ctx, messages)
		if err != nil {
			return nil, oracleError(p.Name(), FailureTransport, err)
		}
		p.track(int64(resp.PromptEvalCount), int64(resp.EvalCount))

		content := resp.Message.Content
		if _, err := p.opts.Capture.Save(p.Name(), content); err != nil {
			p.logger.Warn("failed to capture response", slog.String("error", err.Error()))
		}

		rec, err := ParseMatchResponse(p.Name(), extractJSON(content))
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
			ollamaMessage{Role: "assistant", Content: content},
			ollamaMessage{
				Role:    "user",
				Content: fmt.Sprintf("JSON parse error: %v. Reply again with only the corrected JSON object.", oe.Cause),
			},
		)
	}

	return nil, lastErr
}

func (p *OllamaProvider) sendRequest(ctx context.Context, messages []ollamaMessage) (*ollamaResponse, error) {
	jsonBody, err := json.Marshal(ollamaRequest{
		Model:    p.opts.Model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options:  ollamaOptions{NumPredict: 500},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &ollamaResp, nil
}

// extractJSON cuts the first balanced JSON object out of chatty model output.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return content[start:]
}
