package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleImages queries the Custom Search JSON API in image mode.
type GoogleImages struct {
	apiKey   string
	cx       string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	endpoint string
}

func NewGoogleImages(apiKey, cx string, timeout time.Duration, logger *slog.Logger) *GoogleImages {
	return NewGoogleImagesWithEndpoint(defaultGoogleEndpoint, apiKey, cx, timeout, logger)
}

// NewGoogleImagesWithEndpoint creates a client with a custom endpoint (for testing).
func NewGoogleImagesWithEndpoint(endpoint, apiKey, cx string, timeout time.Duration, logger *slog.Logger) *GoogleImages {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleImages{
		apiKey:   apiKey,
		cx:       cx,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(1, 1),
		logger:   logger.With(slog.String("source", "google")),
		endpoint: endpoint,
	}
}

type googleSearchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SearchImage returns the link of the first image result for query.
func (g *GoogleImages) SearchImage(ctx context.Context, query string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", &UnavailableError{Source: "google", Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	params := url.Values{
		"key":        {g.apiKey},
		"cx":         {g.cx},
		"q":          {query},
		"searchType": {"image"},
		"num":        {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &UnavailableError{Source: "google", Cause: g.redact(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out googleSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &UnavailableError{Source: "google", Cause: fmt.Errorf("HTTP %d: parsing response: %w", resp.StatusCode, err)}
	}
	if out.Error != nil {
		return "", &UnavailableError{Source: "google", Cause: fmt.Errorf("API error %d: %s", out.Error.Code, out.Error.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Source: "google", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if len(out.Items) == 0 || out.Items[0].Link == "" {
		return "", ErrNotFound
	}
	return out.Items[0].Link, nil
}

// redact drops the request URL from transport errors, since its query string
// carries the API key.
func (g *GoogleImages) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = fmt.Errorf("%s %s: %w", ue.Op, g.endpoint, ue.Err)
	}
	if g.apiKey == "" || !strings.Contains(err.Error(), g.apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), g.apiKey, "REDACTED"))
}
