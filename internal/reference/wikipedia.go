package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultWikipediaEndpoint = "https://en.wikipedia.org/w/api.php"
	userAgent                = "lookalike/1.0 (https://github.com/kozaktomas/lookalike)"
	maxResponseBytes         = 4 << 20
)

// Wikipedia is a small client for the MediaWiki action API.
type Wikipedia struct {
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	endpoint string
}

// NewWikipedia creates a client for English Wikipedia.
func NewWikipedia(timeout time.Duration, logger *slog.Logger) *Wikipedia {
	return NewWikipediaWithEndpoint(defaultWikipediaEndpoint, timeout, logger)
}

// NewWikipediaWithEndpoint creates a client with a custom endpoint (for testing).
func NewWikipediaWithEndpoint(endpoint string, timeout time.Duration, logger *slog.Logger) *Wikipedia {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wikipedia{
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(5, 1),
		logger:   logger.With(slog.String("source", "wikipedia")),
		endpoint: endpoint,
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type pagesResponse struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Thumbnail *struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// SearchTitle returns the title of the best full-text match for query.
func (w *Wikipedia) SearchTitle(ctx context.Context, query string) (string, error) {
	var resp searchResponse
	err := w.get(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"1"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 || resp.Query.Search[0].Title == "" {
		return "", ErrNotFound
	}
	return resp.Query.Search[0].Title, nil
}

// Thumbnail returns the lead image of a page scaled to size pixels.
func (w *Wikipedia) Thumbnail(ctx context.Context, title string, size int) (string, error) {
	if size <= 0 {
		size = 500
	}
	var resp pagesResponse
	err := w.get(ctx, url.Values{
		"titles":      {title},
		"prop":        {"pageimages"},
		"pithumbsize": {strconv.Itoa(size)},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Pages) == 0 {
		return "", ErrNotFound
	}
	page := resp.Query.Pages[0]
	if page.Missing || page.Thumbnail == nil || page.Thumbnail.Source == "" {
		return "", ErrNotFound
	}
	return page.Thumbnail.Source, nil
}

// Wikitext returns the current source of a page.
func (w *Wikipedia) Wikitext(ctx context.Context, title string) (string, error) {
	var resp pagesResponse
	err := w.get(ctx, url.Values{
		"titles":  {title},
		"prop":    {"revisions"},
		"rvprop":  {"content"},
		"rvslots": {"main"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Pages) == 0 {
		return "", ErrNotFound
	}
	page := resp.Query.Pages[0]
	if page.Missing || len(page.Revisions) == 0 {
		return "", ErrNotFound
	}
	return page.Revisions[0].Slots.Main.Content, nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, out any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return &UnavailableError{Source: "wikipedia", Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := w.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	w.logger.Debug("wikipedia request", slog.String("prop", params.Get("prop")), slog.String("list", params.Get("list")))

	resp, err := w.client.Do(req)
	if err != nil {
		return &UnavailableError{Source: "wikipedia", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UnavailableError{Source: "wikipedia", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UnavailableError{Source: "wikipedia", Cause: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}
