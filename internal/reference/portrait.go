package reference

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/lookalike/internal/facematch"
)

var errQuotaExhausted = errors.New("daily search quota exhausted")

// PortraitSource finds one portrait URL for a player name.
type PortraitSource interface {
	Name() string
	Portrait(ctx context.Context, name string) (string, error)
}

// QuotaGuard admits or refuses a metered call.
type QuotaGuard interface {
	Allow(ctx context.Context) bool
}

// WikipediaPortraits uses the lead image of the player's Wikipedia article.
type WikipediaPortraits struct {
	wiki      *Wikipedia
	thumbSize int
}

func NewWikipediaPortraits(wiki *Wikipedia, thumbSize int) *WikipediaPortraits {
	return &WikipediaPortraits{wiki: wiki, thumbSize: thumbSize}
}

func (s *WikipediaPortraits) Name() string { return "wikipedia" }

func (s *WikipediaPortraits) Portrait(ctx context.Context, name string) (string, error) {
	title, err := s.wiki.SearchTitle(ctx, name+" footballer")
	if err != nil {
		return "", err
	}
	return s.wiki.Thumbnail(ctx, title, s.thumbSize)
}

// GooglePortraits runs an image search, spending one unit of the daily quota per call.
type GooglePortraits struct {
	google *GoogleImages
	guard  QuotaGuard
}

func NewGooglePortraits(google *GoogleImages, guard QuotaGuard) *GooglePortraits {
	return &GooglePortraits{google: google, guard: guard}
}

func (s *GooglePortraits) Name() string { return "google" }

func (s *GooglePortraits) Portrait(ctx context.Context, name string) (string, error) {
	if !s.guard.Allow(ctx) {
		return "", errQuotaExhausted
	}
	return s.google.SearchImage(ctx, name+" football portrait professional")
}

// PortraitFinder asks its sources in order and returns the first usable URL.
type PortraitFinder struct {
	sources []PortraitSource
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
}

func NewPortraitFinder(sources []PortraitSource, cache Cache, ttl time.Duration, logger *slog.Logger) *PortraitFinder {
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortraitFinder{
		sources: sources,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "portrait_finder")),
	}
}

// FindPortrait never fails: every source error is logged and treated as "no portrait".
func (f *PortraitFinder) FindPortrait(ctx context.Context, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	key := "portrait:" + facematch.NormalizePersonName(name)
	if u, ok := f.cache.Get(ctx, key); ok && validImageURL(u) {
		return u, true
	}

	for _, src := range f.sources {
		u, err := src.Portrait(ctx, name)
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, errQuotaExhausted):
			f.logger.Debug("no portrait from source", slog.String("source", src.Name()),
				slog.String("player", name), slog.String("reason", err.Error()))
			continue
		case err != nil:
			f.logger.Warn("portrait lookup failed", slog.String("source", src.Name()),
				slog.String("player", name), slog.String("error", err.Error()))
			continue
		case !validImageURL(u):
			f.logger.Warn("source returned unusable portrait URL", slog.String("source", src.Name()),
				slog.String("url", u))
			continue
		}

		f.cache.Set(ctx, key, u, f.ttl)
		return u, true
	}
	return "", false
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
