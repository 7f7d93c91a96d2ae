package reference

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
)

// Infobox fields, e.g. "| totalcaps = 1,047" or "|goals=704".
var (
	capsPattern    = regexp.MustCompile(`(?i)\|\s*(?:total)?caps\s*=\s*(\d[\d,]*)`)
	goalsPattern   = regexp.MustCompile(`(?i)\|\s*(?:total)?goals\s*=\s*(\d[\d,]*)`)
	assistsPattern = regexp.MustCompile(`(?i)\|\s*(?:total)?assists?\s*=\s*(\d[\d,]*)`)
)

// ExtractStats pulls career totals out of article wikitext. It reports ok
// only when at least two of appearances, goals and assists were found; the
// missing one is set to "N/A".
func ExtractStats(wikitext string) (*match.Stats, bool) {
	find := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(wikitext); m != nil {
			return strings.ReplaceAll(m[1], ",", "")
		}
		return ""
	}

	stats := match.Stats{
		Appearances: find(capsPattern),
		Goals:       find(goalsPattern),
		Assists:     find(assistsPattern),
	}
	if stats.Found() < 2 {
		return nil, false
	}
	complete := stats.Complete()
	return &complete, true
}

// StatsFinder looks up career statistics on Wikipedia.
type StatsFinder struct {
	wiki   *Wikipedia
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewStatsFinder(wiki *Wikipedia, cache Cache, ttl time.Duration, logger *slog.Logger) *StatsFinder {
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsFinder{
		wiki:   wiki,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "stats_finder")),
	}
}

// FindStats never fails: lookup errors and thin infoboxes both report ok=false.
func (f *StatsFinder) FindStats(ctx context.Context, name string) (*match.Stats, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	key := "stats:" + facematch.NormalizePersonName(name)
	if raw, ok := f.cache.Get(ctx, key); ok {
		var cached match.Stats
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Found() >= 2 {
			return &cached, true
		}
	}

	title, err := f.wiki.SearchTitle(ctx, name+" footballer")
	if err != nil {
		f.logFailure(name, "search", err)
		return nil, false
	}
	text, err := f.wiki.Wikitext(ctx, title)
	if err != nil {
		f.logFailure(name, "wikitext", err)
		return nil, false
	}

	stats, ok := ExtractStats(text)
	if !ok {
		f.logger.Debug("infobox has too few statistics", slog.String("player", name), slog.String("title", title))
		return nil, false
	}

	if data, err := json.Marshal(stats); err == nil {
		f.cache.Set(ctx, key, string(data), f.ttl)
	}
	return stats, true
}

func (f *StatsFinder) logFailure(name, step string, err error) {
	if errors.Is(err, ErrNotFound) {
		f.logger.Debug("no article for player", slog.String("player", name), slog.String("step", step))
		return
	}
	f.logger.Warn("stats lookup failed", slog.String("player", name), slog.String("step", step),
		slog.String("error", err.Error()))
}
