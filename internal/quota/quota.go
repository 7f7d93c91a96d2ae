// Package quota caps calls to a metered external API per UTC day.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultDailyLimit matches the free tier of the Google Custom Search API.
	DefaultDailyLimit = 100
	dateLayout        = "2006-01-02"
)

// Counter is the persisted state: how many calls were made on Date.
type Counter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Limit int    `json:"limit"`
}

// Remaining returns how many calls are still allowed.
func (c *Counter) Remaining() int {
	return max(0, c.Limit-c.Count)
}

// Store persists a Counter. Load returns (nil, nil) when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (*Counter, error)
	Save(ctx context.Context, c *Counter) error
}

// Guard admits at most limit calls per UTC day.
type Guard struct {
	store  Store
	limit  int
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

func NewGuard(store Store, limit int, logger *slog.Logger) *Guard {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		limit:  limit,
		now:    time.Now,
		logger: logger.With(slog.String("component", "quota")),
	}
}

// WithClock replaces the time source, for tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Allow consumes one call if the daily limit has not been reached. Any store
// failure refuses the call.
func (g *Guard) Allow(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.current(ctx)
	if err != nil {
		g.logger.Warn("quota store unavailable, refusing call", slog.String("error", err.Error()))
		return false
	}
	if c.Count >= c.Limit {
		g.logger.Debug("daily quota exhausted", slog.String("date", c.Date), slog.Int("limit", c.Limit))
		return false
	}

	c.Count++
	if err := g.store.Save(ctx, c); err != nil {
		g.logger.Warn("failed to persist quota, refusing call", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Status returns today's counter without consuming a call.
func (g *Guard) Status(ctx context.Context) (*Counter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current(ctx)
}

// current loads the stored counter, starting a fresh one on a new UTC day.
func (g *Guard) current(ctx context.Context) (*Counter, error) {
	today := g.now().UTC().Format(dateLayout)

	c, err := g.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading quota: %w", err)
	}
	if c == nil || c.Date != today {
		c = &Counter{Date: today}
	}
	c.Limit = g.limit
	return c, nil
}
