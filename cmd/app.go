package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/lookalike/internal/ai"
	"github.com/kozaktomas/lookalike/internal/config"
	"github.com/kozaktomas/lookalike/internal/embedding"
	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
	"github.com/kozaktomas/lookalike/internal/quota"
	"github.com/kozaktomas/lookalike/internal/reference"
	"github.com/kozaktomas/lookalike/internal/resolver"
	"github.com/kozaktomas/lookalike/internal/web/handlers"
)

// app holds every long-lived collaborator built from the environment.
type app struct {
	cfg        *config.Config
	resolver   *resolver.Resolver
	classifier ai.Classifier // nil when the oracle could not be configured
	guard      *quota.Guard  // nil without Google image search
	embedding  *embedding.Client
	loader     *facematch.ModelLoader
	redis      *redis.Client
	registry   *prometheus.Registry
}

// newApp wires the pipeline. Only an invalid configuration is fatal; a missing
// oracle key still yields a working resolver that answers with fallbacks.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	capture, err := ai.NewCapture(captureDir)
	if err != nil {
		return nil, err
	}

	var classifier resolver.Classifier = unavailableOracle{}
	if c, err := ai.New(ctx, cfg, capture, logger); err != nil {
		logger.Warn("oracle unavailable, every request will use a fallback match", slog.String("error", err.Error()))
	} else {
		a.classifier = c
		classifier = c
	}

	fallbacks, err := match.NewDefaultFallbackTable(uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("loading fallback matches: %w", err)
	}
	logger.Debug("fallback matches loaded", slog.Int("count", fallbacks.Len()))

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
	}

	var cache reference.Cache = reference.NewMemoryCache()
	if a.redis != nil {
		cache = reference.NewRedisCache(a.redis, "lookalike:", logger)
	}

	wiki := reference.NewWikipediaWithEndpoint(cfg.Reference.WikipediaURL, cfg.Reference.Timeout, logger)
	// Google first while quota lasts, then Wikipedia.
	var sources []reference.PortraitSource
	if cfg.Google.Enabled() {
		var store quota.Store = quota.NewFileStore(cfg.Quota.Path)
		if a.redis != nil {
			store = quota.NewRedisStore(a.redis, quota.DefaultRedisKey)
		}
		a.guard = quota.NewGuard(store, cfg.Quota.DailyLimit, logger)
		google := reference.NewGoogleImages(cfg.Google.APIKey, cfg.Google.CX, cfg.Reference.Timeout, logger)
		sources = append(sources, reference.NewGooglePortraits(google, a.guard))
	}
	sources = append(sources, reference.NewWikipediaPortraits(wiki, cfg.Reference.ThumbSize))

	a.embedding = embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.ModelURL, cfg.Embedding.Timeout)
	a.loader = facematch.NewModelLoader(a.embedding, logger)
	comparator := facematch.NewComparator(a.loader, a.embedding, facematch.ComparatorOptions{
		ZeroDistance: cfg.Embedding.ZeroDistance,
		HTTPClient:   &http.Client{Timeout: cfg.Reference.Timeout},
		Logger:       logger,
	})

	a.resolver = resolver.New(classifier, fallbacks,
		resolver.WithPortraits(reference.NewPortraitFinder(sources, cache, cfg.Reference.CacheTTL, logger)),
		resolver.WithStats(reference.NewStatsFinder(wiki, cache, cfg.Reference.CacheTTL, logger)),
		resolver.WithComparator(comparator),
		resolver.WithMetrics(resolver.NewMetrics(a.registry)),
		resolver.WithLogger(logger),
	)
	return a, nil
}

// quotaReporter returns nil (not a typed nil) when no metered source is wired.
func (a *app) quotaReporter() handlers.QuotaReporter {
	if a.guard == nil {
		return nil
	}
	return a.guard
}

func (a *app) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"embedding": a.embedding.Ping,
		"oracle": func(context.Context) error {
			if a.classifier == nil {
				return errOracleUnavailable
			}
			return nil
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

// logUsage logs the oracle spend accumulated by this process.
func (a *app) logUsage() {
	type usageReporter interface{ GetUsage() ai.Usage }
	if u, ok := a.classifier.(usageReporter); ok {
		usage := u.GetUsage()
		logger.Info("oracle usage",
			slog.Int("input_tokens", usage.InputTokens),
			slog.Int("output_tokens", usage.OutputTokens),
			slog.String("cost_usd", fmt.Sprintf("%.4f", usage.TotalCost)))
	}
}

func (a *app) Close() error {
	a.logUsage()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
