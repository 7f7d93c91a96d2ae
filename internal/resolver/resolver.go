// Package resolver turns a user photo into a fully populated footballer match.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kozaktomas/lookalike/internal/ai"
	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
)

// ScorePrefix is prepended to the reasoning when the score comes from the
// local face comparison instead of the oracle.
const ScorePrefix = "Based on facial feature analysis: "

// Source tells where a resolved record came from.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

type Classifier interface {
	Classify(ctx context.Context, photo []byte) (*match.Record, error)
}

type FallbackPicker interface {
	Pick() *match.Record
}

type PortraitFinder interface {
	FindPortrait(ctx context.Context, name string) (string, bool)
}

type StatsFinder interface {
	FindStats(ctx context.Context, name string) (*match.Stats, bool)
}

type Comparator interface {
	Compare(ctx context.Context, photo []byte, portraitURL string) (int, bool, error)
}

// Outcome describes which steps contributed to a resolved record.
type Outcome struct {
	Source          Source        `json:"source"`
	OracleError     string        `json:"oracleError,omitempty"`
	PortraitFound   bool          `json:"portraitFound"`
	StatsReplaced   bool          `json:"statsReplaced"`
	ScoreOverridden bool          `json:"scoreOverridden"`
	Duration        time.Duration `json:"-"`
}

// Resolver runs the classification and enrichment steps in a fixed order.
// Portraits, Stats and Compare are optional; a nil collaborator skips its step.
type Resolver struct {
	classifier Classifier
	fallback   FallbackPicker
	portraits  PortraitFinder
	stats      StatsFinder
	compare    Comparator
	metrics    *Metrics
	logger     *slog.Logger
}

type Option func(*Resolver)

func WithPortraits(p PortraitFinder) Option { return func(r *Resolver) { r.portraits = p } }
func WithStats(s StatsFinder) Option        { return func(r *Resolver) { r.stats = s } }
func WithComparator(c Comparator) Option    { return func(r *Resolver) { r.compare = c } }
func WithMetrics(m *Metrics) Option         { return func(r *Resolver) { r.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(r *Resolver) { r.logger = l } }

func New(classifier Classifier, fallback FallbackPicker, opts ...Option) *Resolver {
	r := &Resolver{
		classifier: classifier,
		fallback:   fallback,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "resolver"))
	return r
}

// Resolve returns a match for photo. The only error is
// facematch.ErrNoFaceDetected; every other failure degrades into a fallback
// match or a less enriched record.
func (r *Resolver) Resolve(ctx context.Context, photo []byte) (*match.Record, error) {
	rec, _, err := r.ResolveDetailed(ctx, photo)
	return rec, err
}

// ResolveDetailed is Resolve plus a description of how the record was built.
func (r *Resolver) ResolveDetailed(ctx context.Context, photo []byte) (*match.Record, *Outcome, error) {
	start := time.Now()
	out := &Outcome{Source: SourceOracle}

	rec, err := r.classify(ctx, photo)
	if err != nil {
		out.Source = SourceFallback
		out.OracleError = err.Error()
		rec = r.fallback.Pick()
		rec.Normalize()
		out.Duration = time.Since(start)

		r.logger.Warn("oracle failed, using fallback match",
			slog.String("error", err.Error()), slog.String("player", rec.PlayerName))
		r.metrics.step("oracle", oracleFailure(err))
		r.metrics.resolved(string(SourceFallback), out.Duration.Seconds())
		return rec, out, nil
	}

	rec.PlayerImageURLs = []string{}
	portrait := ""
	if r.portraits != nil {
		if u, ok := r.portraits.FindPortrait(ctx, rec.PlayerName); ok {
			portrait = u
			rec.PlayerImageURLs = []string{u}
			out.PortraitFound = true
		}
		r.metrics.step("portrait", hitOrMiss(out.PortraitFound))
	}

	if r.stats != nil {
		if s, ok := r.stats.FindStats(ctx, rec.PlayerName); ok && s != nil {
			rec.Stats = s.Complete()
			out.StatsReplaced = true
		}
		r.metrics.step("stats", hitOrMiss(out.StatsReplaced))
	}

	if portrait != "" && r.compare != nil {
		score, ok, err := r.compare.Compare(ctx, photo, portrait)
		switch {
		case errors.Is(err, facematch.ErrNoFaceDetected):
			r.metrics.step("compare", "no_face")
			r.metrics.resolved("no_face", time.Since(start).Seconds())
			return nil, nil, facematch.ErrNoFaceDetected
		case err != nil:
			r.logger.Warn("face comparison failed", slog.String("error", err.Error()))
			r.metrics.step("compare", "error")
		case ok:
			rec.SimilarityScore = max(0, min(100, score))
			rec.Reasoning = ScorePrefix + rec.Reasoning
			out.ScoreOverridden = true
			r.metrics.step("compare", "hit")
		default:
			r.metrics.step("compare", "miss")
		}
	}

	rec.Normalize()
	out.Duration = time.Since(start)
	r.metrics.resolved(string(SourceOracle), out.Duration.Seconds())

	r.logger.Info("match resolved",
		slog.String("player", rec.PlayerName),
		slog.Int("score", rec.SimilarityScore),
		slog.Bool("portrait", out.PortraitFound),
		slog.Bool("stats", out.StatsReplaced),
		slog.Bool("face_score", out.ScoreOverridden),
		slog.Duration("took", out.Duration))
	return rec, out, nil
}

func (r *Resolver) classify(ctx context.Context, photo []byte) (*match.Record, error) {
	rec, err := r.classifier.Classify(ctx, photo)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("classifier returned no record")
	}
	return rec, nil
}

// oracleFailure labels a classify error; anything that is not an oracle
// response error (timeouts, a nil record) is "other".
func oracleFailure(err error) string {
	if kind, ok := ai.KindOf(err); ok {
		return string(kind)
	}
	return "other"
}

func hitOrMiss(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}
