package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kozaktomas/lookalike/internal/ai"
	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oracleRecord() *match.Record {
	return &match.Record{
		PlayerName:      "Erling Haaland",
		SimilarityScore: 72,
		Club:            "Manchester City",
		Position:        "Striker",
		Reasoning:       "Same jawline.",
		Stats:           match.Stats{Appearances: "300+", Goals: "250+", Assists: "50+"},
		PlayerImageURLs: []string{},
	}
}

type fakeClassifier struct {
	rec   *match.Record
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, photo []byte) (*match.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.rec == nil {
		return nil, nil
	}
	return f.rec.Clone(), nil
}

type fakePortraits struct {
	url   string
	calls int
	names []string
}

func (f *fakePortraits) FindPortrait(ctx context.Context, name string) (string, bool) {
	f.calls++
	f.names = append(f.names, name)
	return f.url, f.url != ""
}

type fakeStats struct {
	stats *match.Stats
	calls int
}

func (f *fakeStats) FindStats(ctx context.Context, name string) (*match.Stats, bool) {
	f.calls++
	return f.stats, f.stats != nil
}

type fakeComparator struct {
	score int
	ok    bool
	err   error
	calls int
	url   string
}

func (f *fakeComparator) Compare(ctx context.Context, photo []byte, portraitURL string) (int, bool, error) {
	f.calls++
	f.url = portraitURL
	return f.score, f.ok, f.err
}

type fixture struct {
	classifier *fakeClassifier
	fallback   *match.FallbackTable
	portraits  *fakePortraits
	stats      *fakeStats
	compare    *fakeComparator
	registry   *prometheus.Registry
	metrics    *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := match.NewDefaultFallbackTable(7)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable: %v", err)
	}
	reg := prometheus.NewRegistry()
	return &fixture{
		classifier: &fakeClassifier{rec: oracleRecord()},
		fallback:   table,
		portraits:  &fakePortraits{},
		stats:      &fakeStats{},
		compare:    &fakeComparator{},
		registry:   reg,
		metrics:    NewMetrics(reg),
	}
}

func (f *fixture) resolver() *Resolver {
	return New(f.classifier, f.fallback,
		WithPortraits(f.portraits),
		WithStats(f.stats),
		WithComparator(f.compare),
		WithMetrics(f.metrics),
		WithLogger(discardLogger()),
	)
}

func (f *fixture) enrichmentCalls() int {
	return f.portraits.calls + f.stats.calls + f.compare.calls
}

func TestResolve_OracleFailureUsesFallback(t *testing.T) {
	failures := []struct {
		err   error
		label string
	}{
		{errors.New("dial tcp: connection refused"), "other"},
		{&ai.OracleResponseError{Provider: "gemini", Kind: ai.FailureMalformed, Cause: errors.New("bad json")}, "malformed"},
		{fmt.Errorf("classify: %w", &ai.OracleResponseError{Provider: "openai", Kind: ai.FailureSchema}), "schema"},
		{context.DeadlineExceeded, "other"},
	}

	for _, failure := range failures {
		t.Run(failure.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.classifier.err = failure.err

			rec, out, err := f.resolver().ResolveDetailed(context.Background(), []byte("photo"))
			if err != nil {
				t.Fatalf("ResolveDetailed must not fail on oracle errors, got %v", err)
			}
			if !f.fallback.Contains(rec) {
				t.Errorf("expected a fallback record, got %q", rec.PlayerName)
			}
			if out.Source != SourceFallback || out.OracleError == "" {
				t.Errorf("unexpected outcome %+v", out)
			}
			if n := f.enrichmentCalls(); n != 0 {
				t.Errorf("no enrichment may run after a fallback, got %d calls", n)
			}
			if err := rec.Validate(); err != nil {
				t.Errorf("fallback record invalid: %v", err)
			}
			if got := testutil.ToFloat64(f.metrics.resolutions.WithLabelValues("fallback")); got != 1 {
				t.Errorf("expected fallback counter 1, got %v", got)
			}
			if got := testutil.ToFloat64(f.metrics.enrichment.WithLabelValues("oracle", failure.label)); got != 1 {
				t.Errorf("expected oracle failure %q counted once, got %v", failure.label, got)
			}
		})
	}
}

func TestResolve_NilRecordUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.classifier.rec = nil

	rec, err := f.resolver().Resolve(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !f.fallback.Contains(rec) {
		t.Errorf("expected a fallback record, got %q", rec.PlayerName)
	}
}

func TestResolve_NoPortraitSkipsComparator(t *testing.T) {
	f := newFixture(t)

	rec, out, err := f.resolver().ResolveDetailed(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("ResolveDetailed: %v", err)
	}
	if rec.PlayerImageURLs == nil || len(rec.PlayerImageURLs) != 0 {
		t.Errorf("expected empty image list, got %#v", rec.PlayerImageURLs)
	}
	if f.compare.calls != 0 {
		t.Errorf("comparator must not run without a portrait, got %d calls", f.compare.calls)
	}
	if out.PortraitFound || out.ScoreOverridden {
		t.Errorf("unexpected outcome %+v", out)
	}
	if rec.SimilarityScore != 72 || rec.Reasoning != "Same jawline." {
		t.Errorf("oracle score and reasoning must be kept, got %d %q", rec.SimilarityScore, rec.Reasoning)
	}
	if f.portraits.names[0] != "Erling Haaland" {
		t.Errorf("portrait lookup should use the oracle's player name, got %q", f.portraits.names[0])
	}
}

func TestResolve_ComparatorNoFaceInPortraitKeepsOracleScore(t *testing.T) {
	f := newFixture(t)
	f.portraits.url = "https://img.example/haaland.jpg"
	f.compare.ok = false

	rec, out, err := f.resolver().ResolveDetailed(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("ResolveDetailed: %v", err)
	}
	if f.compare.calls != 1 || f.compare.url != "https://img.example/haaland.jpg" {
		t.Errorf("expected comparator with portrait URL, got %d calls url=%q", f.compare.calls, f.compare.url)
	}
	if rec.SimilarityScore != 72 || rec.Reasoning != "Same jawline." {
		t.Errorf("score and reasoning must be untouched, got %d %q", rec.SimilarityScore, rec.Reasoning)
	}
	if len(rec.PlayerImageURLs) != 1 || rec.PlayerImageURLs[0] != "https://img.example/haaland.jpg" {
		t.Errorf("unexpected images %v", rec.PlayerImageURLs)
	}
	if !out.PortraitFound || out.ScoreOverridden {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestResolve_ComparatorScoreOverrides(t *testing.T) {
	f := newFixture(t)
	f.portraits.url = "https://img.example/haaland.jpg"
	f.compare.score = 41
	f.compare.ok = true

	rec, out, err := f.resolver().ResolveDetailed(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("ResolveDetailed: %v", err)
	}
	if rec.SimilarityScore != 41 {
		t.Errorf("expected score 41, got %d", rec.SimilarityScore)
	}
	if !strings.HasPrefix(rec.Reasoning, ScorePrefix) || !strings.HasSuffix(rec.Reasoning, "Same jawline.") {
		t.Errorf("unexpected reasoning %q", rec.Reasoning)
	}
	if rec.Reasoning != ScorePrefix+"Same jawline." {
		t.Errorf("reasoning should be prefix plus original, got %q", rec.Reasoning)
	}
	if !out.ScoreOverridden {
		t.Error("expected ScoreOverridden")
	}
	if got := testutil.ToFloat64(f.metrics.enrichment.WithLabelValues("compare", "hit")); got != 1 {
		t.Errorf("expected compare hit counter 1, got %v", got)
	}
}

func TestResolve_NoFaceInUserPhotoPropagates(t *testing.T) {
	f := newFixture(t)
	f.portraits.url = "https://img.example/haaland.jpg"
	f.compare.err = facematch.ErrNoFaceDetected

	rec, err := f.resolver().Resolve(context.Background(), []byte("photo"))
	if !errors.Is(err, facematch.ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	if rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}
	if got := testutil.ToFloat64(f.metrics.resolutions.WithLabelValues("no_face")); got != 1 {
		t.Errorf("expected no_face counter 1, got %v", got)
	}
}

func TestResolve_WrappedNoFacePropagates(t *testing.T) {
	f := newFixture(t)
	f.portraits.url = "https://img.example/haaland.jpg"
	f.compare.err = fmt.Errorf("compare: %w", facematch.ErrNoFaceDetected)

	if _, err := f.resolver().Resolve(context.Background(), []byte("photo")); !errors.Is(err, facematch.ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestResolve_OtherComparatorErrorsAreSoft(t *testing.T) {
	f := newFixture(t)
	f.portraits.url = "https://img.example/haaland.jpg"
	f.compare.err = errors.New("embedding server exploded")

	rec, err := f.resolver().Resolve(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.SimilarityScore != 72 || rec.Reasoning != "Same jawline." {
		t.Errorf("score and reasoning must be untouched, got %d %q", rec.SimilarityScore, rec.Reasoning)
	}
}

func TestResolve_StatsReplaceWholesale(t *testing.T) {
	f := newFixture(t)
	f.stats.stats = &match.Stats{Appearances: "853", Goals: "704"}

	rec, out, err := f.resolver().ResolveDetailed(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("ResolveDetailed: %v", err)
	}
	want := match.Stats{Appearances: "853", Goals: "704", Assists: match.NotAvailable}
	if rec.Stats != want {
		t.Errorf("expected %+v, got %+v", want, rec.Stats)
	}
	if !out.StatsReplaced {
		t.Error("expected StatsReplaced")
	}
}

func TestResolve_StatsMissKeepsOracleStats(t *testing.T) {
	f := newFixture(t)

	rec, err := f.resolver().Resolve(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Stats != oracleRecord().Stats {
		t.Errorf("oracle stats must be kept, got %+v", rec.Stats)
	}
}

func TestResolve_OptionalCollaborators(t *testing.T) {
	table, err := match.NewDefaultFallbackTable(1)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable: %v", err)
	}
	r := New(&fakeClassifier{rec: oracleRecord()}, table, WithLogger(discardLogger()))

	rec, out, err := r.ResolveDetailed(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("ResolveDetailed: %v", err)
	}
	if out.Source != SourceOracle || out.PortraitFound || out.StatsReplaced || out.ScoreOverridden {
		t.Errorf("unexpected outcome %+v", out)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("record invalid: %v", err)
	}
}

// Every combination of collaborator behavior yields either a valid record or
// exactly ErrNoFaceDetected.
func TestResolve_AlwaysSettles(t *testing.T) {
	oracleErrs := []error{nil, errors.New("down")}
	portraits := []string{"", "https://img.example/p.jpg"}
	stats := []*match.Stats{nil, {Appearances: "1", Goals: "2"}}
	compares := []fakeComparator{
		{},
		{score: 88, ok: true},
		{err: facematch.ErrNoFaceDetected},
		{err: errors.New("boom")},
	}

	for _, oe := range oracleErrs {
		for _, p := range portraits {
			for _, s := range stats {
				for _, c := range compares {
					name := fmt.Sprintf("oracleErr=%v portrait=%q stats=%v compare=%+v", oe != nil, p, s != nil, c)
					t.Run(name, func(t *testing.T) {
						f := newFixture(t)
						f.classifier.err = oe
						f.portraits.url = p
						f.stats.stats = s
						cmp := c
						f.compare = &cmp

						rec, err := f.resolver().Resolve(context.Background(), []byte("photo"))
						if err != nil {
							if !errors.Is(err, facematch.ErrNoFaceDetected) {
								t.Fatalf("unexpected error %v", err)
							}
							if p == "" || oe != nil {
								t.Fatal("ErrNoFaceDetected requires a portrait comparison")
							}
							return
						}
						if err := rec.Validate(); err != nil {
							t.Errorf("invalid record: %v", err)
						}
						if rec.PlayerImageURLs == nil {
							t.Error("playerImageUrls must never be nil")
						}
					})
				}
			}
		}
	}
}
