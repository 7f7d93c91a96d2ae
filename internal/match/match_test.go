package match

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func validRecord() Record {
	return Record{
		PlayerName:      "Luka Modric",
		SimilarityScore: 72,
		Club:            "AC Milan",
		Position:        "Midfielder",
		Reasoning:       "Same sharp cheekbones.",
		Stats:           Stats{Appearances: "700+", Goals: "100+", Assists: "150+"},
		PlayerImageURLs: []string{"https://example.com/modric.jpg"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr string
	}{
		{"valid", func(r *Record) {}, ""},
		{"no images is fine", func(r *Record) { r.PlayerImageURLs = nil }, ""},
		{"missing name", func(r *Record) { r.PlayerName = "  " }, "playerName"},
		{"missing club", func(r *Record) { r.Club = "" }, "club"},
		{"missing position", func(r *Record) { r.Position = "" }, "position"},
		{"missing reasoning", func(r *Record) { r.Reasoning = "" }, "reasoning"},
		{"missing goals", func(r *Record) { r.Stats.Goals = "" }, "stats.goals"},
		{"score too high", func(r *Record) { r.SimilarityScore = 101 }, "out of range"},
		{"score negative", func(r *Record) { r.SimilarityScore = -1 }, "out of range"},
		{"empty image url", func(r *Record) { r.PlayerImageURLs = []string{""} }, "playerImageUrls[0]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)
			err := r.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestNormalize_EmptyImagesSerializeAsArray(t *testing.T) {
	r := validRecord()
	r.PlayerImageURLs = nil
	r.Stats.Assists = ""

	r.Normalize()

	data, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"playerImageUrls":[]`) {
		t.Errorf("expected empty array, got %s", data)
	}
	if r.Stats.Assists != NotAvailable {
		t.Errorf("expected missing assists to become N/A, got %q", r.Stats.Assists)
	}
}

func TestStatsFound(t *testing.T) {
	tests := []struct {
		stats Stats
		want  int
	}{
		{Stats{"1", "2", "3"}, 3},
		{Stats{"1", "", "3"}, 2},
		{Stats{"1", NotAvailable, NotAvailable}, 1},
		{Stats{}, 0},
	}
	for _, tc := range tests {
		if got := tc.stats.Found(); got != tc.want {
			t.Errorf("Found(%+v) = %d; want %d", tc.stats, got, tc.want)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	r := validRecord()
	c := r.Clone()
	c.PlayerImageURLs[0] = "changed"
	if r.PlayerImageURLs[0] == "changed" {
		t.Error("clone shares image slice with original")
	}
}

func TestDefaultFallbacks_AreComplete(t *testing.T) {
	records := DefaultFallbacks()
	if len(records) < MinFallbacks {
		t.Fatalf("expected at least %d fallbacks, got %d", MinFallbacks, len(records))
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			t.Errorf("fallback %s invalid: %v", r.PlayerName, err)
		}
		if len(r.PlayerImageURLs) != 1 {
			t.Errorf("fallback %s should have exactly one portrait, got %d", r.PlayerName, len(r.PlayerImageURLs))
		}
	}
}

func TestNewFallbackTable_Rejects(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	if _, err := NewFallbackTable(DefaultFallbacks()[:2], rng); err == nil {
		t.Error("expected error for fewer than 3 records")
	}

	if _, err := NewFallbackTable(DefaultFallbacks(), nil); err == nil {
		t.Error("expected error for nil random source")
	}

	records := DefaultFallbacks()
	records[1].PlayerImageURLs = nil
	if _, err := NewFallbackTable(records, rng); err == nil {
		t.Error("expected error for fallback without portrait")
	}
}

func TestFallbackTable_PickIsSeedable(t *testing.T) {
	a, err := NewDefaultFallbackTable(42)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable failed: %v", err)
	}
	b, err := NewDefaultFallbackTable(42)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable failed: %v", err)
	}

	for i := range 20 {
		ra, rb := a.Pick(), b.Pick()
		if ra.PlayerName != rb.PlayerName {
			t.Fatalf("pick %d differs for same seed: %s vs %s", i, ra.PlayerName, rb.PlayerName)
		}
	}
}

func TestFallbackTable_PickCoversAllRecords(t *testing.T) {
	table, err := NewDefaultFallbackTable(7)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable failed: %v", err)
	}

	seen := make(map[string]int)
	for range 300 {
		r := table.Pick()
		if err := r.Validate(); err != nil {
			t.Fatalf("picked invalid record: %v", err)
		}
		if !table.Contains(r) {
			t.Fatalf("picked record %s not in table", r.PlayerName)
		}
		seen[r.PlayerName]++
	}
	if len(seen) != table.Len() {
		t.Errorf("expected all %d records to be picked, saw %v", table.Len(), seen)
	}
}

func TestFallbackTable_PickReturnsCopy(t *testing.T) {
	table, err := NewDefaultFallbackTable(3)
	if err != nil {
		t.Fatalf("NewDefaultFallbackTable failed: %v", err)
	}
	r := table.Pick()
	r.PlayerImageURLs[0] = "mutated"
	r.Reasoning = "mutated"

	for range 50 {
		p := table.Pick()
		if p.Reasoning == "mutated" || p.PlayerImageURLs[0] == "mutated" {
			t.Fatal("mutation of a picked record leaked into the table")
		}
	}
}
