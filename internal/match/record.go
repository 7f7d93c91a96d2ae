// Package match defines the lookalike match record returned to callers
// and the fixed fallback table used when the oracle is unavailable.
package match

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable marks a stat the reference source did not provide.
const NotAvailable = "N/A"

// Stats holds career totals as display strings ("123", "800+", "N/A").
type Stats struct {
	Appearances string `json:"appearances" yaml:"appearances"`
	Goals       string `json:"goals" yaml:"goals"`
	Assists     string `json:"assists" yaml:"assists"`
}

// Record is the resolved lookalike match.
type Record struct {
	PlayerName      string   `json:"playerName" yaml:"playerName"`
	SimilarityScore int      `json:"similarityScore" yaml:"similarityScore"`
	Club            string   `json:"club" yaml:"club"`
	Position        string   `json:"position" yaml:"position"`
	Reasoning       string   `json:"reasoning" yaml:"reasoning"`
	Stats           Stats    `json:"stats" yaml:"stats"`
	PlayerImageURLs []string `json:"playerImageUrls" yaml:"playerImageUrls"`
}

// ErrInvalidRecord is wrapped by every Validate failure.
var ErrInvalidRecord = errors.New("invalid match record")

// Validate checks that every required field is present and the score is in [0,100].
func (r *Record) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"playerName", r.PlayerName},
		{"club", r.Club},
		{"position", r.Position},
		{"reasoning", r.Reasoning},
		{"stats.appearances", r.Stats.Appearances},
		{"stats.goals", r.Stats.Goals},
		{"stats.assists", r.Stats.Assists},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidRecord, f.name)
		}
	}
	if r.SimilarityScore < 0 || r.SimilarityScore > 100 {
		return fmt.Errorf("%w: similarityScore %d out of range", ErrInvalidRecord, r.SimilarityScore)
	}
	for i, u := range r.PlayerImageURLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("%w: empty playerImageUrls[%d]", ErrInvalidRecord, i)
		}
	}
	return nil
}

// Normalize fills holes left by optional enrichment so the record always
// serializes fully. playerImageUrls becomes [] rather than null.
func (r *Record) Normalize() {
	if r.PlayerImageURLs == nil {
		r.PlayerImageURLs = []string{}
	}
	r.Stats.fillMissing()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.PlayerImageURLs = append([]string{}, r.PlayerImageURLs...)
	return &c
}

// Found counts how many of the three stats carry a real value.
func (s Stats) Found() int {
	n := 0
	for _, v := range []string{s.Appearances, s.Goals, s.Assists} {
		if v != "" && v != NotAvailable {
			n++
		}
	}
	return n
}

func (s *Stats) fillMissing() {
	if s.Appearances == "" {
		s.Appearances = NotAvailable
	}
	if s.Goals == "" {
		s.Goals = NotAvailable
	}
	if s.Assists == "" {
		s.Assists = NotAvailable
	}
}

// Complete returns a copy with every missing field set to NotAvailable.
func (s Stats) Complete() Stats {
	s.fillMissing()
	return s
}
