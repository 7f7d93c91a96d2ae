package match

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fallbacks.yaml
var fallbacksYAML []byte

// MinFallbacks is the smallest table size accepted by NewFallbackTable.
const MinFallbacks = 3

type fallbackFile struct {
	Matches []Record `yaml:"matches"`
}

// FallbackTable picks one of a fixed set of pre-enriched records.
type FallbackTable struct {
	mu      sync.Mutex
	rng     *rand.Rand
	records []Record
}

// NewFallbackTable validates records and returns a table drawing from rng.
// Every record must be complete and carry a portrait.
func NewFallbackTable(records []Record, rng *rand.Rand) (*FallbackTable, error) {
	if len(records) < MinFallbacks {
		return nil, fmt.Errorf("fallback table needs at least %d records, got %d", MinFallbacks, len(records))
	}
	if rng == nil {
		return nil, errors.New("fallback table needs a random source")
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("fallback %d (%s): %w", i, records[i].PlayerName, err)
		}
		if len(records[i].PlayerImageURLs) == 0 {
			return nil, fmt.Errorf("fallback %d (%s): missing portrait", i, records[i].PlayerName)
		}
	}
	return &FallbackTable{
		rng:     rng,
		records: append([]Record(nil), records...),
	}, nil
}

// DefaultFallbacks returns the embedded fallback records.
func DefaultFallbacks() []Record {
	var f fallbackFile
	if err := yaml.Unmarshal(fallbacksYAML, &f); err != nil {
		// Embedded at build time; a parse failure is a programming error.
		panic("failed to unmarshal embedded fallbacks.yaml: " + err.Error())
	}
	return f.Matches
}

// NewDefaultFallbackTable builds a table from the embedded records seeded with seed.
func NewDefaultFallbackTable(seed uint64) (*FallbackTable, error) {
	return NewFallbackTable(DefaultFallbacks(), rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Pick returns a copy of a uniformly chosen record.
func (t *FallbackTable) Pick() *Record {
	t.mu.Lock()
	idx := t.rng.IntN(len(t.records))
	t.mu.Unlock()

	r := t.records[idx].Clone()
	r.Normalize()
	return r
}

// Len returns the number of records.
func (t *FallbackTable) Len() int {
	return len(t.records)
}

// Contains reports whether r matches one of the table's records by player name.
func (t *FallbackTable) Contains(r *Record) bool {
	for i := range t.records {
		if t.records[i].PlayerName == r.PlayerName {
			return true
		}
	}
	return false
}
