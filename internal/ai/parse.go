package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kozaktomas/lookalike/internal/match"
)

// matchPayload is the wire shape requested from the oracle.
type matchPayload struct {
	Error           string      `json:"error"`
	PlayerName      string      `json:"playerName"`
	SimilarityScore *scoreValue `json:"similarityScore"`
	Club            string      `json:"club"`
	Position        string      `json:"position"`
	Reasoning       string      `json:"reasoning"`
	Stats           struct {
		Appearances statValue `json:"appearances"`
		Goals       statValue `json:"goals"`
		Assists     statValue `json:"assists"`
	} `json:"stats"`
}

// scoreValue accepts 85, 85.4 or "85".
type scoreValue int

func (s *scoreValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = scoreValue(math.Round(f))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("similarityScore: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(str), "%"), 64)
	if err != nil {
		return fmt.Errorf("similarityScore %q is not numeric", str)
	}
	*s = scoreValue(math.Round(f))
	return nil
}

// statValue accepts "100+", 100 or null.
type statValue string

func (v *statValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*v = statValue(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stat value: %w", err)
	}
	*v = statValue(n.String())
	return nil
}

// StripCodeFences removes markdown code fences the oracle may wrap its JSON in.
func StripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseMatchResponse turns raw oracle text into a validated match record.
// Stats the oracle left out are reported as N/A; every other field is required.
func ParseMatchResponse(provider, text string) (*match.Record, error) {
	body := StripCodeFences(text)
	if body == "" {
		return nil, oracleError(provider, FailureEmpty, errors.New("no content in response"))
	}

	var p matchPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, oracleError(provider, FailureMalformed, err)
	}
	if strings.TrimSpace(p.Error) != "" {
		return nil, oracleError(provider, FailureExplicitError, errors.New(p.Error))
	}
	if p.SimilarityScore == nil {
		return nil, oracleError(provider, FailureSchema, errors.New("missing similarityScore"))
	}

	rec := &match.Record{
		PlayerName:      strings.TrimSpace(p.PlayerName),
		SimilarityScore: int(*p.SimilarityScore),
		Club:            strings.TrimSpace(p.Club),
		Position:        strings.TrimSpace(p.Position),
		Reasoning:       strings.TrimSpace(p.Reasoning),
		Stats: match.Stats{
			Appearances: string(p.Stats.Appearances),
			Goals:       string(p.Stats.Goals),
			Assists:     string(p.Stats.Assists),
		},
	}
	// Portraits from the oracle are never trusted; enrichment supplies them.
	rec.Normalize()

	if err := rec.Validate(); err != nil {
		return nil, oracleError(provider, FailureSchema, err)
	}
	return rec, nil
}
