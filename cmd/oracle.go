package cmd

import (
	"context"
	"errors"

	"github.com/kozaktomas/lookalike/internal/match"
)

var errOracleUnavailable = errors.New("oracle not configured")

// unavailableOracle stands in for a classifier that could not be built, so the
// resolver still answers with fallback matches.
type unavailableOracle struct{}

func (unavailableOracle) Classify(context.Context, []byte) (*match.Record, error) {
	return nil, errOracleUnavailable
}
