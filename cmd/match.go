package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/lookalike/internal/config"
	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
	"github.com/kozaktomas/lookalike/internal/resolver"
)

var matchCmd = &cobra.Command{
	Use:   "match PHOTO",
	Short: "Find the footballer lookalike for a single photo",
	Long: `Resolve one photo and print the matched footballer.

Examples:
  lookalike match selfie.jpg
  lookalike match --json selfie.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// MatchResult is the JSON shape printed by match and batch.
type MatchResult struct {
	File    string            `json:"file,omitempty"`
	Match   *match.Record     `json:"match,omitempty"`
	Outcome *resolver.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	photo, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	a, err := newApp(cmd.Context(), config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	rec, outcome, err := a.resolver.ResolveDetailed(cmd.Context(), photo)
	if errors.Is(err, facematch.ErrNoFaceDetected) {
		return errors.New("no face detected in the photo, try another one")
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(MatchResult{File: args[0], Match: rec, Outcome: outcome})
	}
	printMatch(rec, outcome)
	return nil
}

func printMatch(rec *match.Record, outcome *resolver.Outcome) {
	fmt.Printf("%s (%s, %s)\n", rec.PlayerName, rec.Position, rec.Club)
	fmt.Printf("  Similarity: %d%%\n", rec.SimilarityScore)
	fmt.Printf("  Why:        %s\n", rec.Reasoning)
	fmt.Printf("  Career:     %s apps, %s goals, %s assists\n", rec.Stats.Appearances, rec.Stats.Goals, rec.Stats.Assists)
	if len(rec.PlayerImageURLs) > 0 {
		fmt.Printf("  Portrait:   %s\n", rec.PlayerImageURLs[0])
	}

	var notes []string
	if outcome.Source == resolver.SourceFallback {
		notes = append(notes, "fallback match ("+outcome.OracleError+")")
	}
	if outcome.ScoreOverridden {
		notes = append(notes, "score from face embeddings")
	}
	if outcome.StatsReplaced {
		notes = append(notes, "stats from Wikipedia")
	}
	if len(notes) > 0 {
		fmt.Printf("  Notes:      %s\n", strings.Join(notes, "; "))
	}
}
