package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lookalike/internal/config"
	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/resolver"
)

var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Resolve every photo in a directory",
	Long: `Resolve every image (jpg, jpeg, png, gif, webp) in DIR.

Examples:
  lookalike batch ./selfies
  lookalike batch --concurrency 2 --json ./selfies > results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().Int("concurrency", 4, "Number of photos resolved in parallel")
	batchCmd.Flags().Bool("json", false, "Output as JSON")
}

var photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Results       []MatchResult `json:"results"`
	Photos        int           `json:"photos"`
	Fallbacks     int           `json:"fallbacks"`
	NoFace        int           `json:"noFace"`
	Errors        int           `json:"errors"`
	DurationMs    int64         `json:"durationMs"`
	DurationHuman string        `json:"-"`
}

func listPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(photoExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	concurrency := max(1, mustGetInt(cmd, "concurrency"))
	startTime := time.Now()

	files, err := listPhotos(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if jsonOutput {
			return outputJSON(BatchResult{Results: []MatchResult{}})
		}
		fmt.Println("No photos found.")
		return nil
	}

	a, err := newApp(cmd.Context(), config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Matching faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]MatchResult, len(files))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = resolveFile(cmd.Context(), a.resolver, file)
			if bar != nil {
				bar.Add(1)
			}
		}()
	}
	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	summary := BatchResult{
		Results:       results,
		Photos:        len(files),
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}
	for _, r := range results {
		switch {
		case r.Error == errNoFaceMessage:
			summary.NoFace++
		case r.Error != "":
			summary.Errors++
		case r.Outcome != nil && r.Outcome.Source == resolver.SourceFallback:
			summary.Fallbacks++
		}
	}

	if jsonOutput {
		return outputJSON(summary)
	}

	for _, r := range results {
		fmt.Printf("\n%s\n", filepath.Base(r.File))
		if r.Error != "" {
			fmt.Printf("  Error: %s\n", r.Error)
			continue
		}
		printMatch(r.Match, r.Outcome)
	}

	fmt.Println("\nBatch complete!")
	fmt.Printf("  Photos:     %d\n", summary.Photos)
	fmt.Printf("  Fallbacks:  %d\n", summary.Fallbacks)
	if summary.NoFace > 0 {
		fmt.Printf("  No face:    %d\n", summary.NoFace)
	}
	if summary.Errors > 0 {
		fmt.Printf("  Errors:     %d\n", summary.Errors)
	}
	fmt.Printf("  Duration:   %s\n", summary.DurationHuman)
	return nil
}

const errNoFaceMessage = "no face detected"

func resolveFile(ctx context.Context, r *resolver.Resolver, file string) MatchResult {
	photo, err := os.ReadFile(file)
	if err != nil {
		return MatchResult{File: file, Error: err.Error()}
	}
	rec, outcome, err := r.ResolveDetailed(ctx, photo)
	if errors.Is(err, facematch.ErrNoFaceDetected) {
		return MatchResult{File: file, Error: errNoFaceMessage}
	}
	if err != nil {
		logger.Error("resolve failed", slog.String("file", file), slog.String("error", err.Error()))
		return MatchResult{File: file, Error: err.Error()}
	}
	return MatchResult{File: file, Match: rec, Outcome: outcome}
}
