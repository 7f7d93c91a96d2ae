package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lookalike/internal/config"
	"github.com/kozaktomas/lookalike/internal/logging"
)

var (
	captureDir string
	logLevel   string

	logger    *slog.Logger = slog.Default()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "lookalike",
	Short: "Find the professional footballer a face looks like",
	Long: `Lookalike sends a photo to a vision model, which names the footballer
the person resembles. The answer is enriched with a Wikipedia portrait and
career stats, and the similarity score is recomputed from face embeddings.
Every external failure degrades gracefully; a curated fallback match is
returned when the model cannot answer at all.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := config.Load().Log
		if logLevel != "" {
			logCfg.Level = logLevel
		}
		logger, logCloser = logging.New(logCfg)
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save raw oracle responses for testing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
