package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/lookalike/internal/config"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's Google image search quota",
	RunE:  runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().Bool("json", false, "Output as JSON")
}

func runQuota(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	a, err := newApp(cmd.Context(), config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.guard == nil {
		fmt.Println("Google image search is not configured (set GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX).")
		return nil
	}

	c, err := a.guard.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading quota: %w", err)
	}
	if jsonOutput {
		return outputJSON(c)
	}
	fmt.Printf("Date:      %s (UTC)\n", c.Date)
	fmt.Printf("Used:      %d / %d\n", c.Count, c.Limit)
	fmt.Printf("Remaining: %d\n", c.Remaining())
	return nil
}
