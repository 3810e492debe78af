package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disambiguator",
		Short: "Incremental author name disambiguation over bibliographic records",
		Long: `Disambiguator resolves author mentions in a stream of bibliographic records
against persistent author profiles using Fellegi-Sunter record-linkage scoring
with a dual-threshold three-way decision policy.

Every decision is appended to a redacted, deterministic JSONL trace; uncertain
decisions are routed to a human-review queue. An ORCID gold set can be built
from the same corpus and used to score the final clustering with B-cubed and
pairwise F1.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newGoldsetCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}

// configureLogging sets the process-wide slog level from the verbosity flags.
func configureLogging(verbose, debug bool) {
	level := slog.LevelInfo
	if verbose || debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
