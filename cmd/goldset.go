package cmd

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/disambiguator/internal/config"
	"github.com/lehigh-university-libraries/disambiguator/internal/corpus"
	"github.com/lehigh-university-libraries/disambiguator/internal/evaluation"
	"github.com/lehigh-university-libraries/disambiguator/internal/runner"
	"github.com/spf13/cobra"
)

func newGoldsetCmd() *cobra.Command {
	var corpusPath string
	var output string
	var minMentions int
	var limit int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "goldset",
		Short: "Build an ORCID gold set from a mention corpus",
		Long: `Build the evaluation ground truth: every mention carrying a valid ORCID is
grouped by ORCID, groups below the minimum mention count are dropped, and the
resulting clusters are written as JSON.`,
		Example: `  disambiguator goldset --crossref-authors authors.json --output goldset.json

  # Require at least 3 mentions per ORCID cluster
  disambiguator goldset --crossref-authors authors.json --min-mentions 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(verbose, false)

			pubs, err := corpus.NewLoader(corpusPath).Load(limit)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(runner.ExitConfig)
			}
			gs := evaluation.BuildGoldSet(pubs, minMentions)
			if err := gs.Save(output); err != nil {
				return err
			}
			fmt.Printf("Gold set written to %s (%d clusters, %d mentions)\n",
				output, len(gs.Clusters), len(gs.Mentions))
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "crossref-authors", "", "Path to the author mention corpus (required)")
	cmd.Flags().StringVar(&output, "output", "goldset.json", "Output path for the gold set")
	cmd.Flags().IntVar(&minMentions, "min-mentions", config.DefaultMinMentions, "Minimum mentions per ORCID cluster")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum publications to read (0 for all)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	_ = cmd.MarkFlagRequired("crossref-authors")
	return cmd
}
