package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/lehigh-university-libraries/disambiguator/internal/evaluation"
	"github.com/lehigh-university-libraries/disambiguator/internal/runner"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	var resultsPath string
	var goldsetPath string
	var output string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a clustering against an ORCID gold set",
		Long: `Join the cluster assignments of a finished run against an ORCID gold set and
report B-cubed and pairwise precision, recall, and F1. Mentions present in only
one of the two sides are excluded and counted.`,
		Example: `  disambiguator eval --results results/results.json --goldset goldset.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(verbose, false)

			predicted, err := loadAssignments(resultsPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(runner.ExitConfig)
			}
			gs, err := evaluation.LoadGoldSet(goldsetPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(runner.ExitConfig)
			}

			metrics := evaluation.Evaluate(predicted, gs.Mentions)
			printMetrics(metrics)

			if output != "" {
				data, err := json.MarshalIndent(metrics, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal metrics: %w", err)
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
				fmt.Printf("\nMetrics written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Path to results.json from a run (required)")
	cmd.Flags().StringVar(&goldsetPath, "goldset", "", "Path to the ORCID gold set (required)")
	cmd.Flags().StringVar(&output, "output", "", "Optional path for the metrics JSON")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	_ = cmd.MarkFlagRequired("results")
	_ = cmd.MarkFlagRequired("goldset")
	return cmd
}

func loadAssignments(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var results runner.Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return results.Assignments, nil
}

func printMetrics(m evaluation.Metrics) {
	header := color.New(color.Bold)
	header.Println("Evaluation against ORCID gold set")
	fmt.Printf("  common mentions:    %d\n", m.CommonMentions)
	fmt.Printf("  excluded:           %d predicted-only, %d gold-only\n", m.OnlyInPredicted, m.OnlyInGold)
	fmt.Printf("  clusters:           %d predicted, %d gold\n", m.PredictedClusters, m.GoldClusters)
	fmt.Println()
	fmt.Printf("  pairwise:  P=%.4f R=%.4f F1=%.4f (tp=%d fp=%d fn=%d)\n",
		m.Pairwise.Precision, m.Pairwise.Recall, m.Pairwise.F1,
		m.TruePairs, m.FalsePairs, m.MissPairs)
	fmt.Printf("  b-cubed:   P=%.4f R=%.4f F1=%.4f\n",
		m.BCubed.Precision, m.BCubed.Recall, m.BCubed.F1)
}
