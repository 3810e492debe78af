package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/disambiguator/internal/config"
	"github.com/lehigh-university-libraries/disambiguator/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cfg := config.Default()
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run incremental disambiguation over a mention corpus",
		Long: `Run the full pipeline: deduplicate incoming publications, resolve every
author mention with the three-way decision engine, and write the decision
trace, review queue, cluster assignments, and run manifest.`,
		Example: `  # Baseline scoring with default thresholds
  disambiguator run --crossref-authors authors.json --output results

  # Fellegi-Sunter scoring with a custom parameter table
  disambiguator run --crossref-authors authors.json --mode fs --mu-table mu.json

  # Restrict the run to a DOI list, paced at 5 publications/second
  disambiguator run --crossref-authors authors.json --dois dois.json --rate 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(cfg.Verbose, cfg.Debug)

			if configFile != "" {
				fileCfg := cfg
				if err := fileCfg.LoadFile(configFile); err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(runner.ExitConfig)
				}
				// file values apply only where no explicit flag was given
				applyUnchanged(cmd, &cfg, fileCfg)
			}
			cfg.AcceptSet = cfg.AcceptSet || cmd.Flags().Changed("accept-threshold")
			cfg.RejectSet = cfg.RejectSet || cmd.Flags().Changed("reject-threshold")
			if cfg.RunID == "" {
				cfg.RunID = uuid.NewString()
			}
			if err := cfg.Finalize(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(runner.ExitConfig)
			}
			if cfg.CrossrefAuthors == "" {
				fmt.Fprintln(os.Stderr, "--crossref-authors is required")
				os.Exit(runner.ExitConfig)
			}

			if code := runner.Run(cmd.Context(), cfg); code != runner.ExitOK {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.CrossrefAuthors, "crossref-authors", "", "Path to the author mention corpus (.json, .jsonl, or .parquet)")
	cmd.Flags().StringVar(&cfg.DOIs, "dois", "", "Path to a JSON array of DOIs restricting and ordering the run")
	cmd.Flags().StringVar(&cfg.MUTablePath, "mu-table", "", "Path to the Fellegi-Sunter m/u parameter table (fs mode)")
	cmd.Flags().StringVar(&cfg.Mode, "mode", cfg.Mode, "Scoring backend: baseline or fs")
	cmd.Flags().Float64Var(&cfg.AcceptThreshold, "accept-threshold", 0, "Score at or above which a mention merges (default per mode)")
	cmd.Flags().Float64Var(&cfg.RejectThreshold, "reject-threshold", 0, "Score at or below which a new profile is created (default per mode)")
	cmd.Flags().Float64Var(&cfg.TitleThreshold, "title-threshold", cfg.TitleThreshold, "Fuzzy title similarity treated as a duplicate")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Run seed recorded in the manifest")
	cmd.Flags().StringVar(&cfg.RunID, "run-id", "", "Run identifier (default: random UUID)")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 0, "Maximum publications to ingest (0 for all)")
	cmd.Flags().IntVar(&cfg.MaxWorkers, "max-workers", cfg.MaxWorkers, "Fetch worker pool size")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", 0, "Publications per second fed to the pipeline (0 for unpaced)")
	cmd.Flags().StringVar(&cfg.TraceJSONL, "trace-jsonl", "", "Decision trace path (default: <output>/trace.jsonl)")
	cmd.Flags().StringVar(&cfg.ReviewJSONL, "review-jsonl", "", "Review queue path (default: <output>/review.jsonl)")
	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory for results, manifest, and report")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file overlaying the defaults")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Log per-candidate scores")

	_ = cmd.MarkFlagRequired("crossref-authors")
	return cmd
}

// applyUnchanged copies file-config values into cfg for every field whose
// flag the user did not set explicitly, so flags always win over the file.
func applyUnchanged(cmd *cobra.Command, cfg *config.RunConfig, file config.RunConfig) {
	changed := cmd.Flags().Changed
	if !changed("crossref-authors") {
		cfg.CrossrefAuthors = file.CrossrefAuthors
	}
	if !changed("dois") {
		cfg.DOIs = file.DOIs
	}
	if !changed("mu-table") {
		cfg.MUTablePath = file.MUTablePath
	}
	if !changed("mode") {
		cfg.Mode = file.Mode
	}
	if !changed("accept-threshold") && file.AcceptThreshold != 0 {
		cfg.AcceptThreshold = file.AcceptThreshold
		cfg.AcceptSet = true
	}
	if !changed("reject-threshold") && file.RejectThreshold != 0 {
		cfg.RejectThreshold = file.RejectThreshold
		cfg.RejectSet = true
	}
	if !changed("title-threshold") {
		cfg.TitleThreshold = file.TitleThreshold
	}
	if !changed("seed") {
		cfg.Seed = file.Seed
	}
	if !changed("run-id") {
		cfg.RunID = file.RunID
	}
	if !changed("limit") {
		cfg.Limit = file.Limit
	}
	if !changed("max-workers") {
		cfg.MaxWorkers = file.MaxWorkers
	}
	if !changed("rate") {
		cfg.Rate = file.Rate
	}
	if !changed("trace-jsonl") {
		cfg.TraceJSONL = file.TraceJSONL
	}
	if !changed("review-jsonl") {
		cfg.ReviewJSONL = file.ReviewJSONL
	}
	if !changed("output") {
		cfg.OutputDir = file.OutputDir
	}
	if file.RedactionSalt != "" {
		cfg.RedactionSalt = file.RedactionSalt
	}
}
