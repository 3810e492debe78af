// Package runner orchestrates one disambiguation run: corpus loading, the
// bounded fetch worker pool, the single decision lane, and the run manifest.
// The manifest is written on every exit path once the trace streams are open;
// a run that fails before that (output directory, MU table, corpus or DOI
// list, trace streams) returns its exit code without writing one.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/lehigh-university-libraries/disambiguator/internal/config"
	"github.com/lehigh-university-libraries/disambiguator/internal/corpus"
	"github.com/lehigh-university-libraries/disambiguator/internal/dedup"
	"github.com/lehigh-university-libraries/disambiguator/internal/engine"
	"github.com/lehigh-university-libraries/disambiguator/internal/index"
	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/score"
	"github.com/lehigh-university-libraries/disambiguator/internal/trace"
	"golang.org/x/sync/errgroup"
)

// Exit codes of the run command.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitConfig        = 2
	ExitContradiction = 3
	ExitCancelled     = 130
)

// Results is the final cluster assignment written to results.json.
type Results struct {
	RunID       string            `json:"run_id"`
	Assignments map[string]string `json:"assignments"`
	Unknown     []string          `json:"unknown"`
	Counts      map[string]int    `json:"counts"`
}

// Run executes the full pipeline and returns the process exit code.
func Run(ctx context.Context, cfg config.RunConfig) int {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		return ExitError
	}

	// MU table: fatal config error before any output stream is opened
	var table score.MUTable
	if cfg.Mode == score.ModeFS {
		if cfg.MUTablePath != "" {
			var err error
			table, err = score.LoadMUTable(cfg.MUTablePath)
			if err != nil {
				slog.Error("invalid mu table", "error", err)
				return ExitConfig
			}
		} else {
			table = score.DefaultMUTable()
		}
	}

	pubs, err := corpus.NewLoader(cfg.CrossrefAuthors).Load(cfg.Limit)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		return ExitConfig
	}
	var dois []string
	if cfg.DOIs != "" {
		dois, err = corpus.LoadDOIs(cfg.DOIs)
		if err != nil {
			slog.Error("failed to load dois", "error", err)
			return ExitConfig
		}
	}

	tracePath := cfg.TraceJSONL
	if tracePath == "" {
		tracePath = filepath.Join(cfg.OutputDir, "trace.jsonl")
	}
	reviewPath := cfg.ReviewJSONL
	if reviewPath == "" {
		reviewPath = filepath.Join(cfg.OutputDir, "review.jsonl")
	}
	writer, err := trace.NewWriter(tracePath, reviewPath, cfg.RunID, cfg.RedactionSalt,
		cfg.Mode, cfg.AcceptThreshold, cfg.RejectThreshold)
	if err != nil {
		slog.Error("failed to open trace streams", "error", err)
		return ExitError
	}
	defer writer.Close()

	idx := index.New()
	dd := dedup.New(cfg.TitleThreshold)
	eng := engine.New(cfg, idx, score.NewScorer(table), writer)

	manifest := trace.Manifest{
		RunID:      cfg.RunID,
		Version:    trace.Version,
		Backend:    cfg.Mode,
		Seed:       cfg.Seed,
		ConfigHash: trace.ConfigHash(cfg),
		Thresholds: map[string]float64{"accept": cfg.AcceptThreshold, "reject": cfg.RejectThreshold},
	}

	state, failedDOIs, runErr := pump(ctx, cfg, pubs, dois, dd, eng)

	manifest.PublicationsSubmitted = state.submitted
	manifest.MentionsProcessed = state.mentions
	manifest.SkippedMentions = eng.SkippedMentions()
	manifest.FailedDOIs = failedDOIs
	manifest.Decisions = decisionCounts(writer.Counts())
	manifest.Dedup = dd.Stats()
	manifest.Index = idx.Stats()

	exit := ExitOK
	switch {
	case runErr == nil:
		manifest.Status = trace.StatusOK
	case errors.Is(runErr, context.Canceled):
		manifest.Status = trace.StatusCancelled
		manifest.Cancelled = true
		exit = ExitCancelled
	default:
		var contradiction *engine.ContradictionError
		manifest.Status = trace.StatusAborted
		manifest.Reason = runErr.Error()
		if errors.As(runErr, &contradiction) {
			exit = ExitContradiction
		} else {
			exit = ExitError
		}
	}

	// trace and review are flushed before any manifest reaches disk,
	// whatever the exit path
	if err := writer.Flush(); err != nil {
		slog.Error("failed to flush trace", "error", err)
		if exit == ExitOK {
			exit = ExitError
		}
	}
	if exit == ExitOK {
		if err := writeResults(cfg, state); err != nil {
			slog.Error("failed to write results", "error", err)
			exit = ExitError
		}
	}
	if err := trace.WriteManifest(cfg.OutputDir, manifest); err != nil {
		slog.Error("failed to write manifest", "error", err)
		if exit == ExitOK {
			exit = ExitError
		}
	}
	if err := trace.WriteReport(cfg.OutputDir, manifest); err != nil {
		slog.Error("failed to write report", "error", err)
	}

	printSummary(manifest, exit)
	return exit
}

// laneState accumulates what the decision lane saw.
type laneState struct {
	submitted   int
	mentions    int
	assignments map[string]string
	unknown     []string
}

// pump runs the producer, the bounded fetch workers, and the decision lane.
// Fetched publications are committed strictly in ingest order: the producer
// hands each worker a one-shot result channel and queues those channels in
// order for the lane.
func pump(ctx context.Context, cfg config.RunConfig, pubs []*models.Publication,
	dois []string, dd *dedup.Deduplicator, eng *engine.Engine) (laneState, []string, error) {

	state := laneState{assignments: make(map[string]string)}

	feed := make(chan *models.Publication, 2*cfg.MaxWorkers)
	ordered := make(chan chan *models.Publication, 2*cfg.MaxWorkers)
	jobs := make(chan fetchJob, 2*cfg.MaxWorkers)

	// a lane failure cancels the producer side through this context
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failedDOIs []string
	g, gctx := errgroup.WithContext(pctx)

	// feeder: ordering, DOI filtering, pacing
	g.Go(func() error {
		defer close(feed)
		feeder := corpus.NewFeeder(pubs, dois, cfg.Rate)
		failed, err := feeder.Feed(gctx, feed)
		failedDOIs = failed
		return err
	})

	// dispatcher: one future per publication. The job is queued before its
	// future so every future the lane waits on is guaranteed to be filled.
	g.Go(func() error {
		defer close(jobs)
		defer close(ordered)
		for pub := range feed {
			future := make(chan *models.Publication, 1)
			select {
			case jobs <- fetchJob{pub: pub, out: future}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case ordered <- future:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// fetch workers: stand-in for the upstream Crossref fetch; the lane only
	// ever sees fully parsed publications
	for i := 0; i < cfg.MaxWorkers; i++ {
		g.Go(func() error {
			for job := range jobs {
				job.out <- job.pub
			}
			return nil
		})
	}

	// decision lane: sole owner of index, dedup, and trace
	laneErr := func() error {
		for future := range ordered {
			// cancellation is honored between publications; the in-flight
			// publication always commits whole
			if err := ctx.Err(); err != nil {
				return err
			}
			pub, ok := <-future
			if !ok {
				continue
			}
			state.submitted++

			if outcome := dd.Check(pub); outcome.Duplicate {
				slog.Debug("duplicate publication",
					"publication_id", pub.PublicationID,
					"existing_id", outcome.ExistingID,
					"reason", outcome.Reason)
				continue
			}
			dd.Admit(pub)

			decisions, err := eng.ProcessPublication(pub)
			if err != nil {
				return err
			}
			for _, d := range decisions {
				state.mentions++
				switch d.Kind {
				case models.DecisionUnknown:
					state.unknown = append(state.unknown, d.MentionID)
				default:
					state.assignments[d.MentionID] = d.AuthorID
				}
			}
		}
		return nil
	}()

	if laneErr != nil {
		// unblock the producer side before collecting worker errors
		cancel()
		go drain(ordered)
	}
	gErr := g.Wait()
	if laneErr != nil {
		return state, failedDOIs, laneErr
	}
	return state, failedDOIs, gErr
}

type fetchJob struct {
	pub *models.Publication
	out chan *models.Publication
}

func drain(ordered chan chan *models.Publication) {
	for future := range ordered {
		select {
		case <-future:
		default:
		}
	}
}

func decisionCounts(counts map[models.DecisionKind]int) map[string]int {
	out := map[string]int{"merge": 0, "new": 0, "unknown": 0}
	for kind, n := range counts {
		out[string(kind)] = n
	}
	return out
}

func writeResults(cfg config.RunConfig, state laneState) error {
	sort.Strings(state.unknown)
	results := Results{
		RunID:       cfg.RunID,
		Assignments: state.assignments,
		Unknown:     state.unknown,
		Counts: map[string]int{
			"assigned": len(state.assignments),
			"unknown":  len(state.unknown),
		},
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, "results.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func printSummary(m trace.Manifest, exit int) {
	header := color.New(color.Bold)
	header.Println("Disambiguation run complete")
	fmt.Printf("  run id:        %s\n", m.RunID)
	fmt.Printf("  status:        %s\n", m.Status)
	fmt.Printf("  publications:  %d submitted, %d admitted\n", m.PublicationsSubmitted, m.Dedup.Admitted)
	fmt.Printf("  mentions:      %d processed, %d skipped\n", m.MentionsProcessed, m.SkippedMentions)
	fmt.Printf("  decisions:     merge=%d new=%d unknown=%d\n",
		m.Decisions["merge"], m.Decisions["new"], m.Decisions["unknown"])
	fmt.Printf("  profiles:      %d\n", m.Index.Profiles)
	if exit == ExitOK {
		color.Green("  result:        ok")
	} else {
		color.Red("  result:        exit %d (%s)", exit, m.Status)
	}
}
