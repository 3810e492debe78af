// Package trace emits the append-only decision log. Every record is redacted:
// no plaintext name, DOI, title, or institution ever reaches the stream, only
// salted hashes and structural summaries. Given identical inputs, config, and
// seed, the stream is byte-identical across runs.
package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
)

// traceEpoch anchors the logical timestamps of trace records. Wall-clock time
// would break byte-for-byte reproducibility, so records carry a logical clock
// advancing one second per decision.
var traceEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// NameStructure is the redacted structural summary of a mention name.
type NameStructure struct {
	TokenCount     int     `json:"token_count"`
	AvgTokenLength float64 `json:"avg_token_length"`
	Script         string  `json:"script_type"`
}

// Record is one JSONL decision-trace line. Field order is fixed by struct
// declaration; map values marshal with sorted keys, so serialization is
// deterministic.
type Record struct {
	RunID                string                           `json:"run_id"`
	Seq                  int64                            `json:"seq"`
	Timestamp            string                           `json:"timestamp"`
	Decision             models.DecisionKind              `json:"decision"`
	ScoreTotal           float64                          `json:"score_total"`
	ScoreComponents      map[string]models.ScoreComponent `json:"score_components"`
	Thresholds           map[string]float64               `json:"thresholds"`
	BestAuthorID         *string                          `json:"best_author_id"`
	MentionNameRedacted  string                           `json:"mention_name_redacted"`
	MentionNameStructure NameStructure                    `json:"mention_name_structure"`
	PublicationID        string                           `json:"publication_id"`
	CandidateCount       int                              `json:"candidate_count"`
	BlockingKeyCount     int                              `json:"blocking_key_count"`
	DeterministicHash    string                           `json:"deterministic_hash"`
}

// Writer appends decision records to the trace stream and unknown decisions
// to the review stream. It is owned by the decision lane and not safe for
// concurrent use.
type Writer struct {
	runID   string
	salt    string
	backend string

	accept float64
	reject float64

	traceFile  *os.File
	trace      *bufio.Writer
	reviewFile *os.File
	review     *bufio.Writer

	seq    int64
	counts map[models.DecisionKind]int
}

// NewWriter opens the trace and review streams for one run.
func NewWriter(tracePath, reviewPath, runID, salt, backend string, accept, reject float64) (*Writer, error) {
	tf, err := os.Create(tracePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	rf, err := os.Create(reviewPath)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("failed to create review file: %w", err)
	}
	return &Writer{
		runID:      runID,
		salt:       salt,
		backend:    backend,
		accept:     accept,
		reject:     reject,
		traceFile:  tf,
		trace:      bufio.NewWriter(tf),
		reviewFile: rf,
		review:     bufio.NewWriter(rf),
		counts:     make(map[models.DecisionKind]int),
	}, nil
}

// Append emits exactly one trace record for a decision, and mirrors unknown
// decisions onto the review stream. Seq is assigned here, at commit time.
func (w *Writer) Append(d models.Decision, mentionName string) error {
	w.seq++
	w.counts[d.Kind]++

	rec := w.buildRecord(d, mentionName, w.seq)
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trace record: %w", err)
	}
	if _, err := w.trace.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append trace record: %w", err)
	}
	if d.Kind == models.DecisionUnknown {
		if _, err := w.review.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to append review record: %w", err)
		}
	}
	return nil
}

func (w *Writer) buildRecord(d models.Decision, mentionName string, seq int64) Record {
	components := make(map[string]models.ScoreComponent, len(d.Components))
	for k, c := range d.Components {
		components[k] = models.ScoreComponent{
			Raw:      round6(c.Raw),
			Bin:      c.Bin,
			Weighted: round6(c.Weighted),
		}
	}
	var best *string
	if d.BestAuthorID != "" {
		best = &d.BestAuthorID
	}
	thresholds := map[string]float64{"accept": w.accept, "reject": w.reject}

	rec := Record{
		RunID:                w.runID,
		Seq:                  seq,
		Timestamp:            traceEpoch.Add(time.Duration(seq) * time.Second).Format(time.RFC3339),
		Decision:             d.Kind,
		ScoreTotal:           round6(d.ScoreTotal),
		ScoreComponents:      components,
		Thresholds:           thresholds,
		BestAuthorID:         best,
		MentionNameRedacted:  w.redactName(mentionName),
		MentionNameStructure: nameStructure(mentionName),
		PublicationID:        d.PublicationID,
		CandidateCount:       d.CandidateCount,
		BlockingKeyCount:     len(d.BlockingKeys),
	}
	rec.DeterministicHash = deterministicHash(w.backend, rec)
	return rec
}

// redactName replaces a plaintext name with the first 12 hex characters of
// SHA-256(name + salt).
func (w *Writer) redactName(name string) string {
	sum := sha256.Sum256([]byte(name + w.salt))
	return hex.EncodeToString(sum[:])[:12]
}

func nameStructure(name string) NameStructure {
	tokens := strings.Fields(name)
	total := 0
	for _, t := range tokens {
		total += len([]rune(t))
	}
	avg := 0.0
	if len(tokens) > 0 {
		avg = round6(float64(total) / float64(len(tokens)))
	}
	return NameStructure{
		TokenCount:     len(tokens),
		AvgTokenLength: avg,
		Script:         normalize.Script(name),
	}
}

// deterministicHash is SHA-256 (truncated to 32 hex characters) over the
// canonical JSON of the decision inputs: backend, best author, decision kind,
// rounded score components, rounded total, thresholds. Keys marshal sorted;
// the serialization is the documented canonical form.
func deterministicHash(backend string, rec Record) string {
	canonical := struct {
		Backend         string                           `json:"backend"`
		BestAuthorID    *string                          `json:"best_author_id"`
		Decision        models.DecisionKind              `json:"decision"`
		ScoreComponents map[string]models.ScoreComponent `json:"score_components"`
		ScoreTotal      float64                          `json:"score_total"`
		Thresholds      map[string]float64               `json:"thresholds"`
	}{
		Backend:         backend,
		BestAuthorID:    rec.BestAuthorID,
		Decision:        rec.Decision,
		ScoreComponents: rec.ScoreComponents,
		ScoreTotal:      rec.ScoreTotal,
		Thresholds:      rec.Thresholds,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		// canonical struct contains only marshalable fields
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

// Seq returns the last assigned sequence number.
func (w *Writer) Seq() int64 {
	return w.seq
}

// Counts returns per-kind decision counts.
func (w *Writer) Counts() map[models.DecisionKind]int {
	out := make(map[models.DecisionKind]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// Flush drains both buffered streams to disk.
func (w *Writer) Flush() error {
	if err := w.trace.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	if err := w.review.Flush(); err != nil {
		return fmt.Errorf("failed to flush review: %w", err)
	}
	return nil
}

// Close flushes and closes both streams.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	if err := w.traceFile.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if err := w.reviewFile.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
