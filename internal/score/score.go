// Package score turns a comparison vector into a single decision score.
// Two backends are exposed: a weighted baseline over raw similarities and a
// Fellegi-Sunter log-likelihood ratio over discrete bins.
package score

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/lehigh-university-libraries/disambiguator/internal/compare"
	"github.com/lehigh-university-libraries/disambiguator/internal/models"
)

// Backend names accepted by the decision engine.
const (
	ModeBaseline = "baseline"
	ModeFS       = "fs"
)

// epsilon stabilizes the log-likelihood against zero m or u estimates.
const epsilon = 1e-9

// BaselineWeights are the fixed per-feature weights of the baseline backend.
var BaselineWeights = map[string]float64{
	compare.FeatureName:        0.40,
	compare.FeatureORCID:       0.30,
	compare.FeatureCoauthor:    0.15,
	compare.FeatureJournal:     0.10,
	compare.FeatureAffiliation: 0.05,
}

// MU holds the conditional bin probabilities of classical record linkage:
// m given a true match, u given a true non-match.
type MU struct {
	M float64 `json:"m"`
	U float64 `json:"u"`
}

// MUTable maps feature -> bin -> (m,u). It must cover every bin a comparator
// can emit; a miss at lookup time is a fatal bug, a miss at load time is a
// config error.
type MUTable map[string]map[string]MU

// featureBins enumerates every bin each comparator can produce.
var featureBins = map[string][]string{
	compare.FeatureName:        {"exact", "high", "medium", "low", "none"},
	compare.FeatureORCID:       {"match", "mismatch", "missing"},
	compare.FeatureCoauthor:    {"high", "medium", "low", "none"},
	compare.FeatureJournal:     {"high", "medium", "low", "none"},
	compare.FeatureAffiliation: {"exact", "high", "medium", "low", "none"},
}

// Validate checks that the table covers every (feature, bin) a comparator
// can emit.
func (t MUTable) Validate() error {
	for _, feature := range compare.Features {
		bins, ok := t[feature]
		if !ok {
			return fmt.Errorf("mu table missing feature %q", feature)
		}
		for _, bin := range featureBins[feature] {
			if _, ok := bins[bin]; !ok {
				return fmt.Errorf("mu table missing bin %q for feature %q", bin, feature)
			}
		}
	}
	return nil
}

// LoadMUTable reads and validates a MU table from a JSON file.
func LoadMUTable(path string) (MUTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mu table: %w", err)
	}
	var table MUTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse mu table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// DefaultMUTable returns the built-in parameter table used by FS mode when no
// table file is given. Values follow the usual pattern: strong agreement is
// frequent among matches and rare among non-matches.
func DefaultMUTable() MUTable {
	return MUTable{
		compare.FeatureName: {
			"exact":  {M: 0.85, U: 0.01},
			"high":   {M: 0.10, U: 0.04},
			"medium": {M: 0.03, U: 0.10},
			"low":    {M: 0.01, U: 0.25},
			"none":   {M: 0.01, U: 0.60},
		},
		compare.FeatureORCID: {
			"match":    {M: 0.60, U: 0.0001},
			"mismatch": {M: 0.001, U: 0.30},
			"missing":  {M: 0.399, U: 0.6999},
		},
		compare.FeatureCoauthor: {
			"high":   {M: 0.40, U: 0.01},
			"medium": {M: 0.25, U: 0.04},
			"low":    {M: 0.15, U: 0.10},
			"none":   {M: 0.20, U: 0.85},
		},
		compare.FeatureJournal: {
			"high":   {M: 0.35, U: 0.05},
			"medium": {M: 0.20, U: 0.08},
			"low":    {M: 0.15, U: 0.12},
			"none":   {M: 0.30, U: 0.75},
		},
		compare.FeatureAffiliation: {
			"exact":  {M: 0.30, U: 0.02},
			"high":   {M: 0.25, U: 0.05},
			"medium": {M: 0.20, U: 0.10},
			"low":    {M: 0.10, U: 0.20},
			"none":   {M: 0.15, U: 0.63},
		},
	}
}

// Scorer exposes both backends over one comparison vector. The decision
// engine picks one backend per run; both fill an identical component
// breakdown for the trace.
type Scorer struct {
	table MUTable
}

// NewScorer builds a scorer. The table may be nil for baseline-only runs.
func NewScorer(table MUTable) *Scorer {
	return &Scorer{table: table}
}

// Baseline computes the weighted sum of raw similarities, in [0,1].
func (s *Scorer) Baseline(vec compare.Vector) (float64, map[string]models.ScoreComponent, error) {
	total := 0.0
	components := make(map[string]models.ScoreComponent, len(vec))
	for _, feature := range compare.Features {
		r := vec[feature]
		if math.IsNaN(r.Value) {
			return 0, nil, fmt.Errorf("comparator %q returned NaN", feature)
		}
		weighted := r.Value * BaselineWeights[feature]
		components[feature] = models.ScoreComponent{Raw: r.Value, Bin: r.Bin, Weighted: weighted}
		total += weighted
	}
	return total, components, nil
}

// FellegiSunter sums per-feature log2(m/u) evidence weights for the observed
// bins. Output is unbounded.
func (s *Scorer) FellegiSunter(vec compare.Vector) (float64, map[string]models.ScoreComponent, error) {
	if s.table == nil {
		return 0, nil, fmt.Errorf("fellegi-sunter backend requires a mu table")
	}
	total := 0.0
	components := make(map[string]models.ScoreComponent, len(vec))
	for _, feature := range compare.Features {
		r := vec[feature]
		if math.IsNaN(r.Value) {
			return 0, nil, fmt.Errorf("comparator %q returned NaN", feature)
		}
		mu, ok := s.table[feature][r.Bin]
		if !ok {
			return 0, nil, fmt.Errorf("mu table missing bin %q for feature %q", r.Bin, feature)
		}
		w := math.Log2(math.Max(mu.M, epsilon) / math.Max(mu.U, epsilon))
		components[feature] = models.ScoreComponent{Raw: r.Value, Bin: r.Bin, Weighted: w}
		total += w
	}
	return total, components, nil
}

// Score dispatches on the backend mode.
func (s *Scorer) Score(mode string, vec compare.Vector) (float64, map[string]models.ScoreComponent, error) {
	switch mode {
	case ModeBaseline:
		return s.Baseline(vec)
	case ModeFS:
		return s.FellegiSunter(vec)
	default:
		return 0, nil, fmt.Errorf("unknown scoring mode %q", mode)
	}
}
