package score

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/disambiguator/internal/compare"
)

func TestBaseline(t *testing.T) {
	tests := []struct {
		name string
		vec  compare.Vector
		want float64
	}{
		{
			name: "orcid match overrides name drift",
			vec: compare.Vector{
				compare.FeatureName:        {Value: 0.90, Bin: "high"},
				compare.FeatureORCID:       {Value: 1.0, Bin: "match"},
				compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
				compare.FeatureJournal:     {Value: 0, Bin: "none"},
				compare.FeatureAffiliation: {Value: 0, Bin: "none"},
			},
			want: 0.66,
		},
		{
			name: "orcid mismatch homonym",
			vec: compare.Vector{
				compare.FeatureName:        {Value: 0.95, Bin: "high"},
				compare.FeatureORCID:       {Value: 0, Bin: "mismatch"},
				compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
				compare.FeatureJournal:     {Value: 0, Bin: "none"},
				compare.FeatureAffiliation: {Value: 0, Bin: "none"},
			},
			want: 0.38,
		},
		{
			name: "missing orcid is neutral",
			vec: compare.Vector{
				compare.FeatureName:        {Value: 0, Bin: "none"},
				compare.FeatureORCID:       {Value: 0.5, Bin: "missing"},
				compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
				compare.FeatureJournal:     {Value: 0, Bin: "none"},
				compare.FeatureAffiliation: {Value: 0, Bin: "none"},
			},
			want: 0.15,
		},
	}

	scorer := NewScorer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, components, err := scorer.Baseline(tt.vec)
			if err != nil {
				t.Fatalf("Baseline returned error: %v", err)
			}
			if math.Abs(total-tt.want) > 1e-9 {
				t.Errorf("Baseline total = %.4f, want %.4f", total, tt.want)
			}
			if len(components) != len(compare.Features) {
				t.Errorf("component breakdown has %d entries, want %d",
					len(components), len(compare.Features))
			}
		})
	}
}

func TestBaselineNaNIsFatal(t *testing.T) {
	vec := compare.Vector{
		compare.FeatureName:        {Value: math.NaN(), Bin: "none"},
		compare.FeatureORCID:       {Value: 0.5, Bin: "missing"},
		compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
		compare.FeatureJournal:     {Value: 0, Bin: "none"},
		compare.FeatureAffiliation: {Value: 0, Bin: "none"},
	}
	if _, _, err := NewScorer(nil).Baseline(vec); err == nil {
		t.Fatal("expected error for NaN comparator output")
	}
}

func TestFellegiSunter(t *testing.T) {
	table := DefaultMUTable()
	scorer := NewScorer(table)

	vec := compare.Vector{
		compare.FeatureName:        {Value: 1.0, Bin: "exact"},
		compare.FeatureORCID:       {Value: 1.0, Bin: "match"},
		compare.FeatureCoauthor:    {Value: 0.6, Bin: "high"},
		compare.FeatureJournal:     {Value: 0.5, Bin: "high"},
		compare.FeatureAffiliation: {Value: 1.0, Bin: "exact"},
	}
	total, components, err := scorer.FellegiSunter(vec)
	if err != nil {
		t.Fatalf("FellegiSunter returned error: %v", err)
	}
	if total <= 0 {
		t.Errorf("all-agreement total = %.4f, want positive evidence", total)
	}

	// each component weight must be log2(m/u) of its bin
	wantName := math.Log2(0.85 / 0.01)
	if math.Abs(components[compare.FeatureName].Weighted-wantName) > 1e-9 {
		t.Errorf("name weight = %.4f, want %.4f", components[compare.FeatureName].Weighted, wantName)
	}

	disagree := compare.Vector{
		compare.FeatureName:        {Value: 0, Bin: "none"},
		compare.FeatureORCID:       {Value: 0, Bin: "mismatch"},
		compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
		compare.FeatureJournal:     {Value: 0, Bin: "none"},
		compare.FeatureAffiliation: {Value: 0, Bin: "none"},
	}
	total, _, err = scorer.FellegiSunter(disagree)
	if err != nil {
		t.Fatalf("FellegiSunter returned error: %v", err)
	}
	if total >= 0 {
		t.Errorf("all-disagreement total = %.4f, want negative evidence", total)
	}
}

func TestFellegiSunterMissingBin(t *testing.T) {
	table := DefaultMUTable()
	delete(table[compare.FeatureName], "high")

	vec := compare.Vector{
		compare.FeatureName:        {Value: 0.92, Bin: "high"},
		compare.FeatureORCID:       {Value: 0.5, Bin: "missing"},
		compare.FeatureCoauthor:    {Value: 0, Bin: "none"},
		compare.FeatureJournal:     {Value: 0, Bin: "none"},
		compare.FeatureAffiliation: {Value: 0, Bin: "none"},
	}
	if _, _, err := NewScorer(table).FellegiSunter(vec); err == nil {
		t.Fatal("expected error for missing mu bin")
	}
}

func TestMUTableValidate(t *testing.T) {
	if err := DefaultMUTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}

	incomplete := DefaultMUTable()
	delete(incomplete, compare.FeatureJournal)
	if err := incomplete.Validate(); err == nil {
		t.Fatal("expected validation error for missing feature")
	}

	partial := DefaultMUTable()
	delete(partial[compare.FeatureORCID], "missing")
	if err := partial.Validate(); err == nil {
		t.Fatal("expected validation error for missing bin")
	}
}

func TestLoadMUTable(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "mu.json")
	content := `{
		"name": {"exact": {"m": 0.9, "u": 0.01}, "high": {"m": 0.05, "u": 0.04},
			"medium": {"m": 0.02, "u": 0.1}, "low": {"m": 0.02, "u": 0.25}, "none": {"m": 0.01, "u": 0.6}},
		"orcid": {"match": {"m": 0.6, "u": 0.0001}, "mismatch": {"m": 0.001, "u": 0.3}, "missing": {"m": 0.399, "u": 0.6999}},
		"coauthor": {"high": {"m": 0.4, "u": 0.01}, "medium": {"m": 0.25, "u": 0.04}, "low": {"m": 0.15, "u": 0.1}, "none": {"m": 0.2, "u": 0.85}},
		"journal": {"high": {"m": 0.35, "u": 0.05}, "medium": {"m": 0.2, "u": 0.08}, "low": {"m": 0.15, "u": 0.12}, "none": {"m": 0.3, "u": 0.75}},
		"affiliation": {"exact": {"m": 0.3, "u": 0.02}, "high": {"m": 0.25, "u": 0.05}, "medium": {"m": 0.2, "u": 0.1}, "low": {"m": 0.1, "u": 0.2}, "none": {"m": 0.15, "u": 0.63}}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadMUTable(path)
	if err != nil {
		t.Fatalf("LoadMUTable returned error: %v", err)
	}
	if table["name"]["exact"].M != 0.9 {
		t.Errorf("name/exact m = %v, want 0.9", table["name"]["exact"].M)
	}

	if _, err := LoadMUTable(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name": {}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMUTable(bad); err == nil {
		t.Fatal("expected validation error for incomplete table")
	}
}
