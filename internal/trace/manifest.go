package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/disambiguator/internal/dedup"
	"github.com/lehigh-university-libraries/disambiguator/internal/index"
	"gopkg.in/yaml.v3"
)

// Version identifies the disambiguator build in run manifests.
const Version = "0.1.0"

// Run statuses recorded in the manifest.
const (
	StatusOK        = "ok"
	StatusAborted   = "aborted"
	StatusCancelled = "cancelled"
)

// Manifest is the run_manifest.json written at the end of every run that got
// as far as opening its trace streams.
type Manifest struct {
	RunID      string `json:"run_id"`
	Version    string `json:"version"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Cancelled  bool   `json:"cancelled"`
	Backend    string `json:"backend"`
	Seed       int64  `json:"seed"`
	ConfigHash string `json:"config_hash"`

	Thresholds map[string]float64 `json:"thresholds"`

	PublicationsSubmitted int `json:"publications_submitted"`
	MentionsProcessed     int `json:"mentions_processed"`
	SkippedMentions       int `json:"skipped_mentions"`

	Decisions map[string]int `json:"decisions"`

	FailedDOIs []string `json:"failed_dois,omitempty"`

	Dedup dedup.Stats `json:"dedup"`
	Index index.Stats `json:"index"`
}

// ConfigHash fingerprints the effective run configuration for the manifest.
func ConfigHash(cfg any) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// WriteManifest writes run_manifest.json into the output directory.
func WriteManifest(outputDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(outputDir, "run_manifest.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Report is the human-readable YAML mirror of the manifest, with decision
// rates as percentages.
type Report struct {
	RunID     string             `yaml:"run_id"`
	Status    string             `yaml:"status"`
	Backend   string             `yaml:"backend"`
	Decisions map[string]int     `yaml:"decisions"`
	Rates     map[string]float64 `yaml:"rates_pct"`
	Dedup     dedup.Stats        `yaml:"dedup"`
	Profiles  int                `yaml:"profiles"`
	Skipped   int                `yaml:"skipped_mentions"`
}

// WriteReport writes report.yaml next to the manifest.
func WriteReport(outputDir string, m Manifest) error {
	total := 0
	for _, n := range m.Decisions {
		total += n
	}
	rates := make(map[string]float64, len(m.Decisions))
	for kind, n := range m.Decisions {
		if total > 0 {
			rates[kind] = float64(n) * 100 / float64(total)
		}
	}
	report := Report{
		RunID:     m.RunID,
		Status:    m.Status,
		Backend:   m.Backend,
		Decisions: m.Decisions,
		Rates:     rates,
		Dedup:     m.Dedup,
		Profiles:  m.Index.Profiles,
		Skipped:   m.SkippedMentions,
	}
	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	path := filepath.Join(outputDir, "report.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
