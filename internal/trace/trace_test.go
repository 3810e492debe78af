package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
)

func sampleDecisions() []struct {
	d    models.Decision
	name string
} {
	return []struct {
		d    models.Decision
		name string
	}{
		{
			d: models.Decision{
				Kind:          models.DecisionMerge,
				PublicationID: "pub-000001",
				BestAuthorID:  "a-000001",
				AuthorID:      "a-000001",
				ScoreTotal:    0.66,
				Components: map[string]models.ScoreComponent{
					"name":  {Raw: 0.9, Bin: "high", Weighted: 0.36},
					"orcid": {Raw: 1.0, Bin: "match", Weighted: 0.30},
				},
				CandidateCount: 1,
				BlockingKeys:   []string{"orcid:0000-0001-2345-6789"},
			},
			name: "J. Smith",
		},
		{
			d: models.Decision{
				Kind:          models.DecisionUnknown,
				PublicationID: "pub-000002",
				BestAuthorID:  "a-000001",
				ScoreTotal:    0.38,
				Components: map[string]models.ScoreComponent{
					"name":  {Raw: 0.95, Bin: "high", Weighted: 0.38},
					"orcid": {Raw: 0, Bin: "mismatch", Weighted: 0},
				},
				CandidateCount: 1,
			},
			name: "John Smith",
		},
		{
			d: models.Decision{
				Kind:          models.DecisionNew,
				PublicationID: "pub-000003",
				AuthorID:      "a-000002",
				ScoreTotal:    0,
			},
			name: "Иван Петров",
		},
	}
}

func writeAll(t *testing.T, dir string) (tracePath, reviewPath string) {
	t.Helper()
	tracePath = filepath.Join(dir, "trace.jsonl")
	reviewPath = filepath.Join(dir, "review.jsonl")
	w, err := NewWriter(tracePath, reviewPath, "run-1", "pepper", "baseline", 0.90, 0.20)
	if err != nil {
		t.Fatalf("NewWriter returned error: %v", err)
	}
	for _, s := range sampleDecisions() {
		if err := w.Append(s.d, s.name); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	return tracePath, reviewPath
}

func TestTraceDeterminism(t *testing.T) {
	path1, _ := writeAll(t, t.TempDir())
	path2, _ := writeAll(t, t.TempDir())

	data1, err := os.ReadFile(path1)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := os.ReadFile(path2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data1, data2) {
		t.Fatal("two identical runs produced different trace bytes")
	}
}

func TestTraceRedaction(t *testing.T) {
	tracePath, _ := writeAll(t, t.TempDir())
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range sampleDecisions() {
		if bytes.Contains(data, []byte(s.name)) {
			t.Errorf("trace contains plaintext name %q", s.name)
		}
		for _, token := range strings.Fields(s.name) {
			if bytes.Contains(data, []byte(token)) {
				t.Errorf("trace contains name token %q", token)
			}
		}
	}
}

func TestTraceRecordShape(t *testing.T) {
	tracePath, reviewPath := writeAll(t, t.TempDir())

	file, err := os.Open(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid trace line: %v", err)
		}
		records = append(records, rec)
	}
	if len(records) != 3 {
		t.Fatalf("got %d trace records, want 3", len(records))
	}

	for i, rec := range records {
		if rec.Seq != int64(i+1) {
			t.Errorf("record %d seq = %d, want %d", i, rec.Seq, i+1)
		}
		if rec.RunID != "run-1" {
			t.Errorf("record %d run id = %q", i, rec.RunID)
		}
		if len(rec.MentionNameRedacted) != 12 {
			t.Errorf("record %d redacted name length = %d, want 12", i, len(rec.MentionNameRedacted))
		}
		if rec.DeterministicHash == "" {
			t.Errorf("record %d missing deterministic hash", i)
		}
		if rec.Thresholds["accept"] != 0.90 || rec.Thresholds["reject"] != 0.20 {
			t.Errorf("record %d thresholds = %v", i, rec.Thresholds)
		}
	}

	if records[0].BestAuthorID == nil || *records[0].BestAuthorID != "a-000001" {
		t.Error("merge record missing best author id")
	}
	if records[2].BestAuthorID != nil {
		t.Error("new-without-candidates record should carry null best author id")
	}
	if records[2].MentionNameStructure.Script != "cyrillic" {
		t.Errorf("script = %q, want cyrillic", records[2].MentionNameStructure.Script)
	}
	if records[2].MentionNameStructure.TokenCount != 2 {
		t.Errorf("token count = %d, want 2", records[2].MentionNameStructure.TokenCount)
	}

	// review stream carries exactly the unknown decisions
	reviewData, err := os.ReadFile(reviewPath)
	if err != nil {
		t.Fatal(err)
	}
	reviewLines := bytes.Count(reviewData, []byte("\n"))
	if reviewLines != 1 {
		t.Errorf("review stream has %d records, want 1", reviewLines)
	}
	if !bytes.Contains(reviewData, []byte(`"decision":"unknown"`)) {
		t.Error("review record is not an unknown decision")
	}
}

func TestRedactionSaltChangesHash(t *testing.T) {
	dir := t.TempDir()
	w1, err := NewWriter(filepath.Join(dir, "t1.jsonl"), filepath.Join(dir, "r1.jsonl"),
		"run-1", "salt-a", "baseline", 0.9, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	defer w1.Close()
	w2, err := NewWriter(filepath.Join(dir, "t2.jsonl"), filepath.Join(dir, "r2.jsonl"),
		"run-1", "salt-b", "baseline", 0.9, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	if w1.redactName("John Smith") == w2.redactName("John Smith") {
		t.Error("different salts produced identical redacted names")
	}
	if w1.redactName("John Smith") == w1.redactName("Jane Smith") {
		t.Error("different names produced identical redacted names")
	}
}
