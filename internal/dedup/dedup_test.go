package dedup

import (
	"testing"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
)

func pub(id, doi, title string) *models.Publication {
	return &models.Publication{PublicationID: id, DOI: doi, Title: title}
}

func TestCheckDOI(t *testing.T) {
	d := New(0.95)
	d.Admit(pub("pub-000001", "10.1038/x", "Some Paper"))

	tests := []struct {
		name       string
		pub        *models.Publication
		wantDup    bool
		wantReason string
	}{
		{
			name:       "same doi different case",
			pub:        pub("pub-000002", "10.1038/X", "Completely Different Title"),
			wantDup:    true,
			wantReason: ReasonDOI,
		},
		{
			name:       "doi with resolver prefix",
			pub:        pub("pub-000003", "https://doi.org/10.1038/x", "Another Title Entirely"),
			wantDup:    true,
			wantReason: ReasonDOI,
		},
		{
			name:    "fresh doi",
			pub:     pub("pub-000004", "10.1038/y", "A Fresh Unrelated Title"),
			wantDup: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Check(tt.pub)
			if got.Duplicate != tt.wantDup {
				t.Fatalf("Check duplicate = %v, want %v", got.Duplicate, tt.wantDup)
			}
			if tt.wantDup {
				if got.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
				}
				if got.ExistingID != "pub-000001" {
					t.Errorf("existing id = %q, want pub-000001", got.ExistingID)
				}
			}
		})
	}
}

func TestCheckTitle(t *testing.T) {
	d := New(0.95)
	d.Admit(pub("pub-000001", "", "The Structure of Scientific Revolutions"))

	// exact after normalization: stopwords and case differ
	got := d.Check(pub("pub-000002", "", "Structure of scientific revolutions"))
	if !got.Duplicate || got.Reason != ReasonTitleExact {
		t.Fatalf("normalized-exact title: got %+v", got)
	}

	// single-character drift within the fuzzy threshold
	got = d.Check(pub("pub-000003", "", "The Structure of Scientific Revolution"))
	if !got.Duplicate || got.Reason != ReasonTitleFuzzy {
		t.Fatalf("fuzzy title: got %+v", got)
	}
	if got.Similarity < 0.95 {
		t.Errorf("fuzzy similarity = %.4f, want >= 0.95", got.Similarity)
	}

	// unrelated title admits
	got = d.Check(pub("pub-000004", "", "Deep Learning for Protein Folding"))
	if got.Duplicate {
		t.Fatalf("unrelated title flagged duplicate: %+v", got)
	}
}

func TestAdmitIdempotence(t *testing.T) {
	d := New(0.95)
	p := pub("pub-000001", "10.1038/x", "Some Paper")

	if got := d.Check(p); got.Duplicate {
		t.Fatal("empty store reported a duplicate")
	}
	d.Admit(p)

	// second submission of the same record is a DOI duplicate and leaves
	// the store unchanged
	got := d.Check(p)
	if !got.Duplicate || got.Reason != ReasonDOI {
		t.Fatalf("resubmission: got %+v", got)
	}

	stats := d.Stats()
	if stats.Admitted != 1 {
		t.Errorf("admitted = %d, want 1", stats.Admitted)
	}
	if stats.DuplicateDOI != 1 {
		t.Errorf("duplicate_doi = %d, want 1", stats.DuplicateDOI)
	}
}

func TestAdmitEmptyTitle(t *testing.T) {
	d := New(0.95)
	d.Admit(pub("pub-000001", "10.1038/x", ""))

	// an empty normalized title must not occupy a title key
	got := d.Check(pub("pub-000002", "", ""))
	if got.Duplicate {
		t.Fatalf("empty titles matched: %+v", got)
	}
}

func TestFuzzyScanStableOrder(t *testing.T) {
	d := New(0.90)
	// two stored titles both within threshold of the probe; the
	// lexicographically first normalized key must win
	d.Admit(pub("pub-000002", "", "alpha beta gamma delta zz"))
	d.Admit(pub("pub-000001", "", "alpha beta gamma delta xx"))

	got := d.Check(pub("pub-000003", "", "alpha beta gamma delta yy"))
	if !got.Duplicate || got.Reason != ReasonTitleFuzzy {
		t.Fatalf("fuzzy probe: got %+v", got)
	}
	if got.ExistingID != "pub-000001" {
		t.Errorf("existing id = %q, want pub-000001 (first key in sorted order)", got.ExistingID)
	}
}
