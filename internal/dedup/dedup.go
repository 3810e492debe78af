// Package dedup decides whether an incoming publication was already admitted,
// by DOI and then by exact or fuzzy normalized title.
package dedup

import (
	"sort"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
	"github.com/lehigh-university-libraries/disambiguator/internal/similarity"
)

// Duplicate reasons.
const (
	ReasonDOI        = "doi"
	ReasonTitleExact = "title_exact"
	ReasonTitleFuzzy = "title_fuzzy"
)

// Outcome is the result of checking one publication against the store.
type Outcome struct {
	Duplicate  bool
	ExistingID string
	Reason     string
	Similarity float64 // set for fuzzy title hits
}

// Deduplicator maintains the DOI and normalized-title maps over admitted
// publications. It is not safe for concurrent use; the decision lane owns it.
type Deduplicator struct {
	titleThreshold float64

	byDOI   map[string]string // normalized DOI -> publication id
	byTitle map[string]string // normalized title -> publication id

	titleKeys []string // sorted, for stable fuzzy scans
	pubs      map[string]*models.Publication

	checked  int
	admitted int
	dupes    map[string]int
}

// New creates a Deduplicator with the given fuzzy title threshold.
func New(titleThreshold float64) *Deduplicator {
	return &Deduplicator{
		titleThreshold: titleThreshold,
		byDOI:          make(map[string]string),
		byTitle:        make(map[string]string),
		pubs:           make(map[string]*models.Publication),
		dupes:          make(map[string]int),
	}
}

// Check classifies a publication without mutating the store.
func (d *Deduplicator) Check(pub *models.Publication) Outcome {
	d.checked++

	if doi := normalize.DOI(pub.DOI); doi != "" {
		if id, ok := d.byDOI[doi]; ok {
			d.dupes[ReasonDOI]++
			return Outcome{Duplicate: true, ExistingID: id, Reason: ReasonDOI}
		}
	}

	title := normalize.Title(pub.Title)
	if title == "" {
		return Outcome{}
	}
	if id, ok := d.byTitle[title]; ok {
		d.dupes[ReasonTitleExact]++
		return Outcome{Duplicate: true, ExistingID: id, Reason: ReasonTitleExact}
	}

	// First fuzzy hit in lexicographic key order wins, so the scan is stable
	// across runs.
	for _, key := range d.titleKeys {
		if s := similarity.Ratio(title, key); s >= d.titleThreshold {
			d.dupes[ReasonTitleFuzzy]++
			return Outcome{Duplicate: true, ExistingID: d.byTitle[key], Reason: ReasonTitleFuzzy, Similarity: s}
		}
	}
	return Outcome{}
}

// Admit inserts a publication into both maps. The title map is only updated
// when the normalized title is non-empty.
func (d *Deduplicator) Admit(pub *models.Publication) {
	if doi := normalize.DOI(pub.DOI); doi != "" {
		d.byDOI[doi] = pub.PublicationID
	}
	title := normalize.Title(pub.Title)
	if title != "" {
		if _, exists := d.byTitle[title]; !exists {
			i := sort.SearchStrings(d.titleKeys, title)
			d.titleKeys = append(d.titleKeys, "")
			copy(d.titleKeys[i+1:], d.titleKeys[i:])
			d.titleKeys[i] = title
		}
		d.byTitle[title] = pub.PublicationID
	}
	d.pubs[pub.PublicationID] = pub
	d.admitted++
}

// Get returns an admitted publication by id.
func (d *Deduplicator) Get(id string) *models.Publication {
	return d.pubs[id]
}

// Stats reports counts for the run manifest.
func (d *Deduplicator) Stats() Stats {
	return Stats{
		Checked:        d.checked,
		Admitted:       d.admitted,
		DuplicateDOI:   d.dupes[ReasonDOI],
		DuplicateExact: d.dupes[ReasonTitleExact],
		DuplicateFuzzy: d.dupes[ReasonTitleFuzzy],
	}
}

// Stats summarizes deduplicator activity.
type Stats struct {
	Checked        int `json:"checked"`
	Admitted       int `json:"admitted"`
	DuplicateDOI   int `json:"duplicate_doi"`
	DuplicateExact int `json:"duplicate_title_exact"`
	DuplicateFuzzy int `json:"duplicate_title_fuzzy"`
}
