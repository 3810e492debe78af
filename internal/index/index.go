// Package index is the in-memory author store. It owns every Author profile
// and maintains the blocking indices the decision engine prunes candidates
// with. The store is single-writer: only the decision lane mutates it.
package index

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
)

// ErrDuplicateOrcid is returned when an insert would create a second profile
// with the same ORCID.
var ErrDuplicateOrcid = errors.New("orcid already assigned to another profile")

// ErrDuplicateID is returned when an insert reuses an existing author id.
var ErrDuplicateID = errors.New("author id already present")

// Index maintains the live profile set and its blocking dictionaries.
type Index struct {
	byID             map[string]*models.Author
	byORCID          map[string]*models.Author
	bySurname        map[string][]string // surname -> sorted author ids
	bySurnameInitial map[string][]string // "surname|initial" -> sorted author ids
	byAffiliation    map[string][]string // normalized institution -> sorted author ids
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byID:             make(map[string]*models.Author),
		byORCID:          make(map[string]*models.Author),
		bySurname:        make(map[string][]string),
		bySurnameInitial: make(map[string][]string),
		byAffiliation:    make(map[string][]string),
	}
}

// Get returns a profile by id, or nil.
func (ix *Index) Get(id string) *models.Author {
	return ix.byID[id]
}

// FindByORCID returns the unique profile carrying the ORCID, or nil.
func (ix *Index) FindByORCID(orcid string) *models.Author {
	o := normalize.ORCID(orcid)
	if o == "" {
		return nil
	}
	return ix.byORCID[o]
}

// Size returns the live profile count.
func (ix *Index) Size() int {
	return len(ix.byID)
}

// Insert adds a new profile. It fails when the author id or a non-empty
// ORCID is already present.
func (ix *Index) Insert(a *models.Author) error {
	if a.CanonicalName == "" {
		return fmt.Errorf("profile %s has empty canonical name", a.AuthorID)
	}
	if _, exists := ix.byID[a.AuthorID]; exists {
		return fmt.Errorf("insert %s: %w", a.AuthorID, ErrDuplicateID)
	}
	if a.ORCID != "" {
		if _, exists := ix.byORCID[a.ORCID]; exists {
			return fmt.Errorf("insert %s orcid %s: %w", a.AuthorID, a.ORCID, ErrDuplicateOrcid)
		}
	}

	ix.byID[a.AuthorID] = a
	if a.ORCID != "" {
		ix.byORCID[a.ORCID] = a
	}
	ix.postName(a.AuthorID, a.CanonicalName)
	for aff := range a.Affiliations {
		ix.postAffiliation(a.AuthorID, aff)
	}
	return nil
}

// Delta carries the set additions of a MERGE. canonical_name and orcid can
// never change through an update.
type Delta struct {
	Aliases        []string
	Affiliations   []string
	CoauthorIDs    []string
	Journals       []string
	PublicationIDs []string
}

// Update merges a delta into an existing profile and refreshes updated_at.
func (ix *Index) Update(id string, delta Delta, now time.Time) error {
	a := ix.byID[id]
	if a == nil {
		return fmt.Errorf("update: unknown author %s", id)
	}
	for _, alias := range delta.Aliases {
		if alias != "" && alias != a.CanonicalName && !a.Aliases[alias] {
			a.Aliases[alias] = true
			ix.postName(id, alias)
		}
	}
	for _, aff := range delta.Affiliations {
		if aff != "" && !a.Affiliations[aff] {
			a.Affiliations[aff] = true
			ix.postAffiliation(id, aff)
		}
	}
	for _, co := range delta.CoauthorIDs {
		if co != "" && co != id {
			a.CoauthorIDs[co] = true
		}
	}
	for _, j := range delta.Journals {
		if j != "" {
			a.Journals[j] = true
		}
	}
	for _, p := range delta.PublicationIDs {
		if p != "" {
			a.PublicationIDs[p] = true
		}
	}
	a.UpdatedAt = now
	return nil
}

// Block returns the deduplicated, sorted candidate ids for a mention, and the
// index keys that produced them. Candidates are the union of the ORCID hit,
// the surname posting, the surname+initial posting, and every affiliation
// posting.
func (ix *Index) Block(mention models.AuthorMention) (ids []string, keys []string) {
	seen := make(map[string]bool)
	add := func(key string, candidates []string) {
		if len(candidates) == 0 {
			return
		}
		keys = append(keys, key)
		for _, id := range candidates {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	if a := ix.FindByORCID(mention.ORCID); a != nil {
		add("orcid:"+a.ORCID, []string{a.AuthorID})
	}
	sur := normalize.Surname(mention.Name)
	if sur != "" {
		add("surname:"+sur, ix.bySurname[sur])
		if ini := normalize.FirstInitial(mention.Name); ini != "" {
			k := sur + "|" + ini
			add("surname_initial:"+k, ix.bySurnameInitial[k])
		}
	}
	for _, aff := range mention.Affiliations {
		n := normalize.Name(aff)
		if n != "" {
			add("affiliation:"+n, ix.byAffiliation[n])
		}
	}

	sort.Strings(ids)
	return ids, keys
}

// All returns every profile, sorted by author id.
func (ix *Index) All() []*models.Author {
	ids := make([]string, 0, len(ix.byID))
	for id := range ix.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	authors := make([]*models.Author, len(ids))
	for i, id := range ids {
		authors[i] = ix.byID[id]
	}
	return authors
}

// Stats reports index shape for the run manifest.
func (ix *Index) Stats() Stats {
	return Stats{
		Profiles:           len(ix.byID),
		ProfilesWithORCID:  len(ix.byORCID),
		SurnameKeys:        len(ix.bySurname),
		SurnameInitialKeys: len(ix.bySurnameInitial),
		AffiliationKeys:    len(ix.byAffiliation),
	}
}

// Stats summarizes index shape.
type Stats struct {
	Profiles           int `json:"profiles"`
	ProfilesWithORCID  int `json:"profiles_with_orcid"`
	SurnameKeys        int `json:"surname_keys"`
	SurnameInitialKeys int `json:"surname_initial_keys"`
	AffiliationKeys    int `json:"affiliation_keys"`
}

// postName indexes one surface name (canonical or alias) for an author.
func (ix *Index) postName(id, name string) {
	sur := normalize.Surname(name)
	if sur == "" {
		return
	}
	ix.bySurname[sur] = insertSorted(ix.bySurname[sur], id)
	if ini := normalize.FirstInitial(name); ini != "" {
		k := sur + "|" + ini
		ix.bySurnameInitial[k] = insertSorted(ix.bySurnameInitial[k], id)
	}
}

func (ix *Index) postAffiliation(id, affiliation string) {
	n := normalize.Name(affiliation)
	if n == "" {
		return
	}
	ix.byAffiliation[n] = insertSorted(ix.byAffiliation[n], id)
}

// insertSorted inserts id into a sorted posting list, skipping duplicates.
func insertSorted(list []string, id string) []string {
	i := sort.SearchStrings(list, id)
	if i < len(list) && list[i] == id {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = id
	return list
}
