package models

import (
	"sort"
	"time"
)

// Author is a persistent author profile aggregating many mentions.
// All cross-references to other entities are by id, never by pointer.
type Author struct {
	AuthorID       string          `json:"author_id"`
	CanonicalName  string          `json:"canonical_name"`
	ORCID          string          `json:"orcid,omitempty"`
	Aliases        map[string]bool `json:"-"`
	Affiliations   map[string]bool `json:"-"`
	CoauthorIDs    map[string]bool `json:"-"`
	Journals       map[string]bool `json:"-"`
	PublicationIDs map[string]bool `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAuthor creates a profile with all collection fields initialized empty.
func NewAuthor(id, canonicalName, orcid string, now time.Time) *Author {
	return &Author{
		AuthorID:       id,
		CanonicalName:  canonicalName,
		ORCID:          orcid,
		Aliases:        make(map[string]bool),
		Affiliations:   make(map[string]bool),
		CoauthorIDs:    make(map[string]bool),
		Journals:       make(map[string]bool),
		PublicationIDs: make(map[string]bool),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Equal reports profile identity. Profiles are equal iff their ids are equal.
func (a *Author) Equal(b *Author) bool {
	return a != nil && b != nil && a.AuthorID == b.AuthorID
}

// SortedSet returns the keys of a set field in lexicographic order for
// stable serialization.
func SortedSet(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
