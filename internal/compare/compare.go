// Package compare produces the per-feature comparison vector for one
// (mention, candidate profile) pair. Every comparator is pure: the same
// inputs always produce the same (value, bin) pair.
package compare

import (
	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
	"github.com/lehigh-university-libraries/disambiguator/internal/similarity"
)

// Feature names, in scoring order.
const (
	FeatureName        = "name"
	FeatureORCID       = "orcid"
	FeatureCoauthor    = "coauthor"
	FeatureJournal     = "journal"
	FeatureAffiliation = "affiliation"
)

// Features lists all comparator features in stable order.
var Features = []string{FeatureName, FeatureORCID, FeatureCoauthor, FeatureJournal, FeatureAffiliation}

// Result is one feature's raw similarity and its discrete bin.
type Result struct {
	Value float64
	Bin   string
}

// Vector is the full comparison vector keyed by feature name.
type Vector map[string]Result

// Input bundles one side of a comparison. The candidate's coauthor ids are
// resolved to names by the caller so the comparators stay pure and never
// touch the index.
type Input struct {
	Mention                models.AuthorMention
	Journal                string // journal of the mention's publication
	Candidate              *models.Author
	CandidateCoauthorNames []string
}

// Compare builds the comparison vector for a mention against a candidate
// profile.
func Compare(in Input) Vector {
	return Vector{
		FeatureName:        Name(in.Mention.Name, in.Candidate),
		FeatureORCID:       ORCID(in.Mention.ORCID, in.Candidate.ORCID),
		FeatureCoauthor:    Coauthor(in.Mention.Coauthors, in.CandidateCoauthorNames),
		FeatureJournal:     Journal(in.Journal, in.Candidate.Journals),
		FeatureAffiliation: Affiliation(in.Mention.Affiliations, in.Candidate.Affiliations),
	}
}

// Name compares the mention name against the candidate's canonical name and
// every alias, keeping the best Jaro-Winkler score. Names that differ only by
// initial expansion ("j smith" vs "john smith") collapse to at least high.
func Name(mentionName string, candidate *models.Author) Result {
	m := normalize.Name(mentionName)
	if m == "" {
		return Result{Value: 0, Bin: "none"}
	}

	best := similarity.JaroWinkler(m, normalize.Name(candidate.CanonicalName))
	initialPair := initialExpansion(mentionName, candidate.CanonicalName)
	for alias := range candidate.Aliases {
		if s := similarity.JaroWinkler(m, normalize.Name(alias)); s > best {
			best = s
		}
		if !initialPair {
			initialPair = initialExpansion(mentionName, alias)
		}
	}

	// initial expansion is as strong evidence as a high string match even
	// when the edit distance says otherwise
	if initialPair && best < 0.90 {
		best = 0.90
	}
	return Result{Value: best, Bin: nameBin(best)}
}

// initialExpansion reports whether two names share a surname and the given
// tokens of one side are single-letter prefixes of the other's.
func initialExpansion(a, b string) bool {
	if normalize.Surname(a) == "" || normalize.Surname(a) != normalize.Surname(b) {
		return false
	}
	ga, gb := normalize.GivenTokens(a), normalize.GivenTokens(b)
	return prefixedInitials(ga, gb) || prefixedInitials(gb, ga)
}

func prefixedInitials(short, long []string) bool {
	if len(short) == 0 || len(short) > len(long) {
		return false
	}
	initialSeen := false
	for i, t := range short {
		if len(t) == 1 {
			initialSeen = true
		}
		if t != long[i] && (len(t) != 1 || t[0] != long[i][0]) {
			return false
		}
	}
	return initialSeen
}

func nameBin(v float64) string {
	switch {
	case v >= 0.98:
		return "exact"
	case v >= 0.90:
		return "high"
	case v >= 0.75:
		return "medium"
	case v >= 0.60:
		return "low"
	default:
		return "none"
	}
}

// ORCID is the strongest single feature: both present and equal is match,
// both present and different is mismatch, anything else carries no
// information.
func ORCID(mentionORCID, candidateORCID string) Result {
	m := normalize.ORCID(mentionORCID)
	c := normalize.ORCID(candidateORCID)
	switch {
	case m == "" || c == "":
		return Result{Value: 0.5, Bin: "missing"}
	case m == c:
		return Result{Value: 1, Bin: "match"}
	default:
		return Result{Value: 0, Bin: "mismatch"}
	}
}

// Coauthor compares the two co-author name sets reduced to surname+initial
// keys, by Jaccard.
func Coauthor(mentionCoauthors, candidateCoauthors []string) Result {
	v := similarity.Jaccard(surnameInitialSet(mentionCoauthors), surnameInitialSet(candidateCoauthors))
	return Result{Value: v, Bin: setBin(v)}
}

func surnameInitialSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if k := SurnameInitialKey(name); k != "" {
			set[k] = true
		}
	}
	return set
}

// SurnameInitialKey projects a name to its "surname initial" form.
func SurnameInitialKey(name string) string {
	sur := normalize.Surname(name)
	if sur == "" {
		return ""
	}
	if ini := normalize.FirstInitial(name); ini != "" {
		return sur + " " + ini
	}
	return sur
}

// Journal is Jaccard over normalized journal title sets. The mention side is
// the single journal of its publication.
func Journal(mentionJournal string, candidateJournals map[string]bool) Result {
	a := make(map[string]bool, 1)
	if n := normalize.Name(mentionJournal); n != "" {
		a[n] = true
	}
	b := make(map[string]bool, len(candidateJournals))
	for j := range candidateJournals {
		if n := normalize.Name(j); n != "" {
			b[n] = true
		}
	}
	v := similarity.Jaccard(a, b)
	return Result{Value: v, Bin: setBin(v)}
}

// Affiliation takes the best pairwise Jaro-Winkler over the two normalized
// institution sets, binned like name.
func Affiliation(mentionAffiliations []string, candidateAffiliations map[string]bool) Result {
	best := 0.0
	for _, ma := range mentionAffiliations {
		m := normalize.Name(ma)
		if m == "" {
			continue
		}
		for ca := range candidateAffiliations {
			if s := similarity.JaroWinkler(m, normalize.Name(ca)); s > best {
				best = s
			}
		}
	}
	return Result{Value: best, Bin: nameBin(best)}
}

func setBin(v float64) string {
	switch {
	case v >= 0.5:
		return "high"
	case v >= 0.2:
		return "medium"
	case v > 0:
		return "low"
	default:
		return "none"
	}
}
