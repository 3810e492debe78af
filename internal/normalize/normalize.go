// Package normalize holds the pure text normalization functions shared by the
// deduplicator, the comparators, and the blocking indices. Every function in
// this package is deterministic; the string normalizers (Title, Name, DOI,
// ORCID, Collapse) are also idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "for": true,
	"and": true, "in": true, "on": true, "to": true, "by": true,
}

var (
	doiPrefixRE  = regexp.MustCompile(`^https?://(dx\.)?doi\.org/`)
	orcidRE      = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	orcidBareRE  = regexp.MustCompile(`^\d{15}[\dX]$`)
	multiSpaceRE = regexp.MustCompile(`\s+`)
)

// nfkc applies Unicode NFKC so that fullwidth and composed forms compare equal.
func nfkc(s string) string {
	out, _, err := transform.String(norm.NFKC, s)
	if err != nil {
		return s
	}
	return out
}

// Title lowercases, strips punctuation, removes stopwords and collapses
// whitespace. The result is the dedup key for a publication title.
func Title(title string) string {
	s := strings.ToLower(nfkc(title))
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if !titleStopwords[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// Name normalizes a person or institution name: NFKC, lowercase,
// punctuation to space, whitespace collapsed.
func Name(name string) string {
	s := strings.ToLower(nfkc(name))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DOI lowercases, strips the resolver URL prefix and trims. Empty input
// stays empty.
func DOI(doi string) string {
	s := strings.TrimSpace(strings.ToLower(doi))
	s = doiPrefixRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ORCID canonicalizes an ORCID iD: trims, uppercases the checksum X, strips a
// resolver prefix, and re-groups bare 16-character forms into dddd-dddd-dddd-dddX.
// Returns "" when the input cannot be a valid ORCID.
func ORCID(orcid string) string {
	s := strings.TrimSpace(orcid)
	s = strings.TrimPrefix(s, "https://orcid.org/")
	s = strings.TrimPrefix(s, "http://orcid.org/")
	s = strings.ToUpper(s)
	if orcidBareRE.MatchString(s) {
		s = s[0:4] + "-" + s[4:8] + "-" + s[8:12] + "-" + s[12:16]
	}
	if !orcidRE.MatchString(s) {
		return ""
	}
	return s
}

// ValidORCID reports whether the canonicalized form is a well-formed ORCID.
func ValidORCID(orcid string) bool {
	return ORCID(orcid) != ""
}

// Surname extracts the blocking surname token from a raw name. Comma forms
// ("Smith, John") take the pre-comma part; otherwise the last token of the
// normalized name wins.
func Surname(name string) string {
	raw := strings.TrimSpace(name)
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[:i]
	}
	n := Name(raw)
	fields := strings.Fields(n)
	if len(fields) == 0 {
		return ""
	}
	if strings.Contains(name, ",") {
		// pre-comma part is the full surname, possibly multi-token
		return strings.Join(fields, " ")
	}
	return fields[len(fields)-1]
}

// GivenTokens returns the normalized name tokens that are not part of the
// surname.
func GivenTokens(name string) []string {
	surTokens := make(map[string]bool)
	for _, t := range strings.Fields(Surname(name)) {
		surTokens[t] = true
	}
	var given []string
	for _, f := range strings.Fields(Name(name)) {
		if !surTokens[f] {
			given = append(given, f)
		}
	}
	return given
}

// FirstInitial returns the first given-name initial, or "" when the name has
// a single token.
func FirstInitial(name string) string {
	given := GivenTokens(name)
	if len(given) == 0 {
		return ""
	}
	return given[0][:1]
}

// Script classifies the dominant script of a name for the redacted trace
// structure summary.
func Script(name string) string {
	var latin, cyrillic, cjk, other int
	for _, r := range name {
		switch {
		case !unicode.IsLetter(r):
			continue
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r),
			unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
			cjk++
		default:
			other++
		}
	}
	counts := map[string]int{"latin": latin, "cyrillic": cyrillic, "cjk": cjk, "other": other}
	nonzero := 0
	best, bestN := "other", 0
	for _, k := range []string{"latin", "cyrillic", "cjk", "other"} {
		if counts[k] > 0 {
			nonzero++
		}
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	if bestN == 0 {
		return "other"
	}
	if nonzero > 1 {
		return "mixed"
	}
	return best
}

// Collapse reduces any whitespace run to a single space and trims.
func Collapse(s string) string {
	return strings.TrimSpace(multiSpaceRE.ReplaceAllString(s, " "))
}
