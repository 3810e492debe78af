// Package corpus loads the input files of a run — the author-mention corpus
// and the DOI list — and turns them into Publication values for the pipeline.
// Two record shapes are accepted: flat mention records
// ({article_id, original_name, lastname, firstname, orcid?, affiliation?})
// and full Crossref article objects with an author array. Files may be JSON
// arrays, JSONL, or Parquet (flat records only).
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
	"github.com/parquet-go/parquet-go"
)

// FlatMention is one raw author-mention record of the crossref_authors file.
type FlatMention struct {
	ArticleID    string `json:"article_id" parquet:"article_id"`
	OriginalName string `json:"original_name" parquet:"original_name"`
	Lastname     string `json:"lastname" parquet:"lastname,optional"`
	Firstname    string `json:"firstname" parquet:"firstname,optional"`
	ORCID        string `json:"orcid" parquet:"orcid,optional"`
	Affiliation  string `json:"affiliation" parquet:"affiliation,optional"`
}

// crossrefArticle is the subset of a Crossref work record the loader reads.
type crossrefArticle struct {
	DOI            string           `json:"DOI"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Published      *crossrefDate    `json:"published"`
	Author         []crossrefAuthor `json:"author"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

type crossrefAuthor struct {
	Given       string               `json:"given"`
	Family      string               `json:"family"`
	ORCID       string               `json:"ORCID"`
	Affiliation []crossrefAffiliation `json:"affiliation"`
}

type crossrefAffiliation struct {
	Name string `json:"name"`
}

// Loader reads one corpus file.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given corpus file.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the whole corpus into publications, in file order. The limit
// bounds the number of publications; limit <= 0 means no bound.
func (l *Loader) Load(limit int) ([]*models.Publication, error) {
	ext := strings.ToLower(filepath.Ext(l.path))
	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".json", ".jsonl":
		return l.loadJSON(ext == ".jsonl", limit)
	default:
		return nil, fmt.Errorf("unsupported corpus format: %s (supported: .json, .jsonl, .parquet)", ext)
	}
}

func (l *Loader) loadJSON(lines bool, limit int) ([]*models.Publication, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer file.Close()

	var raws []json.RawMessage
	if lines {
		scanner := bufio.NewScanner(file)
		const maxCapacity = 10 * 1024 * 1024
		buf := make([]byte, maxCapacity)
		scanner.Buffer(buf, maxCapacity)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			raws = append(raws, json.RawMessage(line))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading corpus: %w", err)
		}
	} else {
		if err := json.NewDecoder(file).Decode(&raws); err != nil {
			return nil, fmt.Errorf("failed to parse corpus file: %w", err)
		}
	}

	b := newBuilder()
	for i, raw := range raws {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			slog.Warn("skipping malformed corpus record", "index", i, "error", err)
			continue
		}
		if _, isArticle := probe["author"]; isArticle {
			var article crossrefArticle
			if err := json.Unmarshal(raw, &article); err != nil {
				slog.Warn("skipping malformed article record", "index", i, "error", err)
				continue
			}
			b.addArticle(article)
		} else {
			var flat FlatMention
			if err := json.Unmarshal(raw, &flat); err != nil {
				slog.Warn("skipping malformed mention record", "index", i, "error", err)
				continue
			}
			b.addFlat(flat)
		}
	}
	return b.finish(limit), nil
}

func (l *Loader) loadParquet(limit int) ([]*models.Publication, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[FlatMention](pf)
	defer reader.Close()

	b := newBuilder()
	rows := make([]FlatMention, 128)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			b.addFlat(rows[i])
		}
		if err != nil {
			break
		}
	}
	return b.finish(limit), nil
}

// builder groups incoming mention records into publications by article id,
// preserving first-appearance order.
type builder struct {
	order []string
	byKey map[string]*models.Publication
}

func newBuilder() *builder {
	return &builder{byKey: make(map[string]*models.Publication)}
}

func (b *builder) pub(key string) *models.Publication {
	if p, ok := b.byKey[key]; ok {
		return p
	}
	p := &models.Publication{PublicationID: fmt.Sprintf("pub-%06d", len(b.order)+1)}
	b.byKey[key] = p
	b.order = append(b.order, key)
	return p
}

func (b *builder) addFlat(m FlatMention) {
	if m.ArticleID == "" {
		return
	}
	p := b.pub(m.ArticleID)
	if p.DOI == "" && looksLikeDOI(m.ArticleID) {
		p.DOI = normalize.DOI(m.ArticleID)
	}

	name := strings.TrimSpace(m.OriginalName)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(m.Firstname) + " " + strings.TrimSpace(m.Lastname))
	}
	mention := models.AuthorMention{
		Name:     name,
		ORCID:    strings.TrimSpace(m.ORCID),
		Position: len(p.Mentions) + 1,
	}
	if aff := strings.TrimSpace(m.Affiliation); aff != "" {
		mention.Affiliations = []string{aff}
	}
	p.Mentions = append(p.Mentions, mention)
}

func (b *builder) addArticle(a crossrefArticle) {
	key := a.DOI
	if key == "" && len(a.Title) > 0 {
		key = a.Title[0]
	}
	if key == "" || len(a.Author) == 0 {
		return
	}
	p := b.pub(key)
	p.DOI = normalize.DOI(a.DOI)
	if len(a.Title) > 0 {
		p.Title = a.Title[0]
	}
	if len(a.ContainerTitle) > 0 {
		p.Journal = a.ContainerTitle[0]
	}
	if a.Published != nil && len(a.Published.DateParts) > 0 && len(a.Published.DateParts[0]) > 0 {
		p.Year = a.Published.DateParts[0][0]
	}

	for _, author := range a.Author {
		name := strings.TrimSpace(strings.TrimSpace(author.Given) + " " + strings.TrimSpace(author.Family))
		mention := models.AuthorMention{
			Name:     name,
			ORCID:    strings.TrimSpace(author.ORCID),
			Position: len(p.Mentions) + 1,
		}
		for _, aff := range author.Affiliation {
			if aff.Name != "" {
				mention.Affiliations = append(mention.Affiliations, aff.Name)
			}
		}
		p.Mentions = append(p.Mentions, mention)
	}
}

// finish fills each mention's co-author names and applies the publication
// limit.
func (b *builder) finish(limit int) []*models.Publication {
	pubs := make([]*models.Publication, 0, len(b.order))
	for _, key := range b.order {
		pubs = append(pubs, b.byKey[key])
	}
	if limit > 0 && len(pubs) > limit {
		pubs = pubs[:limit]
	}
	for _, p := range pubs {
		for i := range p.Mentions {
			var coauthors []string
			for j := range p.Mentions {
				if i != j && p.Mentions[j].Name != "" {
					coauthors = append(coauthors, p.Mentions[j].Name)
				}
			}
			p.Mentions[i].Coauthors = coauthors
		}
	}
	slog.Debug("corpus loaded", "publications", len(pubs))
	return pubs
}

func looksLikeDOI(s string) bool {
	return strings.HasPrefix(normalize.DOI(s), "10.") && strings.Contains(s, "/")
}

// LoadDOIs reads the DOI list file: a JSON array of strings, empty strings
// filtered, each DOI normalized.
func LoadDOIs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dois file: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse dois file: %w", err)
	}
	dois := make([]string, 0, len(raw))
	for _, d := range raw {
		if n := normalize.DOI(d); n != "" {
			dois = append(dois, n)
		}
	}
	return dois, nil
}
