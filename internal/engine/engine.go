// Package engine implements the three-way decision core: blocking, candidate
// scoring, dual-threshold decision, and the profile mutations that follow.
// The engine is single-lane: one publication at a time, mentions in position
// order, so every blocking result a later mention sees is reproducible.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/disambiguator/internal/compare"
	"github.com/lehigh-university-libraries/disambiguator/internal/config"
	"github.com/lehigh-university-libraries/disambiguator/internal/index"
	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
	"github.com/lehigh-university-libraries/disambiguator/internal/score"
	"github.com/lehigh-university-libraries/disambiguator/internal/trace"
)

// ContradictionError marks a data contradiction that must abort the run,
// such as a NEW decision that would violate ORCID uniqueness.
type ContradictionError struct {
	Op  string
	Err error
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("data contradiction during %s: %v", e.Op, e.Err)
}

func (e *ContradictionError) Unwrap() error { return e.Err }

// Engine owns the index mutations of a run.
type Engine struct {
	cfg    config.RunConfig
	idx    *index.Index
	scorer *score.Scorer
	writer *trace.Writer
	clock  func() time.Time

	authorSeq       int64
	skippedMentions int
}

// New creates an engine around the run's index, scorer, and trace writer.
func New(cfg config.RunConfig, idx *index.Index, scorer *score.Scorer, writer *trace.Writer) *Engine {
	return &Engine{
		cfg:    cfg,
		idx:    idx,
		scorer: scorer,
		writer: writer,
		clock:  time.Now,
	}
}

// SetClock overrides the profile timestamp source, for tests.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// SkippedMentions returns the count of mentions dropped for data-quality
// reasons.
func (e *Engine) SkippedMentions() int {
	return e.skippedMentions
}

// ProcessPublication resolves every mention of an admitted publication, in
// position order, committing decisions and wiring within-publication
// co-authorship. A returned error is always fatal to the run.
func (e *Engine) ProcessPublication(pub *models.Publication) ([]models.Decision, error) {
	decisions := make([]models.Decision, 0, len(pub.Mentions))

	for _, mention := range pub.Mentions {
		if normalize.Name(mention.Name) == "" {
			e.skippedMentions++
			slog.Warn("skipping mention with empty name",
				"publication_id", pub.PublicationID, "position", mention.Position)
			continue
		}
		if mention.ORCID != "" && !normalize.ValidORCID(mention.ORCID) {
			slog.Warn("dropping invalid orcid",
				"publication_id", pub.PublicationID, "position", mention.Position)
			mention.ORCID = ""
		}

		d, err := e.resolveMention(pub, mention)
		if err != nil {
			return decisions, err
		}
		if err := e.writer.Append(d, mention.Name); err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
	}

	e.wireCoauthors(decisions)
	return decisions, nil
}

// resolveMention runs blocking, scoring, and the three-way decision for one
// mention, mutating the index on merge and new.
func (e *Engine) resolveMention(pub *models.Publication, mention models.AuthorMention) (models.Decision, error) {
	d := models.Decision{
		MentionID:     models.MentionID(pub.PublicationID, mention.Position),
		PublicationID: pub.PublicationID,
		Position:      mention.Position,
	}

	candidates, keys := e.idx.Block(mention)
	d.CandidateCount = len(candidates)
	d.BlockingKeys = keys

	if len(candidates) == 0 {
		d.Kind = models.DecisionNew
		d.Components = e.emptyComponents()
		id, err := e.createProfile(pub, mention)
		if err != nil {
			return d, err
		}
		d.AuthorID = id
		return d, nil
	}

	bestID := ""
	bestScore := 0.0
	var bestComponents map[string]models.ScoreComponent
	for _, id := range candidates {
		candidate := e.idx.Get(id)
		vec := compare.Compare(compare.Input{
			Mention:                mention,
			Journal:                pub.Journal,
			Candidate:              candidate,
			CandidateCoauthorNames: e.coauthorNames(candidate),
		})
		total, components, err := e.scorer.Score(e.cfg.Mode, vec)
		if err != nil {
			return d, &ContradictionError{Op: "scoring", Err: err}
		}
		if e.cfg.Debug {
			slog.Debug("scored candidate",
				"publication_id", pub.PublicationID, "position", mention.Position,
				"candidate", id, "score", total)
		}
		// candidates iterate in ascending id order, so a strict comparison
		// breaks score ties toward the lowest author id
		if bestComponents == nil || total > bestScore {
			bestID, bestScore, bestComponents = id, total, components
		}
	}

	d.BestAuthorID = bestID
	d.ScoreTotal = bestScore
	d.Components = bestComponents

	switch {
	case bestScore >= e.cfg.AcceptThreshold:
		d.Kind = models.DecisionMerge
		d.AuthorID = bestID
		if err := e.mergeInto(bestID, pub, mention); err != nil {
			return d, err
		}
	case bestScore <= e.cfg.RejectThreshold:
		d.Kind = models.DecisionNew
		id, err := e.createProfile(pub, mention)
		if err != nil {
			return d, err
		}
		d.AuthorID = id
	default:
		d.Kind = models.DecisionUnknown
	}
	return d, nil
}

// createProfile instantiates a profile for a NEW decision. An ORCID collision
// here contradicts the scoring outcome and aborts the run.
func (e *Engine) createProfile(pub *models.Publication, mention models.AuthorMention) (string, error) {
	e.authorSeq++
	id := fmt.Sprintf("a-%06d", e.authorSeq)
	a := models.NewAuthor(id, mention.Name, normalize.ORCID(mention.ORCID), e.clock())
	for _, aff := range mention.Affiliations {
		if aff != "" {
			a.Affiliations[aff] = true
		}
	}
	if pub.Journal != "" {
		a.Journals[pub.Journal] = true
	}
	a.PublicationIDs[pub.PublicationID] = true
	if err := e.idx.Insert(a); err != nil {
		return "", &ContradictionError{Op: "new profile", Err: err}
	}
	return id, nil
}

// mergeInto unions the mention's evidence into an existing profile. The
// canonical name never changes; a differing surface form becomes an alias.
func (e *Engine) mergeInto(authorID string, pub *models.Publication, mention models.AuthorMention) error {
	delta := index.Delta{
		Affiliations:   mention.Affiliations,
		PublicationIDs: []string{pub.PublicationID},
	}
	if pub.Journal != "" {
		delta.Journals = []string{pub.Journal}
	}
	if a := e.idx.Get(authorID); a != nil && mention.Name != a.CanonicalName {
		delta.Aliases = []string{mention.Name}
	}
	return e.idx.Update(authorID, delta, e.clock())
}

// wireCoauthors links every resolved pair of mentions in one publication,
// both directions, once all of the publication's decisions are known.
func (e *Engine) wireCoauthors(decisions []models.Decision) {
	now := e.clock()
	for i := range decisions {
		if decisions[i].AuthorID == "" {
			continue
		}
		var others []string
		for j := range decisions {
			if i == j || decisions[j].AuthorID == "" || decisions[j].AuthorID == decisions[i].AuthorID {
				continue
			}
			others = append(others, decisions[j].AuthorID)
		}
		if len(others) > 0 {
			// ignore the unknown-author error: ids here come from this batch
			_ = e.idx.Update(decisions[i].AuthorID, index.Delta{CoauthorIDs: others}, now)
		}
	}
}

// coauthorNames resolves a candidate's coauthor ids to canonical names, in
// sorted id order.
func (e *Engine) coauthorNames(candidate *models.Author) []string {
	ids := models.SortedSet(candidate.CoauthorIDs)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if a := e.idx.Get(id); a != nil {
			names = append(names, a.CanonicalName)
		}
	}
	return names
}

// emptyComponents fills the trace breakdown for decisions made without any
// candidate, so every record carries the same component keys.
func (e *Engine) emptyComponents() map[string]models.ScoreComponent {
	components := make(map[string]models.ScoreComponent, len(compare.Features))
	for _, f := range compare.Features {
		components[f] = models.ScoreComponent{}
	}
	return components
}
