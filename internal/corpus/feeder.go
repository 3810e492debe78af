package corpus

import (
	"context"
	"sort"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
	"golang.org/x/time/rate"
)

// Feeder submits corpus publications onto the pipeline channel. When a DOI
// list is given, publications are submitted in DOI-list order and list
// entries with no corpus record are reported as failed. A positive rate
// paces submission, mirroring the politeness delay a live fetcher would
// apply.
type Feeder struct {
	pubs    []*models.Publication
	dois    []string
	limiter *rate.Limiter
}

// NewFeeder builds a feeder over loaded publications. dois may be nil;
// perSecond <= 0 disables pacing.
func NewFeeder(pubs []*models.Publication, dois []string, perSecond float64) *Feeder {
	f := &Feeder{pubs: pubs, dois: dois}
	if perSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return f
}

// Feed sends publications to out until the corpus is exhausted or the
// context is cancelled. It returns the DOI-list entries that matched no
// corpus publication. The channel is not closed; the caller owns it.
func (f *Feeder) Feed(ctx context.Context, out chan<- *models.Publication) (failedDOIs []string, err error) {
	ordered := f.pubs
	if len(f.dois) > 0 {
		byDOI := make(map[string]*models.Publication, len(f.pubs))
		for _, p := range f.pubs {
			if d := normalize.DOI(p.DOI); d != "" {
				byDOI[d] = p
			}
		}
		ordered = ordered[:0:0]
		seen := make(map[string]bool)
		for _, d := range f.dois {
			p, ok := byDOI[d]
			if !ok {
				failedDOIs = append(failedDOIs, d)
				continue
			}
			if !seen[p.PublicationID] {
				seen[p.PublicationID] = true
				ordered = append(ordered, p)
			}
		}
		sort.Strings(failedDOIs)
	}

	for _, p := range ordered {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return failedDOIs, err
			}
		}
		select {
		case out <- p:
		case <-ctx.Done():
			return failedDOIs, ctx.Err()
		}
	}
	return failedDOIs, nil
}
