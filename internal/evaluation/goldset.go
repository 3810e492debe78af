// Package evaluation builds the ORCID gold set and scores predicted cluster
// assignments against it with B-cubed and pairwise F1.
package evaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
	"github.com/lehigh-university-libraries/disambiguator/internal/normalize"
)

// GoldSet maps each gold mention to its ORCID cluster.
type GoldSet struct {
	// Mentions maps mention_id -> orcid.
	Mentions map[string]string `json:"mentions"`
	// Clusters maps orcid -> sorted mention ids.
	Clusters map[string][]string `json:"clusters"`

	MinMentions     int `json:"min_mentions"`
	TotalMentions   int `json:"total_mentions"`
	WithORCID       int `json:"mentions_with_orcid"`
	DroppedClusters int `json:"dropped_clusters"`
}

// BuildGoldSet collects every mention carrying a valid ORCID, groups by
// ORCID, and drops groups smaller than minMentions.
func BuildGoldSet(pubs []*models.Publication, minMentions int) *GoldSet {
	gs := &GoldSet{
		Mentions:    make(map[string]string),
		Clusters:    make(map[string][]string),
		MinMentions: minMentions,
	}

	groups := make(map[string][]string)
	for _, pub := range pubs {
		for _, mention := range pub.Mentions {
			gs.TotalMentions++
			orcid := normalize.ORCID(mention.ORCID)
			if orcid == "" {
				continue
			}
			gs.WithORCID++
			groups[orcid] = append(groups[orcid], models.MentionID(pub.PublicationID, mention.Position))
		}
	}

	for orcid, mentionIDs := range groups {
		if len(mentionIDs) < minMentions {
			gs.DroppedClusters++
			continue
		}
		sorted := append([]string(nil), mentionIDs...)
		sort.Strings(sorted)
		gs.Clusters[orcid] = sorted
		for _, id := range sorted {
			gs.Mentions[id] = orcid
		}
	}

	slog.Info("gold set built",
		"total_mentions", gs.TotalMentions,
		"with_orcid", gs.WithORCID,
		"clusters", len(gs.Clusters),
		"dropped_small_clusters", gs.DroppedClusters)
	return gs
}

// Save writes the gold set as JSON.
func (gs *GoldSet) Save(path string) error {
	data, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal gold set: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write gold set: %w", err)
	}
	return nil
}

// LoadGoldSet reads a gold set JSON file.
func LoadGoldSet(path string) (*GoldSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gold set: %w", err)
	}
	var gs GoldSet
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("failed to parse gold set: %w", err)
	}
	if gs.Mentions == nil {
		gs.Mentions = make(map[string]string)
		for orcid, ids := range gs.Clusters {
			for _, id := range ids {
				gs.Mentions[id] = orcid
			}
		}
	}
	return &gs, nil
}
