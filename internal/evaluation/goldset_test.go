package evaluation

import (
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/disambiguator/internal/models"
)

func goldCorpus() []*models.Publication {
	return []*models.Publication{
		{
			PublicationID: "pub-000001",
			Mentions: []models.AuthorMention{
				{Name: "John Smith", ORCID: "0000-0001-2345-6789", Position: 1},
				{Name: "Maria Gonzalez", ORCID: "0000-0002-1825-0097", Position: 2},
				{Name: "No Orcid Here", Position: 3},
			},
		},
		{
			PublicationID: "pub-000002",
			Mentions: []models.AuthorMention{
				{Name: "J. Smith", ORCID: "0000-0001-2345-6789", Position: 1},
				{Name: "Broken", ORCID: "not-valid", Position: 2},
			},
		},
	}
}

func TestBuildGoldSet(t *testing.T) {
	gs := BuildGoldSet(goldCorpus(), 2)

	if gs.TotalMentions != 5 {
		t.Errorf("total mentions = %d, want 5", gs.TotalMentions)
	}
	if gs.WithORCID != 3 {
		t.Errorf("mentions with orcid = %d, want 3 (invalid orcid excluded)", gs.WithORCID)
	}

	// only the smith orcid reaches min_mentions; the single gonzalez
	// mention is dropped
	if len(gs.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(gs.Clusters))
	}
	cluster := gs.Clusters["0000-0001-2345-6789"]
	if len(cluster) != 2 {
		t.Fatalf("smith cluster = %v, want 2 mentions", cluster)
	}
	if cluster[0] != "pub-000001#1" || cluster[1] != "pub-000002#1" {
		t.Errorf("cluster mention ids = %v", cluster)
	}
	if gs.DroppedClusters != 1 {
		t.Errorf("dropped clusters = %d, want 1", gs.DroppedClusters)
	}
	if gs.Mentions["pub-000001#1"] != "0000-0001-2345-6789" {
		t.Errorf("mention map = %v", gs.Mentions)
	}
}

func TestGoldSetSaveLoad(t *testing.T) {
	gs := BuildGoldSet(goldCorpus(), 2)

	path := filepath.Join(t.TempDir(), "goldset.json")
	if err := gs.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := LoadGoldSet(path)
	if err != nil {
		t.Fatalf("LoadGoldSet returned error: %v", err)
	}
	if len(loaded.Mentions) != len(gs.Mentions) {
		t.Errorf("loaded %d mentions, want %d", len(loaded.Mentions), len(gs.Mentions))
	}
	for id, orcid := range gs.Mentions {
		if loaded.Mentions[id] != orcid {
			t.Errorf("mention %s = %q, want %q", id, loaded.Mentions[id], orcid)
		}
	}
}
