package evaluation

import (
	"sort"
)

// PRF is a precision/recall/F1 triple.
type PRF struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Metrics is the full evaluation result over the common mention set.
type Metrics struct {
	Pairwise PRF `json:"pairwise"`
	BCubed   PRF `json:"b_cubed"`

	TruePairs  int `json:"true_pairs"`
	FalsePairs int `json:"false_pairs"`
	MissPairs  int `json:"miss_pairs"`

	CommonMentions    int `json:"common_mentions"`
	OnlyInPredicted   int `json:"only_in_predicted"`
	OnlyInGold        int `json:"only_in_gold"`
	PredictedClusters int `json:"predicted_clusters"`
	GoldClusters      int `json:"gold_clusters"`
}

// Evaluate scores a predicted assignment against a gold assignment. Mentions
// present in only one of the two maps are excluded and counted as warnings.
func Evaluate(predicted, gold map[string]string) Metrics {
	var m Metrics

	common := make([]string, 0, len(predicted))
	for id := range predicted {
		if _, ok := gold[id]; ok {
			common = append(common, id)
		} else {
			m.OnlyInPredicted++
		}
	}
	for id := range gold {
		if _, ok := predicted[id]; !ok {
			m.OnlyInGold++
		}
	}
	sort.Strings(common)
	m.CommonMentions = len(common)

	pClusters := clusterSizes(predicted, common)
	gClusters := clusterSizes(gold, common)
	m.PredictedClusters = len(pClusters)
	m.GoldClusters = len(gClusters)

	m.Pairwise, m.TruePairs, m.FalsePairs, m.MissPairs = pairwise(predicted, gold, common)
	m.BCubed = bCubed(predicted, gold, common)
	return m
}

// pairwise scores all unordered pairs of the common mention set: a pair is a
// true positive when both assignments co-cluster it.
func pairwise(predicted, gold map[string]string, common []string) (PRF, int, int, int) {
	tp, fp, fn := 0, 0, 0
	for i := 0; i < len(common); i++ {
		for j := i + 1; j < len(common); j++ {
			sameP := predicted[common[i]] == predicted[common[j]]
			sameG := gold[common[i]] == gold[common[j]]
			switch {
			case sameP && sameG:
				tp++
			case sameP && !sameG:
				fp++
			case !sameP && sameG:
				fn++
			}
		}
	}
	return prf(tp, fp, fn), tp, fp, fn
}

// bCubed computes per-mention precision and recall over cluster memberships
// and macro-averages them.
func bCubed(predicted, gold map[string]string, common []string) PRF {
	if len(common) == 0 {
		return PRF{}
	}

	pMembers := clusterMembers(predicted, common)
	gMembers := clusterMembers(gold, common)

	var sumP, sumR float64
	for _, id := range common {
		pCluster := pMembers[predicted[id]]
		gCluster := gMembers[gold[id]]
		overlap := 0
		for _, other := range pCluster {
			if gold[other] == gold[id] {
				overlap++
			}
		}
		sumP += float64(overlap) / float64(len(pCluster))
		sumR += float64(overlap) / float64(len(gCluster))
	}

	p := sumP / float64(len(common))
	r := sumR / float64(len(common))
	return PRF{Precision: p, Recall: r, F1: harmonic(p, r)}
}

func clusterMembers(assignment map[string]string, common []string) map[string][]string {
	members := make(map[string][]string)
	for _, id := range common {
		members[assignment[id]] = append(members[assignment[id]], id)
	}
	return members
}

func clusterSizes(assignment map[string]string, common []string) map[string]int {
	sizes := make(map[string]int)
	for _, id := range common {
		sizes[assignment[id]]++
	}
	return sizes
}

func prf(tp, fp, fn int) PRF {
	var p, r float64
	if tp+fp > 0 {
		p = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		r = float64(tp) / float64(tp+fn)
	}
	return PRF{Precision: p, Recall: r, F1: harmonic(p, r)}
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
