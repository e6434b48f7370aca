package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// RankedList is one ranked list of document IDs, best first. The hybrid
// pipeline duplicates the original query's lists to weight it as if it
// appeared twice (spec.md §4.I), so FuseRRF itself takes no per-list
// weight — duplication is the weighting mechanism.
type RankedList []string

// FusedResult is a single document's outcome from FuseRRF.
type FusedResult struct {
	Docid string
	// Score is the RRF score plus top-rank bonus, normalized to the
	// [0,1] range of the fused set (spec.md §4.I step 7's
	// normalized_rrf).
	Score float64
	// BestRank is the document's best (lowest) 1-indexed rank across
	// every list it appeared in.
	BestRank int
}

// FuseRRF combines any number of ranked lists with Reciprocal Rank
// Fusion, generalized from the teacher's RRFFusion.Fuse (which only
// accepted exactly two lists, BM25 and vector) to accept an arbitrary
// number — the hybrid pipeline's 4-query x 2-list fan-out. k defaults to
// DefaultRRFConstant if <= 0. topRankBonus is added to a document's score
// if its best rank across all lists is 1; runnerUpBonus if its best rank
// is 2 or 3 (spec.md §4.I steps 3-4).
//
// Results are sorted by score descending, tie-broken lexicographically by
// docid, and normalized so the top score is 1.0.
func FuseRRF(lists []RankedList, k int, topRankBonus, runnerUpBonus float64) []FusedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	type accumulator struct {
		score    float64
		bestRank int
	}
	accs := make(map[string]*accumulator)

	for _, list := range lists {
		for i, docid := range list {
			rank := i + 1
			a, ok := accs[docid]
			if !ok {
				a = &accumulator{bestRank: rank}
				accs[docid] = a
			}
			a.score += 1.0 / float64(k+rank)
			if rank < a.bestRank {
				a.bestRank = rank
			}
		}
	}

	for _, a := range accs {
		switch {
		case a.bestRank == 1:
			a.score += topRankBonus
		case a.bestRank <= 3:
			a.score += runnerUpBonus
		}
	}

	results := make([]FusedResult, 0, len(accs))
	for docid, a := range accs {
		results = append(results, FusedResult{Docid: docid, Score: a.score, BestRank: a.bestRank})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Docid < results[j].Docid
	})

	normalizeFused(results)
	return results
}

func normalizeFused(results []FusedResult) {
	if len(results) == 0 {
		return
	}
	max := results[0].Score
	if max == 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
	}
}
