package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuseRRF_DocumentInMultipleListsOutranksSingleList(t *testing.T) {
	lists := []RankedList{
		{"a", "b", "c"},
		{"b", "a", "c"},
	}
	results := FuseRRF(lists, 60, 0, 0)
	require.Len(t, results, 3)
	require.Equal(t, "a", results[0].Docid)
}

func TestFuseRRF_TopRankBonusAppliesToRankOneAcrossAnyList(t *testing.T) {
	lists := []RankedList{
		{"a", "b", "c", "d"},
		{"b", "a", "c", "d"},
	}
	noBonus := FuseRRF(lists, 60, 0, 0)
	withBonus := FuseRRF(lists, 60, 0.05, 0.02)

	var noBonusA, withBonusA, noBonusD, withBonusD float64
	for _, r := range noBonus {
		switch r.Docid {
		case "a":
			noBonusA = r.Score
		case "d":
			noBonusD = r.Score
		}
	}
	for _, r := range withBonus {
		switch r.Docid {
		case "a":
			withBonusA = r.Score
		case "d":
			withBonusD = r.Score
		}
	}
	// Scores are normalized so the top result is 1.0 either way; the bonus
	// shows up as a's lead over d, whose best rank (4) earns no bonus.
	require.Greater(t, withBonusA-withBonusD, noBonusA-noBonusD)
}

func TestFuseRRF_RunnerUpBonusAppliesToRanksTwoAndThree(t *testing.T) {
	lists := []RankedList{{"a", "b", "c", "d"}}
	results := FuseRRF(lists, 60, 0.05, 0.02)

	byDocid := make(map[string]FusedResult)
	for _, r := range results {
		byDocid[r.Docid] = r
	}
	require.Equal(t, 1, byDocid["a"].BestRank)
	require.Equal(t, 2, byDocid["b"].BestRank)
	require.Equal(t, 3, byDocid["c"].BestRank)
	require.Equal(t, 4, byDocid["d"].BestRank)
}

func TestFuseRRF_NormalizesTopScoreToOne(t *testing.T) {
	lists := []RankedList{{"a", "b"}, {"a", "c"}}
	results := FuseRRF(lists, 60, 0, 0)
	require.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestFuseRRF_TieBreaksLexicographicallyByDocid(t *testing.T) {
	lists := []RankedList{{"z"}, {"a"}}
	results := FuseRRF(lists, 60, 0, 0)
	require.Equal(t, "a", results[0].Docid)
	require.Equal(t, "z", results[1].Docid)
}

func TestFuseRRF_EmptyListsProduceEmptyResult(t *testing.T) {
	results := FuseRRF(nil, 60, 0, 0)
	require.Empty(t, results)
}

func TestFuseRRF_DuplicatedAgreeingListKeepsNormalizedScore(t *testing.T) {
	single := FuseRRF([]RankedList{{"a", "b"}}, 60, 0, 0)
	duplicated := FuseRRF([]RankedList{{"a", "b"}, {"a", "b"}}, 60, 0, 0)

	var singleA, duplicatedA float64
	for _, r := range single {
		if r.Docid == "a" {
			singleA = r.Score
		}
	}
	for _, r := range duplicated {
		if r.Docid == "a" {
			duplicatedA = r.Score
		}
	}
	// Both normalize their own top score to 1.0, but relative spacing
	// between a and b should be unaffected by uniform duplication --
	// what matters structurally is that duplicating a list that agrees
	// with itself doesn't change relative order.
	require.Equal(t, singleA, duplicatedA)
}

func TestFuseRRF_DefaultsKWhenNonPositive(t *testing.T) {
	a := FuseRRF([]RankedList{{"a", "b"}}, 0, 0, 0)
	b := FuseRRF([]RankedList{{"a", "b"}}, DefaultRRFConstant, 0, 0)
	require.Equal(t, a, b)
}
