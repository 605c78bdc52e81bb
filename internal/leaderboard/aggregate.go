package leaderboard

import (
	"slices"
	"strings"

	"github.com/victornm/raboard/internal/domain"
)

const DefaultTopN = 10

// Policy controls which users are ranked and how many are shown in full.
type Policy struct {
	TopN int
	// IncludeZeroProgress keeps users with no completed achievement in the ranking.
	IncludeZeroProgress bool
}

// Aggregation is the ranked view of a set of per-user results.
type Aggregation struct {
	GameInfo domain.GameInfo
	// Top holds at most TopN users, best first.
	Top []domain.UserProgress
	// Overflow holds the handles of the ranked users beyond Top, in alphabetical order.
	Overflow []domain.Handle
	// Failed is the number of results dropped because their fetch failed.
	Failed int
}

// Aggregate ranks results. Failed fetches are never ranked. GameInfo comes from the first successful
// result in roster order carrying both a title and an icon, fallback otherwise.
func Aggregate(results []domain.Result, fallback domain.GameInfo, p Policy) Aggregation {
	topN := p.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	agg := Aggregation{GameInfo: fallback}
	gameInfoSet := false

	ranked := make([]domain.UserProgress, 0, len(results))
	for _, r := range results {
		if r.Progress.Status != domain.StatusOK {
			agg.Failed++
			continue
		}

		if !gameInfoSet && r.GameInfo.Valid() {
			agg.GameInfo = r.GameInfo
			gameInfoSet = true
		}

		if r.Progress.CompletedAchievements == 0 && !p.IncludeZeroProgress {
			continue
		}

		ranked = append(ranked, r.Progress)
	}

	Rank(ranked)

	cut := min(topN, len(ranked))
	agg.Top = ranked[:cut]

	agg.Overflow = make([]domain.Handle, 0, len(ranked)-cut)
	for _, up := range ranked[cut:] {
		agg.Overflow = append(agg.Overflow, up.Handle)
	}
	slices.Sort(agg.Overflow)

	return agg
}

// Rank sorts users by completion percentage, then completed achievements, both descending,
// then by handle ascending.
func Rank(ups []domain.UserProgress) {
	slices.SortFunc(ups, Compare)
}

// Compare orders a before b when a ranks higher.
func Compare(a, b domain.UserProgress) int {
	if c := b.CompletionPercentage.Cmp(a.CompletionPercentage); c != 0 {
		return c
	}

	switch {
	case a.CompletedAchievements > b.CompletedAchievements:
		return -1
	case a.CompletedAchievements < b.CompletedAchievements:
		return 1
	}

	return strings.Compare(string(a.Handle), string(b.Handle))
}
