package agg

import (
	"sort"
	"time"
)

// GroupCompare orders two league groups: negative when a sorts first,
// positive when b does, zero to defer to the next comparator in the chain.
type GroupCompare func(a, b *LeagueGroup) int

// SortGroups applies comparators in order as one stable chained sort.
// Ties on every key preserve input order.
func SortGroups(groups []LeagueGroup, cmps ...GroupCompare) {
	sort.SliceStable(groups, func(i, j int) bool {
		for _, cmp := range cmps {
			if c := cmp(&groups[i], &groups[j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// ByLeagueTier orders by position in the hot-league whitelist, ascending.
// Leagues not on the list sort after all listed ones.
func ByLeagueTier(hotLeagues []int) GroupCompare {
	tier := make(map[int]int, len(hotLeagues))
	for i, id := range hotLeagues {
		tier[id] = i
	}
	rank := func(leagueID int) int {
		if t, ok := tier[leagueID]; ok {
			return t
		}
		return len(hotLeagues)
	}
	return func(a, b *LeagueGroup) int {
		return rank(a.LeagueID) - rank(b.LeagueID)
	}
}

// ByOddsCountDesc orders by the number of matches carrying odds, most first.
func ByOddsCountDesc() GroupCompare {
	count := func(g *LeagueGroup) int {
		n := 0
		for _, m := range g.Matches {
			if m.HasOdds {
				n++
			}
		}
		return n
	}
	return func(a, b *LeagueGroup) int {
		return count(b) - count(a)
	}
}

// ByEarliestKickoff orders by each group's earliest kickoff, ascending.
func ByEarliestKickoff() GroupCompare {
	earliest := func(g *LeagueGroup) time.Time {
		var min time.Time
		for _, m := range g.Matches {
			if min.IsZero() || m.Kickoff.Before(min) {
				min = m.Kickoff
			}
		}
		return min
	}
	return func(a, b *LeagueGroup) int {
		ta, tb := earliest(a), earliest(b)
		switch {
		case ta.Before(tb):
			return -1
		case tb.Before(ta):
			return 1
		default:
			return 0
		}
	}
}
