// Package leaderboard keeps standings of one mode on one day in rank order.
package leaderboard

import "dailyboard/core"

// Board abstracts an ordered set of standings keyed by player.
type Board interface {
	Upsert(s core.Standing)
	Remove(player core.PlayerID)
	TopN(n int, keep func(core.Standing) bool) []core.Standing
	Get(player core.PlayerID) (core.Standing, bool)
	Len() int
}

// InRegion returns a TopN filter matching region, or nil for every region.
func InRegion(region string) func(core.Standing) bool {
	if region == "" || region == core.RegionAll {
		return nil
	}
	return func(s core.Standing) bool { return s.Region == region }
}
