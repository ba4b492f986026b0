package db

import "time"

// RankingLocation is the wall clock the daily and monthly windows follow.
var RankingLocation = loadRankingLocation()

func loadRankingLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// RankingSince returns the start of the ranking window and the normalised period
// name. Unknown periods fall back to "weekly".
func RankingSince(period string, now time.Time) (time.Time, string) {
	local := now.In(RankingLocation)
	switch period {
	case "daily":
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, RankingLocation), "daily"
	case "monthly":
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, RankingLocation), "monthly"
	default:
		return now.Add(-7 * 24 * time.Hour), "weekly"
	}
}
