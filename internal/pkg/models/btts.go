package models

import "encoding/json"

// UpcomingMatch is a fixture from the provider's "not finished" feed.
type UpcomingMatch struct {
	ID         string   `json:"id"`
	League     string   `json:"league"`
	DateOrigin string   `json:"date_origin"` // Raw provider timestamp, e.g. "2024-01-01 14:37:00"
	Home       string   `json:"home"`
	Away       string   `json:"away"`
	BTTSOdds   *float64 `json:"btts_odds,omitempty"` // nil when the market is missing or malformed
}

// Label renders the "home x away" form used in prompts and selections.
func (m UpcomingMatch) Label() string {
	return m.Home + " x " + m.Away
}

// CompletedMatch is a finished fixture with a final score.
type CompletedMatch struct {
	ID         string `json:"id"`
	League     string `json:"league"`
	Home       string `json:"home"`
	Away       string `json:"away"`
	HomeGoals  int    `json:"home_goals"`
	AwayGoals  int    `json:"away_goals"`
	BothScored bool   `json:"both_scored"`
}

// Recommendation is the model's answer. Selection is kept raw because the
// model returns either a 1-based number or a "home x away" string.
type Recommendation struct {
	Selection            json.RawMessage `json:"selection"`
	Justification        string          `json:"justification"`
	EstimatedProbability *float64        `json:"-"`
	RecentForm           *float64        `json:"-"` // BTTS % over the last 20 completed matches
}

// Entry holds everything the notifier needs to render a pick message.
type Entry struct {
	League        string
	Home          string
	Away          string
	Minute        int
	Justification string
	Link          string
	RecentForm    *float64
}

// ActivePick is the single recommendation waiting for its result.
type ActivePick struct {
	MatchID   string `json:"match_id"`
	MessageID int    `json:"message_id"`
}
