package recommender

import (
	"fmt"
	"strings"

	"github.com/Vodeneev/bttsbot/internal/monitor/feed"
	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// recentFormWindow is the window behind the "last N matches" line of a pick message.
const recentFormWindow = 20

// historyStats are the figures derived from completed matches for the prompt.
type historyStats struct {
	size       int
	streak3    string
	streak4    string
	streak5    string
	window5    int
	window10   int
	window20   int
	recentForm float64
}

func computeStats(history []models.CompletedMatch) historyStats {
	return historyStats{
		size:       len(history),
		streak3:    streak(tail(history, 3)),
		streak4:    streak(tail(history, 4)),
		streak5:    streak(tail(history, 5)),
		window5:    len(tail(history, 5)),
		window10:   len(tail(history, 10)),
		window20:   len(tail(history, 20)),
		recentForm: feed.BTTSPercentage(tail(history, recentFormWindow)),
	}
}

// tail returns the last n matches (the most recent ones).
func tail(matches []models.CompletedMatch, n int) []models.CompletedMatch {
	if len(matches) <= n {
		return matches
	}
	return matches[len(matches)-n:]
}

// streak renders BTTS outcomes as '1'/'0', most recent last.
func streak(matches []models.CompletedMatch) string {
	var b strings.Builder
	for _, m := range matches {
		if m.BothScored {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func buildPrompt(upcoming []models.UpcomingMatch, stats historyStats, bttsPct float64) string {
	var b strings.Builder
	b.WriteString("You are a virtual football data analyst.\n")
	b.WriteString(fmt.Sprintf("Last %d matches: %.1f%% BTTS.\n", stats.size, bttsPct))
	b.WriteString(fmt.Sprintf("Streaks: 3→%s, 4→%s, 5→%s.\n", stats.streak3, stats.streak4, stats.streak5))
	b.WriteString(fmt.Sprintf("Windows (5/10/20): %d/%d/%d matches.\n", stats.window5, stats.window10, stats.window20))
	b.WriteString("Take Over/Under 1.5 and 2.5 and the most common exact scores into account.\n")
	b.WriteString("Upcoming matches (numbered list):\n")
	for i, m := range upcoming {
		b.WriteString(fmt.Sprintf("%d. [%s] %s (origin: %s)\n", i+1, m.League, m.Label(), m.DateOrigin))
	}
	b.WriteString("\nBased on this data, pick ONE match with the highest probability of BTTS. ")
	b.WriteString("Return a JSON object with: 'selection', 'estimated_probability', 'justification'. No additional text.")
	return b.String()
}
