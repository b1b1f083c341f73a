package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

const defaultLeagueEmoji = "⚽"

var leagueEmojis = map[string]string{
	"World Cup":   "🌐",
	"Premiership": "🏆",
	"Euro Cup":    "🇪🇺",
}

// LeagueEmoji returns the label emoji for a league, ⚽ when unknown.
func LeagueEmoji(league string) string {
	if emoji, ok := leagueEmojis[league]; ok {
		return emoji
	}
	return defaultLeagueEmoji
}

// formatEntry renders a pick message. result is nil until the match is
// finished, then it marks the minute line with ✅ or ❌.
func formatEntry(e models.Entry, result *bool) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s <b>%s</b> — <i>%s x %s</i>\n",
		LeagueEmoji(e.League), html.EscapeString(e.League), html.EscapeString(e.Home), html.EscapeString(e.Away)))
	builder.WriteString(fmt.Sprintf("➡️ Minute: %d'", e.Minute))
	if result != nil {
		if *result {
			builder.WriteString(" ✅")
		} else {
			builder.WriteString(" ❌")
		}
	}
	builder.WriteString("\n\n")
	builder.WriteString(fmt.Sprintf("💡<b>ANALYSIS:</b> %s\n\n", html.EscapeString(e.Justification)))
	if e.RecentForm != nil {
		builder.WriteString(fmt.Sprintf("📊 Last 20 matches: %.0f%% BTTS\n\n", *e.RecentForm))
	}
	builder.WriteString(fmt.Sprintf("🔗Link: %s", html.EscapeString(e.Link)))
	return builder.String()
}
