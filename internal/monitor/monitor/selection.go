package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// ErrInvalidSelection means the model's pick does not point at an upcoming match.
var ErrInvalidSelection = errors.New("invalid selection")

// ResolveSelection turns the model's selection into a 1-based position in
// upcoming. Accepted forms are an integer (number or numeric string) and the
// exact, case-sensitive "home x away" label of one of the matches.
func ResolveSelection(raw json.RawMessage, upcoming []models.UpcomingMatch) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("%w: missing", ErrInvalidSelection)
	}

	var index int
	if strings.HasPrefix(s, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidSelection, s)
		}
		if n, numeric, ok := parseIndex(strings.TrimSpace(text)); numeric {
			if !ok {
				return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidSelection, text)
			}
			index = n
		} else if pos := findByLabel(text, upcoming); pos > 0 {
			index = pos
		} else {
			return 0, fmt.Errorf("%w: %q matches no upcoming match", ErrInvalidSelection, text)
		}
	} else {
		n, _, ok := parseIndex(s)
		if !ok {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidSelection, s)
		}
		index = n
	}

	if index < 1 || index > len(upcoming) {
		return 0, fmt.Errorf("%w: %d out of range [1, %d]", ErrInvalidSelection, index, len(upcoming))
	}
	return index, nil
}

// parseIndex reads an integral number such as "5" or "5.0". numeric reports
// whether s parsed as a number at all; ok whether it was a finite integer.
func parseIndex(s string) (n int, numeric, ok bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	if math.IsNaN(f) || math.Abs(f) > math.MaxInt32 || f != math.Trunc(f) {
		return 0, true, false
	}
	return int(f), true, true
}

func findByLabel(label string, upcoming []models.UpcomingMatch) int {
	for i, m := range upcoming {
		if m.Label() == label {
			return i + 1
		}
	}
	return 0
}

// ExtractMinute reads the minute from an origin timestamp such as
// "2024-01-01 14:37:00". Anything else yields 0.
func ExtractMinute(dateOrigin string) int {
	fields := strings.Fields(dateOrigin)
	if len(fields) < 2 {
		return 0
	}
	parts := strings.Split(fields[1], ":")
	if len(parts) < 2 {
		return 0
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return minute
}

// BuildLink fills the match id into the first %s of the bookmaker link
// template. Other percent signs, such as URL escapes, are kept as they are.
func BuildLink(template, matchID string) string {
	if !strings.Contains(template, "%s") {
		return template + matchID
	}
	return strings.Replace(template, "%s", matchID, 1)
}
