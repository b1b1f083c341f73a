package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/bttsbot/internal/pkg/config"
	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// Error is returned when a league endpoint is unreachable, answers with a
// non-success status or returns a body that is not a JSON array of fixtures.
type Error struct {
	League string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed %q: %v", e.League, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fixture is one record of the provider feed. Scalar fields arrive either as
// JSON numbers or strings depending on the endpoint, so they are kept raw.
type fixture struct {
	Idx        json.RawMessage `json:"idx"`
	Home       string          `json:"home"`
	Away       string          `json:"away"`
	DateOrigin string          `json:"dateOrigin"`
	Result1    json.RawMessage `json:"result1"`
	Result2    json.RawMessage `json:"result2"`
	Ratio3     json.RawMessage `json:"ratio3"`
}

// Client fetches upcoming and finished virtual matches for every configured league.
type Client struct {
	leagues    []config.LeagueConfig
	userAgent  string
	names      *Translator
	httpClient *http.Client
}

func NewClient(cfg *config.FeedConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		leagues:   cfg.Leagues,
		userAgent: cfg.UserAgent,
		names:     NewTranslator(cfg.TeamNames),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchUpcoming returns the not-yet-finished matches of all leagues, deduplicated
// by idx within each league and sorted by the raw dateOrigin string.
func (c *Client) FetchUpcoming(ctx context.Context) ([]models.UpcomingMatch, error) {
	var out []models.UpcomingMatch
	for _, league := range c.leagues {
		fixtures, err := c.fetch(ctx, league.Name, league.UpcomingURL)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{}, len(fixtures))
		for _, f := range fixtures {
			id := rawScalar(f.Idx)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			out = append(out, models.UpcomingMatch{
				ID:         id,
				League:     league.Name,
				DateOrigin: f.DateOrigin,
				Home:       c.names.Translate(f.Home),
				Away:       c.names.Translate(f.Away),
				BTTSOdds:   parseOdds(f.Ratio3),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateOrigin < out[j].DateOrigin
	})
	return out, nil
}

// FetchCompleted returns up to limit finished matches per league in provider
// order. Records without two integer scores are skipped. limit <= 0 means no cap.
func (c *Client) FetchCompleted(ctx context.Context, limit int) ([]models.CompletedMatch, error) {
	var out []models.CompletedMatch
	for _, league := range c.leagues {
		fixtures, err := c.fetch(ctx, league.Name, league.CompletedURL)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(fixtures) > limit {
			fixtures = fixtures[:limit]
		}

		skipped := 0
		for _, f := range fixtures {
			homeGoals, err1 := strconv.Atoi(rawScalar(f.Result1))
			awayGoals, err2 := strconv.Atoi(rawScalar(f.Result2))
			if err1 != nil || err2 != nil {
				skipped++
				continue
			}
			out = append(out, models.CompletedMatch{
				ID:         rawScalar(f.Idx),
				League:     league.Name,
				Home:       c.names.Translate(f.Home),
				Away:       c.names.Translate(f.Away),
				HomeGoals:  homeGoals,
				AwayGoals:  awayGoals,
				BothScored: homeGoals > 0 && awayGoals > 0,
			})
		}
		if skipped > 0 {
			slog.Debug("Feed: skipped finished records without scores", "league", league.Name, "skipped", skipped)
		}
	}
	return out, nil
}

// BTTSPercentage is the share of matches where both teams scored, in percent.
func BTTSPercentage(matches []models.CompletedMatch) float64 {
	if len(matches) == 0 {
		return 0.0
	}
	count := 0
	for _, m := range matches {
		if m.BothScored {
			count++
		}
	}
	return float64(count) / float64(len(matches)) * 100.0
}

func (c *Client) fetch(ctx context.Context, league, url string) ([]fixture, error) {
	wrap := func(err error) error {
		return &Error{League: league, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to fetch matches: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, wrap(fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)))
	}

	var fixtures []fixture
	if err := json.NewDecoder(resp.Body).Decode(&fixtures); err != nil {
		return nil, wrap(fmt.Errorf("failed to decode response: %w", err))
	}
	return fixtures, nil
}

// rawScalar renders a JSON string or number as plain text; null and absent become "".
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ""
		}
		return strings.TrimSpace(str)
	}
	return s
}

func parseOdds(raw json.RawMessage) *float64 {
	v, err := strconv.ParseFloat(rawScalar(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}
