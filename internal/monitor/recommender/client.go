package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/bttsbot/internal/pkg/config"
	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// Error is returned when the model call fails, yields no candidate or the
// candidate text is not a JSON object.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recommender: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	CandidateCount  int     `json:"candidateCount"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client asks a Gemini generateContent endpoint to pick one BTTS match.
type Client struct {
	endpoint     string
	apiKey       string
	temperature  float64
	maxTokens    int
	historyLimit int
	httpClient   *http.Client
}

func NewClient(cfg *config.RecommenderConfig) *Client {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 80
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	temperature := config.DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return &Client{
		endpoint:     fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(cfg.BaseURL, "/"), cfg.Model),
		apiKey:       cfg.APIKey,
		temperature:  temperature,
		maxTokens:    cfg.MaxOutputTokens,
		historyLimit: historyLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HistoryLimit is the number of completed matches the prompt is built from.
func (c *Client) HistoryLimit() int {
	return c.historyLimit
}

// ChooseMatch builds the prompt from the history and the upcoming list and
// returns the model's pick. The selection is not range-checked here.
func (c *Client) ChooseMatch(ctx context.Context, upcoming []models.UpcomingMatch, completed []models.CompletedMatch, bttsPct float64) (*models.Recommendation, error) {
	history := completed
	if len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}
	stats := computeStats(history)
	prompt := buildPrompt(upcoming, stats, bttsPct)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	rec, err := ParseRecommendation(raw)
	if err != nil {
		return nil, err
	}
	recentForm := stats.recentForm
	rec.RecentForm = &recentForm

	slog.Debug("Recommender: model answered",
		"selection", string(rec.Selection),
		"history", stats.size,
		"upcoming", len(upcoming))
	return rec, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			CandidateCount:  1,
			MaxOutputTokens: c.maxTokens,
		},
	})
	if err != nil {
		return "", &Error{Op: "encode request", Err: err}
	}

	u := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the API key, keep it out of logs.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return "", &Error{Op: "call model", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{Op: "call model", Err: fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(excerpt))}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", &Error{Op: "decode response", Err: err}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Op: "read candidate", Err: fmt.Errorf("no candidates in response")}
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// StripCodeFence removes markdown fence lines (```json, ```) around a model answer.
func StripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ParseRecommendation decodes the model text into a Recommendation.
func ParseRecommendation(raw string) (*models.Recommendation, error) {
	text := StripCodeFence(raw)
	if !strings.HasPrefix(text, "{") {
		return nil, &Error{Op: "parse answer", Err: fmt.Errorf("expected a JSON object, got %q", truncate(text, 200))}
	}

	var payload struct {
		Selection            json.RawMessage `json:"selection"`
		Justification        json.RawMessage `json:"justification"`
		EstimatedProbability json.RawMessage `json:"estimated_probability"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, &Error{Op: "parse answer", Err: fmt.Errorf("invalid JSON %q: %w", truncate(text, 200), err)}
	}

	return &models.Recommendation{
		Selection:            payload.Selection,
		Justification:        looseString(payload.Justification),
		EstimatedProbability: looseFloat(payload.EstimatedProbability),
	}, nil
}

// looseString accepts a JSON string or renders any other value as text.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// looseFloat accepts 72, 72.5, "72.5" and "72.5%"; anything else gives nil.
func looseFloat(raw json.RawMessage) *float64 {
	s := strings.TrimSpace(looseString(raw))
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
