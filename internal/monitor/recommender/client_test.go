package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Vodeneev/bttsbot/internal/pkg/config"
	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

func modelAnswer(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func completedSeq(bits string) []models.CompletedMatch {
	out := make([]models.CompletedMatch, len(bits))
	for i, b := range bits {
		out[i] = models.CompletedMatch{ID: string(rune('a' + i%26)), BothScored: b == '1'}
	}
	return out
}

func TestChooseMatch_RequestAndFencedAnswer(t *testing.T) {
	var gotReq generateRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(modelAnswer("```json\n{\"selection\": 2, \"estimated_probability\": \"71.5%\", \"justification\": \"form\"}\n```")))
	}))
	defer srv.Close()

	client := NewClient(&config.RecommenderConfig{
		APIKey:          "secret",
		BaseURL:         srv.URL + "/v1/",
		Model:           "gemini-test",
		Temperature:     ptr(0.1),
		MaxOutputTokens: 1024,
		HistoryLimit:    4,
	})

	upcoming := []models.UpcomingMatch{
		{ID: "1", League: "World Cup", Home: "England", Away: "France", DateOrigin: "2024-01-01 14:37:00"},
		{ID: "2", League: "Euro Cup", Home: "Spain", Away: "Italy", DateOrigin: "2024-01-01 14:40:00"},
	}
	// Only the last four entries (0111) are inside the history limit.
	completed := completedSeq("1100111")

	rec, err := client.ChooseMatch(context.Background(), upcoming, completed, 75)
	if err != nil {
		t.Fatalf("ChooseMatch: %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotPath != "/v1/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.GenerationConfig.CandidateCount != 1 || gotReq.GenerationConfig.Temperature != 0.1 || gotReq.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("generation config = %+v", gotReq.GenerationConfig)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("contents = %+v", gotReq.Contents)
	}
	prompt := gotReq.Contents[0].Parts[0].Text
	for _, want := range []string{
		"Last 4 matches: 75.0% BTTS.",
		"Streaks: 3→111, 4→0111, 5→0111.",
		"Windows (5/10/20): 4/4/4 matches.",
		"1. [World Cup] England x France (origin: 2024-01-01 14:37:00)",
		"2. [Euro Cup] Spain x Italy (origin: 2024-01-01 14:40:00)",
		"Over/Under 1.5 and 2.5",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if string(rec.Selection) != "2" || rec.Justification != "form" {
		t.Errorf("recommendation = %+v", rec)
	}
	if rec.EstimatedProbability == nil || *rec.EstimatedProbability != 71.5 {
		t.Errorf("estimated probability = %v", rec.EstimatedProbability)
	}
	if rec.RecentForm == nil || math.Abs(*rec.RecentForm-75) > 1e-9 {
		t.Errorf("recent form = %v, want 75", rec.RecentForm)
	}
}

func ptr(f float64) *float64 { return &f }

func TestChooseMatch_Temperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature *float64
		want        float64
	}{
		{"unset uses default", nil, 0.1},
		{"zero is kept", ptr(0), 0},
		{"explicit", ptr(0.7), 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
					t.Errorf("decode request: %v", err)
				}
				_, _ = w.Write([]byte(modelAnswer(`{"selection": 1, "justification": "x"}`)))
			}))
			defer srv.Close()

			client := NewClient(&config.RecommenderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k", Temperature: tt.temperature})
			upcoming := []models.UpcomingMatch{{ID: "1", Home: "A", Away: "B"}}
			if _, err := client.ChooseMatch(context.Background(), upcoming, nil, 0); err != nil {
				t.Fatalf("ChooseMatch: %v", err)
			}

			gen, _ := raw["generationConfig"].(map[string]any)
			got, present := gen["temperature"]
			if !present {
				t.Fatalf("temperature missing from generationConfig %v", gen)
			}
			if got != tt.want {
				t.Errorf("temperature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseMatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http failure", http.StatusInternalServerError, `{"error": "boom"}`},
		{"no candidates", http.StatusOK, `{"candidates": []}`},
		{"not json", http.StatusOK, modelAnswer("I think match 2 looks good")},
		{"undecodable envelope", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(&config.RecommenderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"})
			_, err := client.ChooseMatch(context.Background(), nil, nil, 0)
			var recErr *Error
			if !errors.As(err, &recErr) {
				t.Fatalf("expected *recommender.Error, got %v", err)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"selection\":1}\n```", `{"selection":1}`},
		{"```\n{\"selection\":1}\n```", `{"selection":1}`},
		{"  {\"selection\":1}  ", `{"selection":1}`},
		{"```json\n{\n  \"selection\": 3\n}\n```\n", "{\n  \"selection\": 3\n}"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRecommendation(t *testing.T) {
	rec, err := ParseRecommendation("```json\n{\"selection\":1}\n```")
	if err != nil {
		t.Fatalf("ParseRecommendation: %v", err)
	}
	if string(rec.Selection) != "1" {
		t.Errorf("selection = %s, want 1", rec.Selection)
	}
	if rec.EstimatedProbability != nil {
		t.Errorf("estimated probability should be nil, got %v", *rec.EstimatedProbability)
	}

	rec, err = ParseRecommendation(`{"selection": "C x D", "justification": "both attack well", "estimated_probability": 64}`)
	if err != nil {
		t.Fatalf("ParseRecommendation: %v", err)
	}
	if string(rec.Selection) != `"C x D"` || rec.Justification != "both attack well" {
		t.Errorf("recommendation = %+v", rec)
	}
	if rec.EstimatedProbability == nil || *rec.EstimatedProbability != 64 {
		t.Errorf("estimated probability = %v", rec.EstimatedProbability)
	}

	for _, bad := range []string{"", "null", "[1]", "selection: 1", "{\"selection\": "} {
		if _, err := ParseRecommendation(bad); err == nil {
			t.Errorf("ParseRecommendation(%q) should fail", bad)
		}
	}
}

func TestComputeStats(t *testing.T) {
	stats := computeStats(completedSeq("0000000000" + "1111111111" + "0101010101"))
	if stats.size != 30 {
		t.Errorf("size = %d", stats.size)
	}
	if stats.streak3 != "101" || stats.streak4 != "0101" || stats.streak5 != "10101" {
		t.Errorf("streaks = %s/%s/%s", stats.streak3, stats.streak4, stats.streak5)
	}
	if stats.window5 != 5 || stats.window10 != 10 || stats.window20 != 20 {
		t.Errorf("windows = %d/%d/%d", stats.window5, stats.window10, stats.window20)
	}
	// Last 20: ten 1s and five 1s out of "0101010101".
	if math.Abs(stats.recentForm-75) > 1e-9 {
		t.Errorf("recent form = %v, want 75", stats.recentForm)
	}

	empty := computeStats(nil)
	if empty.streak3 != "" || empty.recentForm != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
