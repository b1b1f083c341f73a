package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultProviderBaseURL = "https://black-365.com/api/vet3/game"
	defaultLinkTemplate    = "https://www.bet365.bet.br/#/AVR/B146/R^%s/"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1"
)

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.1

type Config struct {
	Feed        FeedConfig        `yaml:"feed"`
	Recommender RecommenderConfig `yaml:"recommender"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Logging     LoggingConfig     `yaml:"logging"`
	Health      HealthConfig      `yaml:"health"`
}

type FeedConfig struct {
	Leagues   []LeagueConfig    `yaml:"leagues"`
	UserAgent string            `yaml:"user_agent"`
	Timeout   time.Duration     `yaml:"timeout"`
	TeamNames map[string]string `yaml:"team_names"` // Extra source -> display translations
}

// LeagueConfig holds the two feed endpoints of one virtual competition.
// Order of leagues in the file is the order matches are concatenated in.
type LeagueConfig struct {
	Name         string `yaml:"name"`
	UpcomingURL  string `yaml:"upcoming_url"`
	CompletedURL string `yaml:"completed_url"`
}

type RecommenderConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	Temperature     *float64      `yaml:"temperature"` // nil when unset; 0 is a valid value
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	HistoryLimit    int           `yaml:"history_limit"` // Completed matches fed into the prompt
	Timeout         time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken     string        `yaml:"bot_token"`
	ChatID       int64         `yaml:"chat_id"`
	APIEndpoint  string        `yaml:"api_endpoint"`  // Bot API URL format, empty for api.telegram.org
	SendInterval time.Duration `yaml:"send_interval"` // Min interval between two Bot API calls
	MaxStored    int           `yaml:"max_stored"`    // Cap for messages kept for later editing
}

type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"` // Delay between the end of one tick and the next
	LinkTemplate string        `yaml:"link_template"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // Optional JSON log file in addition to stdout
}

type HealthConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// Load reads the YAML file at configPath (a missing file is not an error),
// then applies .env and environment overrides and fills in defaults.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("Config file not found, using defaults and environment", "path", configPath)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using process environment")
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return &config, nil
}

// ApplyEnv overrides secrets and the log level from the environment.
func (c *Config) ApplyEnv() error {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	} else if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatIDStr, err)
		}
		c.Telegram.ChatID = chatID
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Recommender.APIKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

func (c *Config) ApplyDefaults() {
	if len(c.Feed.Leagues) == 0 {
		c.Feed.Leagues = DefaultLeagues()
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}

	if c.Recommender.BaseURL == "" {
		c.Recommender.BaseURL = defaultGeminiBaseURL
	}
	if c.Recommender.Model == "" {
		c.Recommender.Model = "gemini-1.5-flash"
	}
	if c.Recommender.Temperature == nil {
		temperature := DefaultTemperature
		c.Recommender.Temperature = &temperature
	}
	if c.Recommender.MaxOutputTokens <= 0 {
		c.Recommender.MaxOutputTokens = 1024
	}
	if c.Recommender.HistoryLimit <= 0 {
		c.Recommender.HistoryLimit = 80
	}
	if c.Recommender.Timeout <= 0 {
		c.Recommender.Timeout = 60 * time.Second
	}

	if c.Telegram.SendInterval <= 0 {
		c.Telegram.SendInterval = 2 * time.Second
	}
	if c.Telegram.MaxStored <= 0 {
		c.Telegram.MaxStored = 100
	}

	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 30 * time.Second
	}
	if c.Monitor.LinkTemplate == "" {
		c.Monitor.LinkTemplate = defaultLinkTemplate
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Health.Addr == "" {
		c.Health.Addr = ":8080"
	}
	if c.Health.ReadHeaderTimeout <= 0 {
		c.Health.ReadHeaderTimeout = 5 * time.Second
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram bot token is required (telegram.bot_token or TELEGRAM_BOT_TOKEN)"))
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram chat id is required (telegram.chat_id or TELEGRAM_CHAT_ID)"))
	}
	if c.Recommender.APIKey == "" {
		errs = append(errs, errors.New("gemini api key is required (recommender.api_key or GEMINI_API_KEY)"))
	}
	if len(c.Feed.Leagues) == 0 {
		errs = append(errs, errors.New("at least one feed league is required"))
	}
	for i, l := range c.Feed.Leagues {
		if l.Name == "" || l.UpcomingURL == "" || l.CompletedURL == "" {
			errs = append(errs, fmt.Errorf("feed.leagues[%d]: name, upcoming_url and completed_url are required", i))
		}
	}
	return errors.Join(errs...)
}

// DefaultLeagues returns the three virtual competitions of the provider.
func DefaultLeagues() []LeagueConfig {
	names := []string{"World Cup", "Premiership", "Euro Cup"}
	leagues := make([]LeagueConfig, 0, len(names))
	for _, name := range names {
		leagues = append(leagues, LeagueConfig{
			Name:         name,
			UpcomingURL:  LeagueURL(defaultProviderBaseURL, name, false),
			CompletedURL: LeagueURL(defaultProviderBaseURL, name, true),
		})
	}
	return leagues
}

// finishedFlag is the provider's "match finished" marker (경기종료).
const finishedFlag = "%EA%B2%BD%EA%B8%B0%EC%A2%85%EB%A3%8C"

// LeagueURL builds a provider endpoint for a competition. Finished feeds are
// requested for the previous day window together with the finished flag.
func LeagueURL(baseURL, league string, finished bool) string {
	title := url.PathEscape(league)
	if finished {
		return fmt.Sprintf("%s?cate2=Soccer&title=%s&day=1&flag=%s", baseURL, title, finishedFlag)
	}
	return fmt.Sprintf("%s?cate2=Soccer&title=%s&day=0", baseURL, title)
}
