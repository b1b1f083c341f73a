package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/bttsbot/internal/pkg/metrics"
	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

type Feed interface {
	FetchUpcoming(ctx context.Context) ([]models.UpcomingMatch, error)
	FetchCompleted(ctx context.Context, limit int) ([]models.CompletedMatch, error)
}

type Recommender interface {
	ChooseMatch(ctx context.Context, upcoming []models.UpcomingMatch, completed []models.CompletedMatch, bttsPct float64) (*models.Recommendation, error)
}

type Notifier interface {
	SendEntry(ctx context.Context, entry models.Entry) (int, bool)
	EditResult(ctx context.Context, messageID int, success bool)
}

// Options configure the loop.
type Options struct {
	Interval     time.Duration // Delay after each tick
	HistoryLimit int           // Completed matches requested per league
	LinkTemplate string        // fmt template with one %s for the match id
}

// Monitor runs the pick loop: at most one recommendation is outstanding,
// and a new one is only requested once the previous one is resolved.
type Monitor struct {
	feed        Feed
	recommender Recommender
	notifier    Notifier
	bttsPct     func([]models.CompletedMatch) float64
	metrics     *metrics.LoopMetrics
	opts        Options

	mu         sync.RWMutex
	state      State
	lastTickAt time.Time
	lastErr    error
}

func New(feed Feed, recommender Recommender, notifier Notifier, bttsPct func([]models.CompletedMatch) float64, m *metrics.LoopMetrics, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 80
	}
	if m == nil {
		m = metrics.NewLoopMetrics()
	}
	return &Monitor{
		feed:        feed,
		recommender: recommender,
		notifier:    notifier,
		bttsPct:     bttsPct,
		metrics:     m,
		opts:        opts,
		state:       Idle(),
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status is a snapshot for the health endpoint.
type Status struct {
	State      State     `json:"state"`
	LastTickAt time.Time `json:"last_tick_at"`
	LastError  string    `json:"last_error,omitempty"`
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{State: m.state, LastTickAt: m.lastTickAt}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Run ticks immediately and then again Interval after each tick finishes,
// until ctx is cancelled. Tick errors are logged and never stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("Monitor: starting loop", "interval", m.opts.Interval, "history_limit", m.opts.HistoryLimit)

	for {
		if err := m.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("Monitor: stopping loop")
				return
			}
			slog.Error("Monitor: tick failed", "error", err, "state", m.State().Phase)
		}

		select {
		case <-ctx.Done():
			slog.Info("Monitor: stopping loop")
			return
		case <-time.After(m.opts.Interval):
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return m.Tick(ctx)
}

// Tick runs one iteration. A returned error leaves the state untouched.
func (m *Monitor) Tick(ctx context.Context) error {
	start := time.Now()
	state := m.State()
	logger := slog.With("tick_id", uuid.NewString(), "state", state.Phase)

	var (
		outcome string
		err     error
	)
	switch {
	case state.Phase == PhaseAwaiting && state.Pick != nil:
		outcome, err = m.tickAwaiting(ctx, logger, *state.Pick)
	default:
		outcome, err = m.tickIdle(ctx, logger)
	}
	if err != nil {
		outcome = metrics.OutcomeError
	}

	m.metrics.TickDuration.Observe(time.Since(start).Seconds())
	m.metrics.Ticks.WithLabelValues(state.Phase.String(), outcome).Inc()

	m.mu.Lock()
	m.lastTickAt = time.Now()
	m.lastErr = err
	m.mu.Unlock()

	return err
}

func (m *Monitor) tickIdle(ctx context.Context, logger *slog.Logger) (string, error) {
	upcoming, err := m.feed.FetchUpcoming(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch upcoming matches: %w", err)
	}
	completed, err := m.feed.FetchCompleted(ctx, m.opts.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch completed matches: %w", err)
	}
	pct := m.bttsPct(completed)

	if len(upcoming) == 0 {
		logger.Info("Monitor: no upcoming matches, waiting")
		return metrics.OutcomeSkipped, nil
	}

	rec, err := m.recommender.ChooseMatch(ctx, upcoming, completed, pct)
	if err != nil {
		return "", fmt.Errorf("failed to get recommendation: %w", err)
	}

	index, err := ResolveSelection(rec.Selection, upcoming)
	if err != nil {
		m.metrics.InvalidSelections.Inc()
		logger.Warn("Monitor: model returned an invalid selection",
			"error", err,
			"selection", string(rec.Selection),
			"upcoming", len(upcoming))
		return metrics.OutcomeInvalidSelection, nil
	}

	match := upcoming[index-1]
	entry := models.Entry{
		League:        match.League,
		Home:          match.Home,
		Away:          match.Away,
		Minute:        ExtractMinute(match.DateOrigin),
		Justification: rec.Justification,
		Link:          BuildLink(m.opts.LinkTemplate, match.ID),
		RecentForm:    rec.RecentForm,
	}

	messageID, ok := m.notifier.SendEntry(ctx, entry)
	if !ok {
		m.metrics.SendFailures.Inc()
		logger.Warn("Monitor: pick not published, staying idle", "match_id", match.ID)
		return metrics.OutcomeError, nil
	}

	m.setState(Awaiting(models.ActivePick{MatchID: match.ID, MessageID: messageID}))
	m.metrics.PicksSent.Inc()
	logger.Info("Monitor: pick sent",
		"match_id", match.ID,
		"message_id", messageID,
		"minute", entry.Minute,
		"match", match.Label(),
		"btts_pct", pct)
	return metrics.OutcomeOK, nil
}

func (m *Monitor) tickAwaiting(ctx context.Context, logger *slog.Logger, pick models.ActivePick) (string, error) {
	if _, err := m.feed.FetchUpcoming(ctx); err != nil {
		return "", fmt.Errorf("failed to fetch upcoming matches: %w", err)
	}
	completed, err := m.feed.FetchCompleted(ctx, m.opts.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch completed matches: %w", err)
	}

	var done *models.CompletedMatch
	for i := range completed {
		if completed[i].ID == pick.MatchID {
			done = &completed[i]
			break
		}
	}
	if done == nil {
		logger.Debug("Monitor: pick not finished yet", "match_id", pick.MatchID)
		return metrics.OutcomeSkipped, nil
	}

	m.notifier.EditResult(ctx, pick.MessageID, done.BothScored)
	m.setState(Idle())
	m.metrics.PicksResolved.WithLabelValues(metrics.ResultLabel(done.BothScored)).Inc()
	logger.Info("Monitor: pick resolved",
		"match_id", pick.MatchID,
		"message_id", pick.MessageID,
		"score", fmt.Sprintf("%d-%d", done.HomeGoals, done.AwayGoals),
		"btts", done.BothScored)
	return metrics.OutcomeOK, nil
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	if s.Phase == PhaseAwaiting {
		m.metrics.Awaiting.Set(1)
	} else {
		m.metrics.Awaiting.Set(0)
	}
}
