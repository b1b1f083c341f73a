package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// Min interval between two Bot API calls to the same chat to avoid 429 Too Many Requests.
const defaultSendInterval = 2 * time.Second

const defaultMaxStored = 100

// BotAPI is the part of *tgbotapi.BotAPI the notifier uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// storedMessage keeps what is needed to re-render a message on edit.
type storedMessage struct {
	entry  models.Entry
	sentAt time.Time
}

// TelegramNotifier posts pick messages and later edits them with the outcome.
type TelegramNotifier struct {
	bot       BotAPI
	chatID    int64
	limiter   *rate.Limiter
	maxStored int

	mu       sync.Mutex
	messages map[int]storedMessage
	order    []int // message ids, oldest first
}

type Option func(*TelegramNotifier)

// WithSendInterval sets the minimum spacing between Bot API calls; 0 disables pacing.
func WithSendInterval(d time.Duration) Option {
	return func(n *TelegramNotifier) {
		if d <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxStored caps how many sent messages are remembered for editing.
func WithMaxStored(max int) Option {
	return func(n *TelegramNotifier) {
		if max > 0 {
			n.maxStored = max
		}
	}
}

func NewTelegramNotifier(bot BotAPI, chatID int64, opts ...Option) *TelegramNotifier {
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		limiter:   rate.NewLimiter(rate.Every(defaultSendInterval), 1),
		maxStored: defaultMaxStored,
		messages:  make(map[int]storedMessage),
	}
	for _, opt := range opts {
		opt(n)
	}
	slog.Info("Telegram notifier initialized", "chat_id", chatID)
	return n
}

// ConnectBotAPI connects to the Bot API and checks the token with getMe.
// A failed attempt is logged and retried every retryInterval until it
// succeeds or ctx is cancelled. An empty endpoint means tgbotapi.APIEndpoint.
func ConnectBotAPI(ctx context.Context, token, endpoint string, retryInterval time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	for attempt := 1; ; attempt++ {
		bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
		if err == nil {
			bot.Debug = false
			slog.Info("Telegram bot authorized", "username", bot.Self.UserName, "attempt", attempt)
			return bot, nil
		}
		slog.Error("Failed to create telegram bot, retrying", "error", err, "attempt", attempt, "retry_in", retryInterval)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to create telegram bot: %w", ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

// SendEntry posts a new pick message. It returns ok=false when the message
// could not be published; the error is logged here.
func (n *TelegramNotifier) SendEntry(ctx context.Context, entry models.Entry) (int, bool) {
	text := formatEntry(entry, nil)

	if err := n.limiter.Wait(ctx); err != nil {
		slog.Error("Telegram send: cancelled during wait", "error", err)
		return 0, false
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := n.bot.Send(msg)
	if err != nil {
		slog.Error("Telegram send: failed", "error", err, "match", entry.Home+" x "+entry.Away)
		return 0, false
	}

	n.remember(sent.MessageID, entry)
	slog.Info("Telegram send: success", "message_id", sent.MessageID, "league", entry.League, "match", entry.Home+" x "+entry.Away)
	return sent.MessageID, true
}

// EditResult marks a previously sent message as won or lost. Unknown ids
// and API failures are logged only; the stored message is dropped either way.
func (n *TelegramNotifier) EditResult(ctx context.Context, messageID int, success bool) {
	stored, ok := n.take(messageID)
	if !ok {
		slog.Error("Telegram edit: message not found", "message_id", messageID)
		return
	}

	if err := n.limiter.Wait(ctx); err != nil {
		slog.Error("Telegram edit: cancelled during wait", "message_id", messageID, "error", err)
		return
	}

	edit := tgbotapi.NewEditMessageText(n.chatID, messageID, formatEntry(stored.entry, &success))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true

	if _, err := n.bot.Request(edit); err != nil {
		slog.Error("Telegram edit: failed", "message_id", messageID, "error", err)
		return
	}
	slog.Info("Telegram edit: success", "message_id", messageID, "btts", success, "age", time.Since(stored.sentAt).Round(time.Second))
}

// Len returns how many messages are kept for editing.
func (n *TelegramNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *TelegramNotifier) remember(messageID int, entry models.Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages[messageID] = storedMessage{entry: entry, sentAt: time.Now()}
	n.forget(messageID)
	n.order = append(n.order, messageID)

	for len(n.messages) > n.maxStored && len(n.order) > 0 {
		oldest := n.order[0]
		n.order = n.order[1:]
		if _, ok := n.messages[oldest]; ok {
			delete(n.messages, oldest)
			slog.Warn("Telegram notifier: evicted unresolved message", "message_id", oldest)
		}
	}
}

func (n *TelegramNotifier) take(messageID int) (storedMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	stored, ok := n.messages[messageID]
	if !ok {
		return storedMessage{}, false
	}
	delete(n.messages, messageID)
	n.forget(messageID)
	return stored, true
}

// forget drops messageID from the eviction order. Callers hold n.mu.
func (n *TelegramNotifier) forget(messageID int) {
	if i := slices.Index(n.order, messageID); i >= 0 {
		n.order = slices.Delete(n.order, i, i+1)
	}
}
