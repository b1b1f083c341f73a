package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

type fakeBot struct {
	nextID  int
	fixedID int // when set, every Send returns this id
	sendErr error
	editErr error
	sent    []tgbotapi.MessageConfig
	edits   []tgbotapi.EditMessageTextConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.sent = append(b.sent, msg)
	if b.fixedID != 0 {
		return tgbotapi.Message{MessageID: b.fixedID}, nil
	}
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	edit, ok := c.(tgbotapi.EditMessageTextConfig)
	if !ok {
		return nil, errors.New("unexpected chattable")
	}
	b.edits = append(b.edits, edit)
	if b.editErr != nil {
		return nil, b.editErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func testEntry() models.Entry {
	form := 65.0
	return models.Entry{
		League:        "World Cup",
		Home:          "England",
		Away:          "France",
		Minute:        37,
		Justification: "both sides <3 clean sheets",
		Link:          "https://example.test/#/AVR/B146/R^555/",
		RecentForm:    &form,
	}
}

func TestSendEntry_RendersAndStores(t *testing.T) {
	bot := &fakeBot{nextID: 554}
	n := NewTelegramNotifier(bot, -100, WithSendInterval(0))

	id, ok := n.SendEntry(context.Background(), testEntry())
	if !ok || id != 555 {
		t.Fatalf("SendEntry = %d, %v; want 555, true", id, ok)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != -100 || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("chat=%d parse_mode=%q", msg.ChatID, msg.ParseMode)
	}
	for _, want := range []string{
		"🌐 <b>World Cup</b> — <i>England x France</i>",
		"➡️ Minute: 37'\n",
		"💡<b>ANALYSIS:</b> both sides &lt;3 clean sheets",
		"📊 Last 20 matches: 65% BTTS",
		"🔗Link: https://example.test/#/AVR/B146/R^555/",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("message text missing %q:\n%s", want, msg.Text)
		}
	}
	if n.Len() != 1 {
		t.Errorf("stored = %d, want 1", n.Len())
	}
}

func TestSendEntry_FailureReturnsNotOK(t *testing.T) {
	bot := &fakeBot{sendErr: errors.New("telegram down")}
	n := NewTelegramNotifier(bot, 1, WithSendInterval(0))

	id, ok := n.SendEntry(context.Background(), testEntry())
	if ok || id != 0 {
		t.Errorf("SendEntry = %d, %v; want 0, false", id, ok)
	}
	if n.Len() != 0 {
		t.Errorf("failed send must not be stored, have %d", n.Len())
	}
}

func TestEditResult(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		mark    string
		editErr error
	}{
		{"won", true, "➡️ Minute: 37' ✅", nil},
		{"lost", false, "➡️ Minute: 37' ❌", nil},
		{"edit fails", true, "➡️ Minute: 37' ✅", errors.New("message is not modified")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{editErr: tt.editErr}
			n := NewTelegramNotifier(bot, 7, WithSendInterval(0))
			id, ok := n.SendEntry(context.Background(), testEntry())
			if !ok {
				t.Fatal("send failed")
			}

			n.EditResult(context.Background(), id, tt.success)

			if len(bot.edits) != 1 {
				t.Fatalf("expected 1 edit, got %d", len(bot.edits))
			}
			edit := bot.edits[0]
			if edit.MessageID != id || edit.ChatID != 7 || edit.ParseMode != tgbotapi.ModeHTML {
				t.Errorf("edit target = %+v", edit.BaseEdit)
			}
			if !strings.Contains(edit.Text, tt.mark) {
				t.Errorf("edited text missing %q:\n%s", tt.mark, edit.Text)
			}
			if !strings.Contains(edit.Text, "England x France") {
				t.Errorf("edited text lost teams:\n%s", edit.Text)
			}
			if n.Len() != 0 {
				t.Errorf("resolved message should be dropped, stored = %d", n.Len())
			}
		})
	}
}

func TestEditResult_UnknownMessageIsNoop(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, 7, WithSendInterval(0))

	n.EditResult(context.Background(), 999, true)

	if len(bot.edits) != 0 {
		t.Errorf("unknown message must not be edited, got %d edits", len(bot.edits))
	}
}

func TestRemember_EvictsOldest(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, 7, WithSendInterval(0), WithMaxStored(2))

	for i := 0; i < 3; i++ {
		if _, ok := n.SendEntry(context.Background(), testEntry()); !ok {
			t.Fatal("send failed")
		}
	}
	if n.Len() != 2 {
		t.Fatalf("stored = %d, want 2", n.Len())
	}

	n.EditResult(context.Background(), 1, true)
	if len(bot.edits) != 0 {
		t.Error("evicted message should not be editable")
	}
	n.EditResult(context.Background(), 3, false)
	if len(bot.edits) != 1 {
		t.Error("newest message should still be editable")
	}
}

func TestRemember_RepeatedIDIsNotEvictedTwice(t *testing.T) {
	tests := []struct {
		name      string
		ids       []int
		editable  []int
		evicted   []int
		wantStore int
	}{
		{"repeat then new", []int{10, 10, 11}, []int{10, 11}, nil, 2},
		{"repeat moves to newest", []int{10, 11, 10, 12}, []int{10, 12}, []int{11}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			n := NewTelegramNotifier(bot, 7, WithSendInterval(0), WithMaxStored(2))
			for _, id := range tt.ids {
				bot.fixedID = id
				if _, ok := n.SendEntry(context.Background(), testEntry()); !ok {
					t.Fatal("send failed")
				}
			}
			if n.Len() != tt.wantStore {
				t.Fatalf("stored = %d, want %d", n.Len(), tt.wantStore)
			}
			if len(n.order) != n.Len() {
				t.Errorf("order %v out of sync with %d stored messages", n.order, n.Len())
			}

			for _, id := range tt.evicted {
				n.EditResult(context.Background(), id, true)
			}
			if len(bot.edits) != 0 {
				t.Errorf("evicted ids %v should not be editable, got %d edits", tt.evicted, len(bot.edits))
			}
			for i, id := range tt.editable {
				n.EditResult(context.Background(), id, true)
				if len(bot.edits) != i+1 {
					t.Errorf("message %d should still be editable", id)
				}
			}
		})
	}
}

func TestConnectBotAPI(t *testing.T) {
	tests := []struct {
		name     string
		failures int32 // getMe calls answered with an error before success
		timeout  time.Duration
		wantErr  bool
	}{
		{"retries until authorized", 2, 5 * time.Second, false},
		{"gives up on cancel", 1 << 30, 100 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/getMe") {
					http.NotFound(w, r)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusBadGateway)
					_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
					return
				}
				_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"BTTS","username":"btts_bot"}}`))
			}))
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			bot, err := ConnectBotAPI(ctx, "123:token", srv.URL+"/bot%s/%s", 10*time.Millisecond)
			if tt.wantErr {
				if err == nil || !errors.Is(err, context.DeadlineExceeded) {
					t.Fatalf("err = %v, want deadline exceeded", err)
				}
				if calls.Load() < 2 {
					t.Errorf("getMe calls = %d, want retries", calls.Load())
				}
				return
			}
			if err != nil {
				t.Fatalf("ConnectBotAPI: %v", err)
			}
			if bot.Self.UserName != "btts_bot" {
				t.Errorf("username = %q", bot.Self.UserName)
			}
			if got := calls.Load(); got != tt.failures+1 {
				t.Errorf("getMe calls = %d, want %d", got, tt.failures+1)
			}
		})
	}
}

func TestFormatEntry_UnknownLeagueAndNoForm(t *testing.T) {
	e := models.Entry{League: "Copa Virtual", Home: "A", Away: "B", Minute: 0, Justification: "x", Link: "l"}
	text := formatEntry(e, nil)

	if !strings.HasPrefix(text, "⚽ <b>Copa Virtual</b>") {
		t.Errorf("unknown league should use default emoji:\n%s", text)
	}
	if strings.Contains(text, "Last 20 matches") {
		t.Errorf("form line should be omitted without recent form:\n%s", text)
	}
	if strings.Contains(text, "✅") || strings.Contains(text, "❌") {
		t.Errorf("unresolved entry should carry no result mark:\n%s", text)
	}
}

func TestLeagueEmoji(t *testing.T) {
	tests := []struct {
		league string
		want   string
	}{
		{"World Cup", "🌐"},
		{"Premiership", "🏆"},
		{"Euro Cup", "🇪🇺"},
		{"world cup", "⚽"},
		{"", "⚽"},
	}
	for _, tt := range tests {
		if got := LeagueEmoji(tt.league); got != tt.want {
			t.Errorf("LeagueEmoji(%q) = %q, want %q", tt.league, got, tt.want)
		}
	}
}
