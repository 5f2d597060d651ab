package notify

import (
	"fmt"
	"log"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trend_bot/internal/models"
	"trend_bot/pkg/logger"
)

// Notifier — fire-and-forget доставка сообщений пользователю.
// Ошибки отправки логируются и никогда не блокируют сканер.
type Notifier interface {
	Send(chatID int64, msg string)
	Sendf(chatID int64, format string, args ...any)
}

// Telegram — пассивный нотифайер: только отправка, без команд.
type Telegram struct {
	bot *tgbot.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

func (t *Telegram) Send(chatID int64, msg string) {
	if t == nil || t.bot == nil || chatID == 0 {
		return
	}
	m := tgbot.NewMessage(chatID, msg)
	m.ParseMode = tgbot.ModeMarkdown
	if _, err := t.bot.Send(m); err != nil {
		logger.Error("telegram send to %d failed: %v", chatID, err)
	}
}

func (t *Telegram) Sendf(chatID int64, format string, args ...any) {
	t.Send(chatID, fmt.Sprintf(format, args...))
}

// Stdout — заглушка без токена, всё пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(chatID int64, msg string) { log.Printf("[notify %d] %s", chatID, msg) }
func (s *Stdout) Sendf(chatID int64, format string, args ...any) {
	s.Send(chatID, fmt.Sprintf(format, args...))
}

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// SignalMessage собирает алерт о новом сигнале в формате Markdown.
func SignalMessage(pair models.WatchedPair, sig models.Signal, autoTrade bool) string {
	icon := "🟢"
	label := "LONG  ↑"
	if sig == models.SignalShort {
		icon = "🔴"
		label = "SHORT  ↓"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *NEW SIGNAL* %s\n", icon, icon)
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "💱  Pair:   `%s`\n", pair.Symbol)
	fmt.Fprintf(&b, "⏱  Frame:  `%s`\n", pair.Timeframe)
	fmt.Fprintf(&b, "📊  Side:   *%s*\n", label)
	b.WriteString(divider + "\n")
	if autoTrade {
		b.WriteString("⚙️ _Opening position automatically..._")
	} else {
		b.WriteString("📌 _Auto-trade OFF — enter manually!_")
	}
	return b.String()
}
