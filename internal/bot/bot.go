package bot

import (
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/Armin-FalDiS/availability-bot/internal/auth"
)

// Bot answers /start with an inline button that opens the mini app.
// It is optional: without both a token and a web app URL there is
// nothing useful for it to do.
type Bot struct {
	bot       *tele.Bot
	allow     *auth.Allowlist
	webAppURL string
	logger    *zap.Logger
}

// New builds the launcher bot. It returns (nil, nil) when token or
// webAppURL is empty, which callers treat as "bot disabled".
func New(token, webAppURL string, allow *auth.Allowlist, logger *zap.Logger) (*Bot, error) {
	if token == "" || webAppURL == "" {
		logger.Warn("BOT_TOKEN or WEB_APP_URL not provided; launcher bot disabled")
		return nil, nil
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	launcher := &Bot{bot: b, allow: allow, webAppURL: webAppURL, logger: logger}
	b.Handle("/start", launcher.handleStart)
	return launcher, nil
}

// handleStart replies with the mini app button. Non-whitelisted users get
// no reply at all, mirroring the silent denial of the HTTP layer.
func (b *Bot) handleStart(c tele.Context) error {
	userID := c.Sender().ID
	if !b.allow.Allowed(userID) {
		b.logger.Warn("user not allow-listed for /start", zap.Int64("user_id", userID))
		return nil
	}

	markup := &tele.ReplyMarkup{}
	open := markup.WebApp("Open Availability Calendar", &tele.WebApp{URL: b.webAppURL})
	markup.Inline(markup.Row(open))

	return c.Send("Welcome to the Availability Bot!", markup)
}

// Start begins long polling in the background.
func (b *Bot) Start() {
	if b == nil {
		return
	}
	b.logger.Info("launcher bot running")
	go b.bot.Start()
}

// Stop ends long polling.
func (b *Bot) Stop() {
	if b == nil {
		return
	}
	b.bot.Stop()
}
