// Package telegram delivers chat messages from a Telegram bot to the gateway.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/gateway"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
)

// Transport is the transport label used in logs, metrics and events.
const Transport = "telegram"

// API is the part of the Bot API the transport uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot long-polls for updates and handles each message in its own goroutine.
type Bot struct {
	api         API
	handler     gateway.Handler
	logger      *logger.Logger
	pollTimeout int
}

// NewBot connects to the Bot API with the given token.
func NewBot(token string, handler gateway.Handler, log *logger.Logger, pollTimeout int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return NewBotWithAPI(api, handler, log, pollTimeout), nil
}

// NewBotWithAPI creates a bot on top of an existing API client.
func NewBotWithAPI(api API, handler gateway.Handler, log *logger.Logger, pollTimeout int) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Bot{
		api:         api,
		handler:     handler,
		logger:      log,
		pollTimeout: pollTimeout,
	}
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight messages to finish. Cancelling ctx stops polling only;
// messages already being handled run to completion.
func (b *Bot) Run(ctx context.Context) error {
	handleCtx := context.WithoutCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	b.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Text == "" {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handle(handleCtx, msg)
			}()
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	var userID string
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}
	in := gateway.Inbound{Transport: Transport, UserID: userID, Text: msg.Text}
	b.handler.HandleText(ctx, in, &chatReplier{api: b.api, chatID: msg.Chat.ID, logger: b.logger})
}

// chatReplier sends replies to one chat.
type chatReplier struct {
	api    API
	chatID int64
	logger *logger.Logger
}

func (c *chatReplier) Send(_ context.Context, r gateway.Reply) error {
	msg := tgbotapi.NewMessage(c.chatID, r.Text)
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := c.api.Send(msg)
	if err != nil && r.Markdown {
		// Model output is not always valid Markdown.
		c.logger.Debug("markdown rejected, resending as plain text", zap.Error(err))
		msg.ParseMode = ""
		_, err = c.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
