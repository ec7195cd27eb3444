// Package telegram implements the transport.Deliverer contract on top of
// the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"mcwatch/pkg/logx"
)

type Config struct {
	Token string
	// PollTimeout configures the underlying long poller. The watcher never
	// consumes updates itself (the admin surface does), but the bot client
	// needs a poller configured.
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// chat maps an opaque group id onto a Telegram chat.
func chat(groupID string) (*tele.Chat, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(groupID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("group id %q is not a telegram chat id: %w", groupID, err)
	}
	return &tele.Chat{ID: id}, nil
}

// SendBatch joins the batch into one message; Telegram has no multi-message
// primitive, so one combined send IS the batch delivery.
func (a *Adapter) SendBatch(ctx context.Context, groupID string, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return a.send(ctx, groupID, strings.Join(messages, "\n"))
}

func (a *Adapter) SendSingle(ctx context.Context, groupID string, message string) error {
	return a.send(ctx, groupID, message)
}

func (a *Adapter) send(ctx context.Context, groupID, text string) error {
	if text == "" {
		return nil
	}
	to, err := chat(groupID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = a.bot.Send(to, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		a.log.Debug("telegram send failed", logx.String("group", groupID), logx.Err(err))
	}
	return err
}
