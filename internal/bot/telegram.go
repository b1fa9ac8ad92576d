package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"signal-bot/internal/domain"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

var ErrNoToken = errors.New("TELEGRAM_BOT_TOKEN not set")

// EventHandler consumes decoded inbound events.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Inbound) error
}

func NewBot(token string) (*tele.Bot, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	return tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
}

// Transport decodes Telegram updates into inbound events. It holds no state.
type Transport struct {
	handler EventHandler
	log     *zap.Logger
}

func NewTransport(handler EventHandler, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{handler: handler, log: log}
}

func (t *Transport) Register(b *tele.Bot) {
	b.Handle("/start", t.onStart)
	b.Handle("/manual", t.onManual)
	b.Handle(tele.OnText, t.onText)
	b.Handle(tele.OnCallback, t.onCallback)
}

func (t *Transport) onStart(c tele.Context) error {
	return t.dispatch(domain.StartRequested{User: userOf(c)})
}

func (t *Transport) onManual(c tele.Context) error {
	return t.dispatch(domain.ManualSignalRequested{User: userOf(c)})
}

// onText treats any plain message as an access code. Unregistered commands are ignored.
func (t *Transport) onText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if text == "" || strings.HasPrefix(text, "/") {
		return nil
	}
	return t.dispatch(domain.AccessCodeSubmitted{User: userOf(c), Code: text})
}

func (t *Transport) onCallback(c tele.Context) error {
	if err := c.Respond(); err != nil {
		t.log.Debug("callback ack failed", zap.Error(err))
	}
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	user := userOf(c)
	ev, err := decodeCallback(user, cb.Data)
	if err != nil {
		t.log.Debug("ignoring callback", zap.Int64("user", int64(user)), zap.Error(err))
		return nil
	}
	return t.dispatch(ev)
}

func (t *Transport) dispatch(ev domain.Inbound) error {
	if err := t.handler.Handle(context.Background(), ev); err != nil {
		t.log.Error("event handling failed",
			zap.Int64("user", int64(ev.Recipient())),
			zap.String("event", ev.EventName()),
			zap.Error(err),
		)
	}
	return nil
}

// userOf keys sessions by chat so replies go where the user typed.
func userOf(c tele.Context) domain.UserID {
	if chat := c.Chat(); chat != nil {
		return domain.UserID(chat.ID)
	}
	if sender := c.Sender(); sender != nil {
		return domain.UserID(sender.ID)
	}
	return 0
}
