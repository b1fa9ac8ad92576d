package bot

import (
	"context"
	"fmt"

	"signal-bot/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Emitter renders outbound events as Telegram messages.
type Emitter struct {
	sender messageSender
	assets *Assets
}

func NewEmitter(sender messageSender, assets *Assets) *Emitter {
	return &Emitter{sender: sender, assets: assets}
}

func (e *Emitter) Emit(_ context.Context, ev domain.Outbound) error {
	if e == nil || e.sender == nil {
		return nil
	}
	what, opts, err := e.render(ev)
	if err != nil {
		return err
	}
	if _, err := e.sender.Send(tele.ChatID(ev.Recipient()), what, opts...); err != nil {
		return fmt.Errorf("send %T to %d: %w", ev, ev.Recipient(), err)
	}
	return nil
}

func (e *Emitter) render(ev domain.Outbound) (interface{}, []interface{}, error) {
	switch v := ev.(type) {
	case domain.PromptAccessCode:
		return "Enter your access code:", nil, nil
	case domain.AccessGranted:
		if v.AlreadyAuthorized {
			return "✅ You already have access. Use /start to pick a pair.", nil, nil
		}
		return "✅ Access granted.", nil, nil
	case domain.AccessDenied:
		return "❌ Invalid code. Try again.", nil, nil
	case domain.PairMenu:
		return "Select a currency pair:", []interface{}{pairKeyboard(v.Pairs)}, nil
	case domain.ExpiryMenu:
		return fmt.Sprintf("Selected %s. Choose expiry time:", v.Pair), []interface{}{expiryKeyboard(v.Expiries)}, nil
	case domain.SignalPending:
		return pendingText(v), nil, nil
	case domain.CountdownNotice:
		return "⏰ Signal will be sent in 1 minute...", nil, nil
	case domain.SignalDelivered:
		return e.renderSignal(v)
	case domain.InvalidTransition:
		return invalidTransitionText(v.Reason), nil, nil
	}
	return nil, nil, fmt.Errorf("no rendering for %T", ev)
}

func (e *Emitter) renderSignal(v domain.SignalDelivered) (interface{}, []interface{}, error) {
	opts := []interface{}{actionKeyboard(v.Actions)}
	caption := signalCaption(v)
	if path, ok := e.assets.Path(v.Asset); ok {
		return &tele.Photo{File: tele.FromDisk(path), Caption: caption}, opts, nil
	}
	return fmt.Sprintf("Signal: %s\n%s", v.Direction, caption), opts, nil
}

func signalCaption(v domain.SignalDelivered) string {
	return fmt.Sprintf(
		"Currency Pair: %s\nExpiry: %s\nVolatility: %s\nProbability: %d%%",
		v.Pair, v.Expiry, v.Volatility, v.Confidence,
	)
}

func pendingText(v domain.SignalPending) string {
	switch {
	case v.Repeat:
		return "⏳ Generating another signal..."
	case v.Manual:
		return "⏳ Generating manual signal..."
	}
	return fmt.Sprintf("⏳ Generating signal for %s with expiry %s...", v.Pair, v.Expiry)
}

func invalidTransitionText(reason domain.ReasonCode) string {
	switch reason {
	case domain.ReasonNotAuthorized:
		return "🔒 Enter your access code first. Use /start."
	case domain.ReasonSelectPairFirst:
		return "Select a currency pair first using /start."
	case domain.ReasonSelectExpiryFirst:
		return "Choose an expiry time first."
	case domain.ReasonUnknownPair:
		return "Unknown currency pair. Use /start to pick one."
	case domain.ReasonUnknownExpiry:
		return "Unknown expiry. Pick one from the menu."
	case domain.ReasonNothingToLeave:
		return "Nothing to go back from. Use /start."
	}
	return "That action is not available right now."
}

func pairKeyboard(pairs []domain.Pair) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []tele.InlineButton{{Text: string(p), Data: pairData(p)}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func expiryKeyboard(expiries []domain.Expiry) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(expiries))
	for _, e := range expiries {
		rows = append(rows, []tele.InlineButton{{Text: string(e), Data: expiryData(e)}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

var actionLabels = map[domain.Action]string{
	domain.ActionRepeat: "🍀Repeat",
	domain.ActionBack:   "↩️Back",
}

func actionKeyboard(actions []domain.Action) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(actions))
	for _, a := range actions {
		label, ok := actionLabels[a]
		if !ok {
			label = string(a)
		}
		rows = append(rows, []tele.InlineButton{{Text: label, Data: actionData(a)}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
