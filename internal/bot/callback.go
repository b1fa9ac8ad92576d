package bot

import (
	"errors"
	"fmt"
	"strings"

	"signal-bot/internal/domain"
)

const (
	pairPrefix   = "pair:"
	expiryPrefix = "exp:"
)

var errUnknownCallback = errors.New("unknown callback data")

func pairData(p domain.Pair) string     { return pairPrefix + string(p) }
func expiryData(e domain.Expiry) string { return expiryPrefix + string(e) }
func actionData(a domain.Action) string { return string(a) }

// decodeCallback turns inline button data into an inbound event. Unknown pair
// or expiry values are passed through so the state machine reports them.
func decodeCallback(user domain.UserID, data string) (domain.Inbound, error) {
	data = strings.TrimSpace(data)
	switch {
	case strings.HasPrefix(data, pairPrefix):
		raw := strings.TrimPrefix(data, pairPrefix)
		pair, err := domain.ParsePair(raw)
		if err != nil {
			pair = domain.Pair(raw)
		}
		return domain.PairChosen{User: user, Pair: pair}, nil
	case strings.HasPrefix(data, expiryPrefix):
		raw := strings.TrimPrefix(data, expiryPrefix)
		expiry, err := domain.ParseExpiry(raw)
		if err != nil {
			expiry = domain.Expiry(raw)
		}
		return domain.ExpiryChosen{User: user, Expiry: expiry}, nil
	case data == string(domain.ActionRepeat):
		return domain.RepeatRequested{User: user}, nil
	case data == string(domain.ActionBack):
		return domain.BackRequested{User: user}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCallback, data)
}
