package session

import (
	"errors"
	"fmt"

	"signal-bot/internal/domain"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	PairSelected
	ExpirySelected
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case PairSelected:
		return "pair_selected"
	case ExpirySelected:
		return "expiry_selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid in current state")
	ErrUnauthorizedCode  = errors.New("invalid access code")
)

// TransitionError is returned when an event's guard fails. The session is left untouched.
type TransitionError struct {
	Event  string
	State  State
	Reason domain.ReasonCode
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s in state %s (%s)", ErrInvalidTransition, e.Event, e.State, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func reject(event string, state State, reason domain.ReasonCode) error {
	return &TransitionError{Event: event, State: state, Reason: reason}
}

// ReasonOf extracts the reason code from a transition error.
func ReasonOf(err error) (domain.ReasonCode, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Reason, true
	}
	return "", false
}

// Session is the per-user conversation record. Zero values mean "not selected".
// It must only be mutated inside Store.With.
type Session struct {
	Authenticated    bool
	Pair             domain.Pair
	Expiry           domain.Expiry
	PendingRequestID domain.RequestID
}

func (s *Session) State() State {
	switch {
	case !s.Authenticated:
		return Unauthenticated
	case s.Pair == "":
		return Authenticated
	case s.Expiry == "":
		return PairSelected
	default:
		return ExpirySelected
	}
}

// SubmitAccessCode applies the outcome of an access-code check.
// Resubmitting once authorized is informational and reports alreadyAuthorized.
func (s *Session) SubmitAccessCode(valid bool) (alreadyAuthorized bool, err error) {
	if s.State() != Unauthenticated {
		return true, nil
	}
	if !valid {
		return false, ErrUnauthorizedCode
	}
	s.Authenticated = true
	return false, nil
}

// SelectPair starts a new selection. A pending request for the previous
// selection is dropped.
func (s *Session) SelectPair(pair domain.Pair) error {
	const event = "select_pair"
	state := s.State()
	if state == Unauthenticated {
		return reject(event, state, domain.ReasonNotAuthorized)
	}
	if !pair.IsValid() {
		return reject(event, state, domain.ReasonUnknownPair)
	}
	s.Pair = pair
	s.Expiry = ""
	s.PendingRequestID = ""
	return nil
}

func (s *Session) SelectExpiry(expiry domain.Expiry) error {
	const event = "select_expiry"
	state := s.State()
	switch state {
	case Unauthenticated:
		return reject(event, state, domain.ReasonNotAuthorized)
	case Authenticated:
		return reject(event, state, domain.ReasonSelectPairFirst)
	}
	if !expiry.IsValid() {
		return reject(event, state, domain.ReasonUnknownExpiry)
	}
	s.Expiry = expiry
	return nil
}

// Repeat returns the current selection for regeneration. Only valid once a
// signal has been requested for a pair and expiry.
func (s *Session) Repeat() (domain.Pair, domain.Expiry, error) {
	const event = "repeat"
	switch state := s.State(); state {
	case Unauthenticated:
		return "", "", reject(event, state, domain.ReasonNotAuthorized)
	case Authenticated:
		return "", "", reject(event, state, domain.ReasonSelectPairFirst)
	case PairSelected:
		return "", "", reject(event, state, domain.ReasonSelectExpiryFirst)
	}
	return s.Pair, s.Expiry, nil
}

// Back returns to pair selection. Authentication survives; the selection and
// any pending scheduled request do not.
func (s *Session) Back() error {
	const event = "back"
	switch state := s.State(); state {
	case Unauthenticated:
		return reject(event, state, domain.ReasonNotAuthorized)
	case Authenticated:
		return reject(event, state, domain.ReasonNothingToLeave)
	}
	s.Pair = ""
	s.Expiry = ""
	s.PendingRequestID = ""
	return nil
}

// Manual returns the current selection without changing state.
func (s *Session) Manual() (domain.Pair, domain.Expiry, error) {
	const event = "manual"
	state := s.State()
	if state == Unauthenticated {
		return "", "", reject(event, state, domain.ReasonNotAuthorized)
	}
	if s.Pair == "" || s.Expiry == "" {
		return "", "", reject(event, state, domain.ReasonSelectPairFirst)
	}
	return s.Pair, s.Expiry, nil
}

// Supersede records id as the only live scheduled request and returns the one
// it replaces, if any.
func (s *Session) Supersede(id domain.RequestID) domain.RequestID {
	previous := s.PendingRequestID
	s.PendingRequestID = id
	return previous
}

// IsPending reports whether id is still the live request.
func (s *Session) IsPending(id domain.RequestID) bool {
	return id != "" && s.PendingRequestID == id
}

// Claim clears the pending request if it is id. A false result means the fire is stale.
func (s *Session) Claim(id domain.RequestID) bool {
	if !s.IsPending(id) {
		return false
	}
	s.PendingRequestID = ""
	return true
}
