package domain

// Inbound is an event produced by the transport for one user.
type Inbound interface {
	Recipient() UserID
	EventName() string
}

type StartRequested struct{ User UserID }

type AccessCodeSubmitted struct {
	User UserID
	Code string
}

type PairChosen struct {
	User UserID
	Pair Pair
}

type ExpiryChosen struct {
	User   UserID
	Expiry Expiry
}

type RepeatRequested struct{ User UserID }

type BackRequested struct{ User UserID }

type ManualSignalRequested struct{ User UserID }

func (e StartRequested) Recipient() UserID        { return e.User }
func (e AccessCodeSubmitted) Recipient() UserID   { return e.User }
func (e PairChosen) Recipient() UserID            { return e.User }
func (e ExpiryChosen) Recipient() UserID          { return e.User }
func (e RepeatRequested) Recipient() UserID       { return e.User }
func (e BackRequested) Recipient() UserID         { return e.User }
func (e ManualSignalRequested) Recipient() UserID { return e.User }

func (StartRequested) EventName() string        { return "start" }
func (AccessCodeSubmitted) EventName() string   { return "access_code" }
func (PairChosen) EventName() string            { return "pair" }
func (ExpiryChosen) EventName() string          { return "expiry" }
func (RepeatRequested) EventName() string       { return "repeat" }
func (BackRequested) EventName() string         { return "back" }
func (ManualSignalRequested) EventName() string { return "manual" }

// Outbound is an event the core hands to the transport for delivery.
type Outbound interface {
	Recipient() UserID
	outbound()
}

type PromptAccessCode struct{ User UserID }

type AccessGranted struct {
	User              UserID
	AlreadyAuthorized bool
}

type AccessDenied struct{ User UserID }

type PairMenu struct {
	User  UserID
	Pairs []Pair
}

type ExpiryMenu struct {
	User     UserID
	Pair     Pair
	Expiries []Expiry
}

type CountdownNotice struct {
	User      UserID
	RequestID RequestID
}

// SignalPending tells the user a signal is being generated.
type SignalPending struct {
	User   UserID
	Pair   Pair
	Expiry Expiry
	Repeat bool
	Manual bool
}

type SignalDelivered struct {
	User       UserID
	RequestID  RequestID
	Direction  Direction
	Confidence int
	Pair       Pair
	Expiry     Expiry
	Volatility Volatility
	Asset      Asset
	Actions    []Action
}

// ReasonCode explains why an event was rejected.
type ReasonCode string

const (
	ReasonNotAuthorized     ReasonCode = "not_authorized"
	ReasonSelectPairFirst   ReasonCode = "select_pair_first"
	ReasonSelectExpiryFirst ReasonCode = "select_expiry_first"
	ReasonUnknownPair       ReasonCode = "unknown_pair"
	ReasonUnknownExpiry     ReasonCode = "unknown_expiry"
	ReasonNothingToLeave    ReasonCode = "nothing_to_go_back_from"
)

type InvalidTransition struct {
	User   UserID
	Reason ReasonCode
}

func (e PromptAccessCode) Recipient() UserID  { return e.User }
func (e AccessGranted) Recipient() UserID     { return e.User }
func (e AccessDenied) Recipient() UserID      { return e.User }
func (e PairMenu) Recipient() UserID          { return e.User }
func (e ExpiryMenu) Recipient() UserID        { return e.User }
func (e CountdownNotice) Recipient() UserID   { return e.User }
func (e SignalPending) Recipient() UserID     { return e.User }
func (e SignalDelivered) Recipient() UserID   { return e.User }
func (e InvalidTransition) Recipient() UserID { return e.User }

func (PromptAccessCode) outbound()  {}
func (AccessGranted) outbound()     {}
func (AccessDenied) outbound()      {}
func (PairMenu) outbound()          {}
func (ExpiryMenu) outbound()        {}
func (CountdownNotice) outbound()   {}
func (SignalPending) outbound()     {}
func (SignalDelivered) outbound()   {}
func (InvalidTransition) outbound() {}
