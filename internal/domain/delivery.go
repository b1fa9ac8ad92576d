package domain

import "time"

// Delivery is a journal entry for one delivered signal.
type Delivery struct {
	ID          int64      `json:"id"`
	User        UserID     `json:"user"`
	RequestID   RequestID  `json:"request_id,omitempty"`
	Pair        Pair       `json:"pair"`
	Expiry      Expiry     `json:"expiry"`
	Direction   Direction  `json:"direction"`
	Confidence  int        `json:"confidence"`
	Volatility  Volatility `json:"volatility"`
	Sent        bool       `json:"sent"`
	DeliveredAt time.Time  `json:"delivered_at"`
}

type DeliveryFilter struct {
	User  UserID
	Pair  Pair
	Limit int
}
