package model

import (
	"time"
)

// Outcome is how a chat request ended.
type Outcome string

const (
	OutcomeCommand       Outcome = "command"
	OutcomeNotUnderstood Outcome = "not_understood"
	OutcomeNoFlights     Outcome = "no_flights"
	OutcomeAnswered      Outcome = "answered"
	OutcomeError         Outcome = "error"
)

// SearchEvent describes one finished chat request for operators.
type SearchEvent struct {
	RequestID   string    `json:"request_id"`
	Transport   string    `json:"transport"`
	UserID      string    `json:"user_id"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	OfferCount  int       `json:"offer_count"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
