package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// DurationUnknown is used when the provider supplies no duration token.
const DurationUnknown = "unknown"

var (
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrMissingCurrency = errors.New("currency is required")
)

// Segment is one flown leg. Times are provider strings and are not re-parsed.
type Segment struct {
	From          string `json:"from"`
	To            string `json:"to"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Carrier       string `json:"carrier"`
	FlightNumber  string `json:"flight_number"`
}

// FlightOffer is one normalized search result. Segments of all itineraries
// are flattened in provider order; outbound and return legs are not tagged.
type FlightOffer struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Duration string          `json:"duration"`
	Segments []Segment       `json:"segments"`
}

// NewFlightOffer validates an offer and takes a private copy of its segments.
func NewFlightOffer(price decimal.Decimal, currency, duration string, segments []Segment) (FlightOffer, error) {
	if price.IsNegative() {
		return FlightOffer{}, ErrNegativePrice
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return FlightOffer{}, ErrMissingCurrency
	}
	if strings.TrimSpace(duration) == "" {
		duration = DurationUnknown
	}

	owned := make([]Segment, len(segments))
	copy(owned, segments)

	return FlightOffer{
		Price:    price,
		Currency: currency,
		Duration: duration,
		Segments: owned,
	}, nil
}

// Stops is the number of connections, counting every flattened leg.
func (o FlightOffer) Stops() int {
	if len(o.Segments) == 0 {
		return 0
	}
	return len(o.Segments) - 1
}
