// Package model defines data structures for the flight-search pipeline.
package model

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the date-only format used by the model and the search provider.
const DateLayout = "2006-01-02"

// DefaultLeadDays is how many calendar days after today a request with no
// departure date searches.
const DefaultLeadDays = 14

var (
	ErrMissingOrigin      = errors.New("origin is required")
	ErrMissingDestination = errors.New("destination is required")
)

// TravelIntent is the structured interpretation of a flight request.
type TravelIntent struct {
	Origin      string
	Destination string
	DateFrom    *time.Time
	// DateTo and Preferences are kept for the presenter and logs; the search ignores them.
	DateTo      *time.Time
	Preferences []string
}

// NewTravelIntent validates the required locations and returns an intent.
// Either location missing invalidates the whole record.
func NewTravelIntent(origin, destination string, dateFrom, dateTo *time.Time, preferences []string) (TravelIntent, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)

	if origin == "" {
		return TravelIntent{}, ErrMissingOrigin
	}
	if destination == "" {
		return TravelIntent{}, ErrMissingDestination
	}

	prefs := make([]string, 0, len(preferences))
	for _, p := range preferences {
		if p = strings.TrimSpace(p); p != "" {
			prefs = append(prefs, p)
		}
	}

	return TravelIntent{
		Origin:      origin,
		Destination: destination,
		DateFrom:    truncateDate(dateFrom),
		DateTo:      truncateDate(dateTo),
		Preferences: prefs,
	}, nil
}

// DepartureDate returns DateFrom, or the date DefaultLeadDays after now in
// now's location when it is absent.
func (i TravelIntent) DepartureDate(now time.Time) time.Time {
	if i.DateFrom != nil {
		return *i.DateFrom
	}
	d := now.AddDate(0, 0, DefaultLeadDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// DateLabel renders DateFrom for chat output, or fallback when absent.
func (i TravelIntent) DateLabel(fallback string) string {
	if i.DateFrom == nil {
		return fallback
	}
	return i.DateFrom.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date. Empty and "null" values yield nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NormalizeLocationCode upper-cases a location and cuts it to three runes.
// It does not check the result against any airport registry.
func NormalizeLocationCode(s string) string {
	r := []rune(strings.ToUpper(strings.TrimSpace(s)))
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &d
}
