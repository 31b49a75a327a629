package amadeus

import (
	"time"
)

// SearchParams are the query parameters of a flight-offers search.
type SearchParams struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	Adults        int
	Max           int
	Currency      string
}

// FlightOffersResponse is the body of GET /v2/shopping/flight-offers.
type FlightOffersResponse struct {
	Data   []FlightOffer `json:"data"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

// FlightOffer is a raw offer as returned by the provider.
type FlightOffer struct {
	ID          string      `json:"id"`
	Source      string      `json:"source,omitempty"`
	Price       Price       `json:"price"`
	Itineraries []Itinerary `json:"itineraries"`
}

// Price holds decimal amounts as strings, the way the API sends them.
type Price struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
}

// Itinerary is one direction of travel.
type Itinerary struct {
	Duration string    `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment is one flown leg.
type Segment struct {
	Departure     Endpoint `json:"departure"`
	Arrival       Endpoint `json:"arrival"`
	CarrierCode   string   `json:"carrierCode"`
	Number        string   `json:"number"`
	Duration      string   `json:"duration,omitempty"`
	NumberOfStops int      `json:"numberOfStops,omitempty"`
}

// Endpoint is a departure or arrival point.
type Endpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"`
}

// ErrorDetail is one entry of the API error envelope.
type ErrorDetail struct {
	Status int    `json:"status"`
	Code   int    `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}
