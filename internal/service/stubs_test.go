package service

import (
	"context"
	"sync"

	"github.com/flightfinder-eu/flightbot/internal/amadeus"
	"github.com/flightfinder-eu/flightbot/internal/llm"
)

// stubLLM returns a canned reply and records every request.
type stubLLM struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []*llm.CompletionRequest
}

func (s *stubLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content, Model: "stub"}, nil
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	msgs := s.requests[len(s.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

// stubProvider is an in-memory SearchProvider.
type stubProvider struct {
	offers []amadeus.FlightOffer
	err    error
	panic  bool
	calls  []amadeus.SearchParams
}

func (s *stubProvider) SearchFlightOffers(_ context.Context, p amadeus.SearchParams) ([]amadeus.FlightOffer, error) {
	s.calls = append(s.calls, p)
	if s.panic {
		panic("provider exploded")
	}
	return s.offers, s.err
}

func rawOffer(id, total string) amadeus.FlightOffer {
	return amadeus.FlightOffer{
		ID:    id,
		Price: amadeus.Price{Currency: "EUR", Total: total},
		Itineraries: []amadeus.Itinerary{{
			Duration: "PT2H30M",
			Segments: []amadeus.Segment{{
				Departure:   amadeus.Endpoint{IataCode: "WAW", At: "2026-06-03T06:10:00"},
				Arrival:     amadeus.Endpoint{IataCode: "BCN", At: "2026-06-03T08:40:00"},
				CarrierCode: "LO",
				Number:      id,
			}},
		}},
	}
}
