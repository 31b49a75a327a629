package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/amadeus"
	"github.com/flightfinder-eu/flightbot/internal/model"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
	"github.com/flightfinder-eu/flightbot/pkg/metrics"
)

// SearchProvider is the flight inventory the fetcher queries.
type SearchProvider interface {
	SearchFlightOffers(ctx context.Context, params amadeus.SearchParams) ([]amadeus.FlightOffer, error)
}

// FetcherConfig holds search settings.
type FetcherConfig struct {
	Currency   string
	MaxResults int
	// Now is the clock used for the default departure date. Defaults to time.Now.
	Now func() time.Time
}

// Fetcher queries the provider and returns normalized offers, cheapest first.
type Fetcher struct {
	provider SearchProvider
	cfg      FetcherConfig
	logger   *logger.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(provider SearchProvider, cfg FetcherConfig, log *logger.Logger) *Fetcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Fetcher{
		provider: provider,
		cfg:      cfg,
		logger:   log,
	}
}

// Fetch searches for one adult on the intent's departure date. The returned
// slice is never nil; on any failure it is empty and err is a *Failure that
// has already been logged.
func (f *Fetcher) Fetch(ctx context.Context, intent model.TravelIntent) (offers []model.FlightOffer, err error) {
	ctx, span := tracer.Start(ctx, StageFetch)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &Failure{Stage: StageFetch, Reason: ReasonInternal, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			offers = []model.FlightOffer{}
			f.logger.Warn("flight search failed", zap.Error(err), zap.String("reason", string(FailureReason(err))))
		}
		metrics.OffersReturned.Observe(float64(len(offers)))
		finishStage(span, StageFetch, start, err)
	}()

	params := amadeus.SearchParams{
		Origin:        model.NormalizeLocationCode(intent.Origin),
		Destination:   model.NormalizeLocationCode(intent.Destination),
		DepartureDate: intent.DepartureDate(f.cfg.Now()),
		Adults:        1,
		Max:           f.cfg.MaxResults,
		Currency:      f.cfg.Currency,
	}
	span.SetAttributes(
		attribute.String("search.origin", params.Origin),
		attribute.String("search.destination", params.Destination),
		attribute.String("search.date", params.DepartureDate.Format(model.DateLayout)),
	)

	f.logger.Info("searching flights",
		zap.String("origin", params.Origin),
		zap.String("destination", params.Destination),
		zap.String("date", params.DepartureDate.Format(model.DateLayout)),
	)

	if f.provider == nil {
		return nil, &Failure{Stage: StageFetch, Reason: ReasonProviderFailed, Err: errors.New("no search provider configured")}
	}

	raw, err := f.provider.SearchFlightOffers(ctx, params)
	if err != nil {
		return nil, &Failure{Stage: StageFetch, Reason: ReasonProviderFailed, Err: err}
	}

	offers, err = normalizeOffers(raw)
	if err != nil {
		return nil, &Failure{Stage: StageFetch, Reason: ReasonMalformedResponse, Err: err}
	}

	SortByPrice(offers)

	f.logger.Info("flights found", zap.Int("count", len(offers)))
	return offers, nil
}

// normalizeOffers flattens each raw offer. One bad offer fails the whole batch.
func normalizeOffers(raw []amadeus.FlightOffer) ([]model.FlightOffer, error) {
	offers := make([]model.FlightOffer, 0, len(raw))
	for idx, r := range raw {
		offer, err := normalizeOffer(r)
		if err != nil {
			return nil, fmt.Errorf("offer %d (%s): %w", idx, r.ID, err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func normalizeOffer(r amadeus.FlightOffer) (model.FlightOffer, error) {
	price, err := decimal.NewFromString(r.Price.Total)
	if err != nil {
		return model.FlightOffer{}, fmt.Errorf("invalid price %q: %w", r.Price.Total, err)
	}

	// The last itinerary's duration wins; legs of every itinerary are
	// appended in order without an outbound/return marker.
	duration := model.DurationUnknown
	var segments []model.Segment
	for _, it := range r.Itineraries {
		duration = it.Duration
		if duration == "" {
			duration = model.DurationUnknown
		}
		for _, s := range it.Segments {
			segments = append(segments, model.Segment{
				From:          s.Departure.IataCode,
				To:            s.Arrival.IataCode,
				DepartureTime: s.Departure.At,
				ArrivalTime:   s.Arrival.At,
				Carrier:       s.CarrierCode,
				FlightNumber:  s.Number,
			})
		}
	}

	return model.NewFlightOffer(price, r.Price.Currency, duration, segments)
}

// SortByPrice orders offers cheapest first, keeping provider order on ties.
func SortByPrice(offers []model.FlightOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Price.LessThan(offers[j].Price)
	})
}
