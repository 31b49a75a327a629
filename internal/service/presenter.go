package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/llm"
	"github.com/flightfinder-eu/flightbot/internal/model"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
	"github.com/flightfinder-eu/flightbot/pkg/metrics"
)

const (
	// PresentMaxTokens bounds the summary reply.
	PresentMaxTokens = 1500

	// ShortlistSize is how many of the cheapest offers the model sees.
	ShortlistSize = 5

	flexibleDate = "flexible"
)

const presentTemplate = `You have flight search results:

From: %s → To: %s
Date: %s
Offers found: %d (showing the %d cheapest)

Flights (top %d):
%s

Format this for Telegram (Markdown):
1. List the TOP 3 best options
2. For each one: price, duration, number of stops
3. A short recommendation (the best choice)
4. Use emoji
5. Keep it readable on mobile

REPLY WITH THE TEXT ONLY, NO COMMENTS.`

// Presenter summarizes ranked offers with one LLM call.
type Presenter struct {
	llmClient llm.Client
	logger    *logger.Logger
}

// NewPresenter creates a new presenter.
func NewPresenter(llmClient llm.Client, log *logger.Logger) *Presenter {
	return &Presenter{
		llmClient: llmClient,
		logger:    log,
	}
}

// Shortlist returns the first ShortlistSize offers of an already sorted slice.
func Shortlist(offers []model.FlightOffer) []model.FlightOffer {
	if len(offers) > ShortlistSize {
		return offers[:ShortlistSize:ShortlistSize]
	}
	return offers
}

// Present returns the model's text verbatim. On failure it returns a short
// error line naming the cause, together with a *Failure.
func (p *Presenter) Present(ctx context.Context, intent model.TravelIntent, offers []model.FlightOffer) (text string, err error) {
	ctx, span := tracer.Start(ctx, StagePresent)
	start := time.Now()
	defer func() { finishStage(span, StagePresent, start, err) }()

	shortlist := Shortlist(offers)
	span.SetAttributes(
		attribute.Int("offers.total", len(offers)),
		attribute.Int("offers.shortlisted", len(shortlist)),
	)

	prompt, err := buildPresentPrompt(intent, shortlist, len(offers))
	if err != nil {
		return p.fail(err)
	}

	if p.llmClient == nil {
		return p.fail(errors.New("no LLM client configured"))
	}

	resp, err := p.llmClient.Complete(ctx, &llm.CompletionRequest{
		Messages:  llm.UserMessage(prompt),
		MaxTokens: PresentMaxTokens,
	})
	if err != nil {
		return p.fail(err)
	}
	metrics.RecordLLMUsage(resp.Model, resp.TokensIn, resp.TokensOut)

	return strings.TrimSpace(resp.Content), nil
}

func (p *Presenter) fail(err error) (string, error) {
	p.logger.Warn("result formatting failed", zap.Error(err))
	return fmt.Sprintf("❌ Formatting error: %v", err), &Failure{Stage: StagePresent, Reason: ReasonPresentationFailed, Err: err}
}

// offerView is the shape of one offer in the prompt. Price is a JSON number.
type offerView struct {
	Price    json.Number     `json:"price"`
	Currency string          `json:"currency"`
	Duration string          `json:"duration"`
	Stops    int             `json:"stops"`
	Segments []model.Segment `json:"segments"`
}

func newOfferViews(offers []model.FlightOffer) []offerView {
	views := make([]offerView, len(offers))
	for i, o := range offers {
		views[i] = offerView{
			Price:    json.Number(o.Price.String()),
			Currency: o.Currency,
			Duration: o.Duration,
			Stops:    o.Stops(),
			Segments: o.Segments,
		}
	}
	return views
}

func buildPresentPrompt(intent model.TravelIntent, shortlist []model.FlightOffer, total int) (string, error) {
	data, err := json.MarshalIndent(newOfferViews(shortlist), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal offers: %w", err)
	}

	return fmt.Sprintf(presentTemplate,
		intent.Origin,
		intent.Destination,
		intent.DateLabel(flexibleDate),
		total,
		len(shortlist),
		len(shortlist),
		data,
	), nil
}
