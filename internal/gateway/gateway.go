// Package gateway runs one chat message through the flight-search pipeline
// and turns stage outcomes into chat replies. It knows nothing about the
// transport that delivered the message.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/model"
	"github.com/flightfinder-eu/flightbot/internal/service"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
	"github.com/flightfinder-eu/flightbot/pkg/metrics"
)

// Inbound is one text message received by a transport.
type Inbound struct {
	Transport string
	UserID    string
	Text      string
}

// Reply is one outbound chat message.
type Reply struct {
	Text     string `json:"text"`
	Markdown bool   `json:"markdown"`
}

// Replier delivers replies back to the user that sent the message.
type Replier interface {
	Send(ctx context.Context, r Reply) error
}

// IntentInterpreter turns free text into a travel intent.
type IntentInterpreter interface {
	Interpret(ctx context.Context, userText string) (model.TravelIntent, error)
}

// OfferFetcher returns offers sorted cheapest first. The slice is never nil.
type OfferFetcher interface {
	Fetch(ctx context.Context, intent model.TravelIntent) ([]model.FlightOffer, error)
}

// ResultPresenter renders offers as chat text.
type ResultPresenter interface {
	Present(ctx context.Context, intent model.TravelIntent, offers []model.FlightOffer) (string, error)
}

// EventPublisher receives one event per finished request.
type EventPublisher interface {
	PublishSearchEvent(ctx context.Context, event model.SearchEvent) error
}

// Handler is what transports call for every inbound text message.
type Handler interface {
	HandleText(ctx context.Context, in Inbound, r Replier) model.SearchEvent
}

// Gateway wires the three pipeline stages to a chat conversation.
type Gateway struct {
	interpreter IntentInterpreter
	fetcher     OfferFetcher
	presenter   ResultPresenter
	publisher   EventPublisher
	logger      *logger.Logger
}

// New creates a new gateway. A nil publisher disables search events.
func New(interpreter IntentInterpreter, fetcher OfferFetcher, presenter ResultPresenter, publisher EventPublisher, log *logger.Logger) *Gateway {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Gateway{
		interpreter: interpreter,
		fetcher:     fetcher,
		presenter:   presenter,
		publisher:   publisher,
		logger:      log,
	}
}

// HandleText answers one message. It never panics and never returns an
// error: every failure ends as a chat reply and is reported in the event.
func (g *Gateway) HandleText(ctx context.Context, in Inbound, r Replier) (event model.SearchEvent) {
	start := time.Now()
	event = model.SearchEvent{
		RequestID: uuid.NewString(),
		Transport: in.Transport,
		UserID:    in.UserID,
		CreatedAt: start.UTC(),
	}
	log := g.logger.WithRequest(event.RequestID, in.Transport, in.UserID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("request panicked", zap.Any("panic", rec), zap.Stack("stack"))
			event.Outcome = model.OutcomeError
			event.Reason = string(service.ReasonInternal)
			g.replyGenericError(ctx, r, log)
		}

		event.DurationMs = time.Since(start).Milliseconds()
		metrics.PipelineRunsTotal.WithLabelValues(in.Transport, string(event.Outcome)).Inc()
		log.Info("request finished",
			zap.String("outcome", string(event.Outcome)),
			zap.String("reason", event.Reason),
			zap.Int("offers", event.OfferCount),
			zap.Int64("duration_ms", event.DurationMs),
		)

		if err := g.publisher.PublishSearchEvent(ctx, event); err != nil {
			log.Warn("failed to publish search event", zap.Error(err))
		}
	}()

	text := strings.TrimSpace(in.Text)
	if cmd, ok := parseCommand(text); ok {
		metrics.ChatMessagesTotal.WithLabelValues(in.Transport, "command").Inc()
		event.Outcome = model.OutcomeCommand
		if err := g.command(ctx, cmd, r); err != nil {
			log.Error("failed to answer command", zap.String("command", cmd), zap.Error(err))
			event.Outcome = model.OutcomeError
			event.Reason = string(service.ReasonInternal)
			g.replyGenericError(ctx, r, log)
		}
		return event
	}

	metrics.ChatMessagesTotal.WithLabelValues(in.Transport, "text").Inc()
	log.Info("search requested", zap.String("text", text))

	if err := g.search(ctx, text, r, log, &event); err != nil {
		log.Error("request failed", zap.Error(err))
		event.Outcome = model.OutcomeError
		if event.Reason == "" {
			event.Reason = string(service.FailureReason(err))
		}
		g.replyGenericError(ctx, r, log)
	}
	return event
}

// search runs interpret → fetch → present. Stage failures are answered
// inline; the returned error is reserved for failures to reply at all.
func (g *Gateway) search(ctx context.Context, text string, r Replier, log *logger.Logger, event *model.SearchEvent) error {
	if err := r.Send(ctx, Reply{Text: searchingText}); err != nil {
		return fmt.Errorf("failed to send acknowledgement: %w", err)
	}

	if text == "" {
		event.Outcome = model.OutcomeNotUnderstood
		event.Reason = "empty_text"
		return r.Send(ctx, Reply{Text: notUnderstoodText, Markdown: true})
	}

	intent, err := g.interpreter.Interpret(ctx, text)
	if err != nil {
		log.Info("request not understood", zap.Error(err))
		event.Outcome = model.OutcomeNotUnderstood
		event.Reason = string(service.FailureReason(err))
		return r.Send(ctx, Reply{Text: notUnderstoodText, Markdown: true})
	}
	event.Origin = intent.Origin
	event.Destination = intent.Destination

	if err := r.Send(ctx, Reply{Text: understoodText(intent), Markdown: true}); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}

	offers, err := g.fetcher.Fetch(ctx, intent)
	if err != nil {
		event.Reason = string(service.FailureReason(err))
	}
	event.OfferCount = len(offers)
	if len(offers) == 0 {
		event.Outcome = model.OutcomeNoFlights
		return r.Send(ctx, Reply{Text: noFlightsText})
	}

	summary, err := g.presenter.Present(ctx, intent, offers)
	event.Outcome = model.OutcomeAnswered
	if err != nil {
		// The formatting error line is sent as plain text.
		event.Reason = string(service.FailureReason(err))
		return r.Send(ctx, Reply{Text: summary})
	}
	return r.Send(ctx, Reply{Text: summary, Markdown: true})
}

func (g *Gateway) command(ctx context.Context, cmd string, r Replier) error {
	switch cmd {
	case "start":
		return r.Send(ctx, Reply{Text: welcomeText, Markdown: true})
	case "help":
		return r.Send(ctx, Reply{Text: helpText, Markdown: true})
	default:
		return nil
	}
}

// replyGenericError is best effort; a replier that fails or panics here is only logged.
func (g *Gateway) replyGenericError(ctx context.Context, r Replier, log *logger.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("error reply panicked", zap.Any("panic", rec))
		}
	}()
	if err := r.Send(ctx, Reply{Text: genericErrorText}); err != nil {
		log.Error("failed to send error reply", zap.Error(err))
	}
}

// parseCommand recognizes "/name" and "/name@botname" as the first word.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	return strings.ToLower(word), true
}
