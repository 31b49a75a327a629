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

// InterpretMaxTokens bounds the interpretation reply.
const InterpretMaxTokens = 500

const codeFence = "```"

const interpretTemplate = `The user is looking for flights within Europe (EU). Analyse the request and extract:
- departure city/airport (3-letter IATA code if you know it, otherwise the city name)
- arrival city/airport (3-letter IATA code if you know it, otherwise the city name)
- date range (format YYYY-MM-DD)
- the user's preferences

Request: "%s"

Reply ONLY with JSON (no markdown, no ` + codeFence + `):
{
  "origin": "3_letter_IATA_code",
  "destination": "3_letter_IATA_code",
  "date_from": "YYYY-MM-DD or null",
  "date_to": "YYYY-MM-DD or null",
  "preferences": []
}

If you cannot determine origin or destination, return null for it.
JSON ONLY, NOTHING ELSE.`

// intentPayload is the JSON shape the model is asked to return.
type intentPayload struct {
	Origin      *string         `json:"origin"`
	Destination *string         `json:"destination"`
	DateFrom    *string         `json:"date_from"`
	DateTo      *string         `json:"date_to"`
	Preferences json.RawMessage `json:"preferences"`
}

// Interpreter turns free text into a TravelIntent with one LLM call.
type Interpreter struct {
	llmClient llm.Client
	logger    *logger.Logger
}

// NewInterpreter creates a new interpreter.
func NewInterpreter(llmClient llm.Client, log *logger.Logger) *Interpreter {
	return &Interpreter{
		llmClient: llmClient,
		logger:    log,
	}
}

// Interpret asks the model for a structured intent. Any failure, whatever its
// cause, yields a *Failure and a zero intent.
func (i *Interpreter) Interpret(ctx context.Context, userText string) (intent model.TravelIntent, err error) {
	ctx, span := tracer.Start(ctx, StageInterpret)
	start := time.Now()
	defer func() { finishStage(span, StageInterpret, start, err) }()

	if i.llmClient == nil {
		return model.TravelIntent{}, &Failure{Stage: StageInterpret, Reason: ReasonInferenceFailed, Err: errors.New("no LLM client configured")}
	}

	resp, err := i.llmClient.Complete(ctx, &llm.CompletionRequest{
		Messages:  llm.UserMessage(fmt.Sprintf(interpretTemplate, userText)),
		MaxTokens: InterpretMaxTokens,
	})
	if err != nil {
		i.logger.Warn("intent inference failed", zap.Error(err))
		return model.TravelIntent{}, &Failure{Stage: StageInterpret, Reason: ReasonInferenceFailed, Err: err}
	}
	metrics.RecordLLMUsage(resp.Model, resp.TokensIn, resp.TokensOut)

	payload, err := parseIntentPayload(resp.Content)
	if err != nil {
		i.logger.Warn("intent output is not JSON", zap.Error(err), zap.String("raw", truncate(resp.Content, 200)))
		return model.TravelIntent{}, &Failure{Stage: StageInterpret, Reason: ReasonUnparsableOutput, Err: err}
	}

	intent, err = payload.toIntent(i.logger)
	if err != nil {
		i.logger.Debug("intent is missing a location", zap.Error(err))
		return model.TravelIntent{}, &Failure{Stage: StageInterpret, Reason: ReasonMissingLocation, Err: err}
	}

	span.SetAttributes(
		attribute.String("intent.origin", intent.Origin),
		attribute.String("intent.destination", intent.Destination),
	)
	return intent, nil
}

func (p intentPayload) toIntent(log *logger.Logger) (model.TravelIntent, error) {
	return model.NewTravelIntent(
		location(p.Origin),
		location(p.Destination),
		lenientDate(p.DateFrom, "date_from", log),
		lenientDate(p.DateTo, "date_to", log),
		lenientStrings(p.Preferences),
	)
}

// parseIntentPayload strips code fences and decodes the first JSON object.
func parseIntentPayload(raw string) (intentPayload, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return intentPayload{}, errors.New("empty model output")
	}

	var p intentPayload
	err := json.Unmarshal([]byte(text), &p)
	if err == nil {
		return p, nil
	}

	if obj := extractJSONObject(text); obj != "" {
		if err2 := json.Unmarshal([]byte(obj), &p); err2 == nil {
			return p, nil
		}
	}
	return intentPayload{}, err
}

func stripCodeFence(s string) string {
	s = strings.ReplaceAll(s, codeFence+"json", "")
	s = strings.ReplaceAll(s, codeFence, "")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced {...} in s, ignoring braces in strings.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escape:
			escape = false
		case ch == '\\' && inString:
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// lenientDate drops dates the model wrote in any format other than YYYY-MM-DD.
func lenientDate(s *string, field string, log *logger.Logger) *time.Time {
	if s == nil {
		return nil
	}
	t, err := model.ParseDate(*s)
	if err != nil {
		log.Debug("ignoring unparsable date", zap.String("field", field), zap.String("value", *s))
		return nil
	}
	return t
}

// lenientStrings accepts a list of strings or a single string.
func lenientStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var one string
	if json.Unmarshal(raw, &one) == nil && one != "" {
		return []string{one}
	}
	return nil
}

// location treats a missing value and a literal "null" the same way.
func location(s *string) string {
	if s == nil || strings.EqualFold(strings.TrimSpace(*s), "null") {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
