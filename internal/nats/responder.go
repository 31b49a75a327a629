package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/gateway"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
)

const (
	// QuerySubject receives search requests.
	QuerySubject = "flights.query"

	// QueryQueue load-balances requests across bot instances.
	QueryQueue = "flightbot"

	// Transport is the transport label for NATS requests.
	Transport = "nats"

	pendingMessages = 64
)

// QueryRequest is the JSON body of a flights.query message.
type QueryRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// QueryResponse is the JSON reply to a flights.query message.
type QueryResponse struct {
	RequestID string          `json:"request_id,omitempty"`
	Outcome   string          `json:"outcome,omitempty"`
	Replies   []gateway.Reply `json:"replies"`
	Error     string          `json:"error,omitempty"`
}

// Responder answers search requests arriving on QuerySubject.
type Responder struct {
	client  *Client
	handler gateway.Handler
	logger  *logger.Logger
}

// NewResponder creates a new responder.
func NewResponder(client *Client, handler gateway.Handler, log *logger.Logger) *Responder {
	return &Responder{
		client:  client,
		handler: handler,
		logger:  log,
	}
}

// Run subscribes until ctx is cancelled, handling each request in its own
// goroutine, and waits for in-flight requests before returning. Cancelling
// ctx stops intake only; requests already being handled run to completion.
func (r *Responder) Run(ctx context.Context) error {
	msgs := make(chan *nats.Msg, pendingMessages)
	sub, err := r.client.Conn().ChanQueueSubscribe(QuerySubject, QueryQueue, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", QuerySubject, err)
	}

	r.logger.Info("NATS responder started", zap.String("subject", QuerySubject), zap.String("queue", QueryQueue))
	r.serve(ctx, msgs, func() {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	})
	r.logger.Info("NATS responder stopped")
	return nil
}

// serve dispatches msgs until ctx is cancelled, calls stop, then waits for
// every dispatched request.
func (r *Responder) serve(ctx context.Context, msgs <-chan *nats.Msg, stop func()) {
	handleCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case m := <-msgs:
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.respond(handleCtx, m)
			}()
		}
	}
}

func (r *Responder) respond(ctx context.Context, m *nats.Msg) {
	data := r.process(ctx, m.Data)
	if m.Reply == "" {
		return
	}
	if err := m.Respond(data); err != nil {
		r.logger.Warn("failed to send NATS reply", zap.Error(err))
	}
}

// process decodes one request, runs it through the gateway and encodes the reply.
func (r *Responder) process(ctx context.Context, body []byte) []byte {
	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return encodeResponse(QueryResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return encodeResponse(QueryResponse{Error: "text cannot be empty"})
	}

	var replies gateway.Collector
	event := r.handler.HandleText(ctx, gateway.Inbound{
		Transport: Transport,
		UserID:    req.UserID,
		Text:      req.Text,
	}, &replies)

	return encodeResponse(QueryResponse{
		RequestID: event.RequestID,
		Outcome:   string(event.Outcome),
		Replies:   replies.Replies(),
	})
}

func encodeResponse(resp QueryResponse) []byte {
	if resp.Replies == nil {
		resp.Replies = []gateway.Reply{}
	}
	data, _ := json.Marshal(resp)
	return data
}
