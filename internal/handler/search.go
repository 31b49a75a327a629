package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flightfinder-eu/flightbot/internal/gateway"
	"github.com/flightfinder-eu/flightbot/internal/middleware"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
)

// Transport is the transport label for API requests.
const Transport = "http"

// maxBodyBytes bounds the request body; the text limit is enforced separately.
const maxBodyBytes = 16 << 10

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Text string `json:"text"`
}

// SearchResponse lists the chat replies the request produced, in order.
type SearchResponse struct {
	RequestID string          `json:"request_id"`
	Outcome   string          `json:"outcome"`
	Replies   []gateway.Reply `json:"replies"`
}

// SearchHandler exposes the chat gateway over HTTP.
type SearchHandler struct {
	gateway gateway.Handler
	logger  *logger.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(gw gateway.Handler, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		gateway: gw,
		logger:  log,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		h.logger.Debug("invalid search body",
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateQueryText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var replies gateway.Collector
	event := h.gateway.HandleText(r.Context(), gateway.Inbound{
		Transport: Transport,
		UserID:    middleware.GetUserID(r.Context()),
		Text:      req.Text,
	}, &replies)

	h.logger.Info("search answered",
		zap.String("request_id", event.RequestID),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("outcome", string(event.Outcome)),
	)

	writeJSON(w, http.StatusOK, &SearchResponse{
		RequestID: event.RequestID,
		Outcome:   string(event.Outcome),
		Replies:   replies.Replies(),
	})
}
