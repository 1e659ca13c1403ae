package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/domain"
	"github.com/user/storefront-analytics/internal/usecase"
)

const sessionHeader = "X-Session-ID"

// TrackHandler handles HTTP requests for event tracking.
type TrackHandler struct {
	useCase      *usecase.TrackEventUseCase
	logger       *slog.Logger
	metrics      *metrics.Metrics
	maxEventSize int64
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(uc *usecase.TrackEventUseCase, logger *slog.Logger, m *metrics.Metrics, maxEventSize int64) *TrackHandler {
	return &TrackHandler{
		useCase:      uc,
		logger:       logger,
		metrics:      m,
		maxEventSize: maxEventSize,
	}
}

// ServeHTTP processes incoming track requests: a single JSON event or
// an NDJSON stream of events.
func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxEventSize)
	session := r.Header.Get(sessionHeader)

	var err error
	switch r.Header.Get("Content-Type") {
	case "application/json":
		err = h.handleSingleJSON(r.Context(), r, session)
	case "application/x-ndjson":
		err = h.handleNDJSON(r.Context(), r, session)
	default:
		http.Error(w, "Unsupported Content-Type", http.StatusUnsupportedMediaType)
		return
	}

	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, usecase.ErrInvalidEvent):
			http.Error(w, "store_id and session_id are required", http.StatusBadRequest)
		case errors.Is(err, errBadPayload):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			h.logger.Error("failed to record event", "error", err)
			http.Error(w, "Failed to record event", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

var errBadPayload = errors.New("malformed event payload")

func (h *TrackHandler) handleSingleJSON(ctx context.Context, r *http.Request, session string) error {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.metrics.EventsTotal.WithLabelValues("unknown", "error_parse").Inc()
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return errBadPayload
	}
	return h.trackOne(ctx, &event, session)
}

func (h *TrackHandler) handleNDJSON(ctx context.Context, r *http.Request, session string) error {
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event domain.Event
		if err := json.Unmarshal(line, &event); err != nil {
			// Skip the malformed line, keep processing the stream.
			h.metrics.EventsTotal.WithLabelValues("unknown", "error_parse").Inc()
			h.logger.Warn("failed to unmarshal ndjson line", "error", err)
			continue
		}

		if err := h.trackOne(ctx, &event, session); err != nil {
			h.logger.Error("failed to track event from ndjson stream", "error", err, "event_id", event.ID)
		}
	}
	return scanner.Err()
}

func (h *TrackHandler) trackOne(ctx context.Context, event *domain.Event, session string) error {
	if event.SessionID == "" {
		event.SessionID = session
	}

	// The request layer decides view vs revisit. The membership check
	// and the track call are not atomic: two concurrent first views of
	// the same product may both land as product_view. Accepted for
	// analytics-only data.
	if event.EventType == domain.EventProductView && event.EntityID != "" && event.StoreID != "" && event.SessionID != "" {
		visited, err := h.useCase.HasVisitedProduct(ctx, event.StoreID, event.SessionID, event.EntityID)
		if err != nil {
			h.logger.Warn("revisit detection failed, recording as first view", "error", err, "product_id", event.EntityID)
		} else if visited {
			event.EventType = domain.EventProductRevisit
		}
	}

	if err := h.useCase.Track(ctx, event); err != nil {
		if errors.Is(err, usecase.ErrInvalidEvent) {
			h.metrics.EventsTotal.WithLabelValues(event.EventType, "error_parse").Inc()
		} else {
			h.metrics.EventsTotal.WithLabelValues(event.EventType, "error_store").Inc()
		}
		return err
	}

	h.metrics.EventsTotal.WithLabelValues(event.EventType, "accepted").Inc()
	return nil
}
