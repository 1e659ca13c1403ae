package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/storefront-analytics/internal/adapter/metrics"
	"github.com/user/storefront-analytics/internal/domain"
)

// LeadScoreUseCase computes a session's purchase-intent score from the
// hot tier: one point per distinct product the session has viewed plus
// the weight of each retained raw event for the session. Events already
// archived by a prior flush do not contribute.
type LeadScoreUseCase struct {
	hot     domain.AggregateStore
	logger  *slog.Logger
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewLeadScoreUseCase creates a new LeadScoreUseCase.
func NewLeadScoreUseCase(hot domain.AggregateStore, logger *slog.Logger, timeout time.Duration, m *metrics.Metrics) *LeadScoreUseCase {
	return &LeadScoreUseCase{
		hot:     hot,
		logger:  logger,
		timeout: timeout,
		metrics: m,
	}
}

// Calculate recomputes and classifies a session's score, persisting it
// back into the hot tier under the session's score key. A failure to
// persist degrades repeated lookups but does not fail the calculation.
func (uc *LeadScoreUseCase) Calculate(ctx context.Context, storeID, sessionID string) (float64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	visited, err := uc.hot.VisitedCount(ctx, storeID, sessionID)
	if err != nil {
		return 0, "", err
	}

	events, err := uc.hot.ReadEvents(ctx, storeID)
	if err != nil {
		return 0, "", err
	}

	score := float64(visited)
	for _, event := range events {
		if event.SessionID != sessionID {
			continue
		}
		score += domain.EventWeight(event.EventType)
	}

	classification := domain.ClassifyLead(score)
	uc.metrics.LeadScoresTotal.Inc()

	if err := uc.hot.SetLeadScore(ctx, storeID, sessionID, score); err != nil {
		uc.logger.Warn("failed to persist lead score", "error", err, "store_id", storeID, "session_id", sessionID)
	}

	uc.logger.Info("lead score calculated",
		"store_id", storeID,
		"session_id", sessionID,
		"score", score,
		"classification", classification,
	)

	return score, classification, nil
}

// Score returns the persisted score for a session when one is still
// retained, recomputing it otherwise.
func (uc *LeadScoreUseCase) Score(ctx context.Context, storeID, sessionID string) (float64, string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	score, ok, err := uc.hot.LeadScore(lookupCtx, storeID, sessionID)
	cancel()
	if err != nil {
		uc.logger.Warn("failed to read persisted lead score, recomputing", "error", err, "session_id", sessionID)
	} else if ok {
		return score, domain.ClassifyLead(score), nil
	}
	return uc.Calculate(ctx, storeID, sessionID)
}

// ScoreAll recomputes scores for every session present in each store's
// retained hot log. One session's failure never aborts the rest; it
// returns the number of sessions scored.
func (uc *LeadScoreUseCase) ScoreAll(ctx context.Context) int {
	storeIDs, err := uc.hot.StoreIDs(ctx)
	if err != nil {
		uc.logger.Error("failed to list stores for scoring", "error", err)
		return 0
	}

	scored := 0
	for _, storeID := range storeIDs {
		readCtx, cancel := context.WithTimeout(ctx, uc.timeout)
		events, err := uc.hot.ReadEvents(readCtx, storeID)
		cancel()
		if err != nil {
			uc.logger.Error("failed to read hot log for scoring", "error", err, "store_id", storeID)
			continue
		}

		sessions := make(map[string]struct{})
		for _, event := range events {
			sessions[event.SessionID] = struct{}{}
		}

		for sessionID := range sessions {
			if _, _, err := uc.Calculate(ctx, storeID, sessionID); err != nil {
				uc.logger.Error("failed to score session", "error", err, "store_id", storeID, "session_id", sessionID)
				continue
			}
			scored++
		}
	}
	return scored
}
