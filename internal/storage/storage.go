// Package storage defines the persistence interfaces for comparison runs.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ComparisonRecord is one persisted comparison run.
type ComparisonRecord struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Request   json.RawMessage `json:"request"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"`
	CreatedAt time.Time       `json:"created_at"`
}

// OutcomeRecord is one provider's stored outcome. Raw keeps the provider
// payload verbatim next to the normalized form so the two can be diffed
// after the fact.
type OutcomeRecord struct {
	ComparisonID string          `json:"comparison_id"`
	Provider     string          `json:"provider"`
	Position     int             `json:"position"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	Normalized   json.RawMessage `json:"normalized"`
	DurationNS   int64           `json:"duration_ns"`
}

// ListOptions controls pagination for listing comparisons.
type ListOptions struct {
	Limit  int
	Offset int
}

// ComparisonStore persists comparison runs.
type ComparisonStore interface {
	SaveComparison(ctx context.Context, rec *ComparisonRecord) error
	GetComparison(ctx context.Context, id string) (*ComparisonRecord, error)
	ListComparisons(ctx context.Context, opts ListOptions) ([]*ComparisonRecord, error)
	Close() error
}

// RecordFromResult flattens a comparison result into its stored form.
func RecordFromResult(result *domain.ComparisonResult) (*ComparisonRecord, error) {
	request, err := json.Marshal(result.Request)
	if err != nil {
		return nil, err
	}

	rec := &ComparisonRecord{
		ID:        result.ID,
		Request:   request,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
	}
	if result.Request != nil {
		rec.Query = result.Request.Query
	}

	for i, outcome := range result.Outcomes {
		normalized, err := json.Marshal(outcome)
		if err != nil {
			return nil, err
		}
		rec.Outcomes = append(rec.Outcomes, OutcomeRecord{
			ComparisonID: result.ID,
			Provider:     outcome.Provider,
			Position:     i,
			Status:       string(outcome.Status),
			Raw:          outcome.Raw,
			Normalized:   normalized,
			DurationNS:   int64(outcome.Duration),
		})
	}

	return rec, nil
}
