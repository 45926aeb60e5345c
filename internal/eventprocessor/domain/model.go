package domain

import (
	"context"
	"errors"

	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
)

const (
	DefaultBatchSize = 10
	DefaultMaxRetry  = 3
)

// EventResult reports what happened to one event in a batch.
type EventResult struct {
	EventID         string             `json:"event_id"`
	ExternalEventID string             `json:"external_event_id"`
	EventType       string             `json:"event_type"`
	Success         bool               `json:"success"`
	Status          eventdomain.Status `json:"status"`
	RetryCount      int                `json:"retry_count"`
	Error           string             `json:"error,omitempty"`
	Patch           map[string]any     `json:"patch,omitempty"`
}

type BatchResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Errors    int           `json:"errors"`
	Details   []EventResult `json:"details"`
}

type Service interface {
	// RunBatch processes up to batchSize pending events in received order.
	// Only a failure to list pending events is returned as an error.
	RunBatch(ctx context.Context, batchSize int) (*BatchResult, error)
}

var (
	ErrRetryExhausted   = errors.New("retry_exhausted")
	ErrStoreUnavailable = errors.New("event_store_unavailable")
	ErrBatchInProgress  = errors.New("batch_in_progress")
	ErrLockUnavailable  = errors.New("batch_lock_unavailable")
	ErrInterrupted      = errors.New("batch_interrupted")
)
