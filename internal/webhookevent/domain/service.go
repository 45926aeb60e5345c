package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Service is the operator view over the event queue.
type Service interface {
	List(ctx context.Context, req ListRequest) ([]Response, error)
	// Requeue moves an ERROR event back to PENDING with a fresh retry budget.
	Requeue(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Status    string
	AccountID string
	Limit     int
}

type Response struct {
	ID              string          `json:"id"`
	ExternalEventID string          `json:"external_event_id"`
	AccountID       string          `json:"account_id"`
	EventType       string          `json:"event_type"`
	Status          Status          `json:"status"`
	RetryCount      int             `json:"retry_count"`
	ReceivedAt      time.Time       `json:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingError *string         `json:"processing_error,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToResponse renders an event for operators.
func ToResponse(e *Event) Response {
	return Response{
		ID:              e.ID.String(),
		ExternalEventID: e.ExternalEventID,
		AccountID:       e.AccountID.String(),
		EventType:       e.EventType,
		Status:          e.Status,
		RetryCount:      e.RetryCount,
		ReceivedAt:      e.ReceivedAt,
		ProcessedAt:     e.ProcessedAt,
		ProcessingError: e.ProcessingError,
		Payload:         json.RawMessage(e.Payload),
		UpdatedAt:       e.UpdatedAt,
	}
}
