package domain

import (
	"context"
	"net/http"
	"time"
)

type ResultStatus string

const (
	StatusEnqueued  ResultStatus = "ENQUEUED"
	StatusDuplicate ResultStatus = "DUPLICATE"
)

// Result acknowledges a delivery. Both statuses are success for the partner.
type Result struct {
	Status          ResultStatus `json:"status"`
	EventID         string       `json:"event_id,omitempty"`
	ExternalEventID string       `json:"external_event_id"`
	EventType       string       `json:"event_type"`
}

// Payload holds the two fields the receiver needs; the body is stored verbatim.
type Payload struct {
	ID    string `json:"id" validate:"required"`
	Event string `json:"event" validate:"required"`
}

type Service interface {
	Receive(ctx context.Context, headers http.Header, body []byte) (*Result, error)
}

type RejectionKind string

const (
	RejectUnauthenticated     RejectionKind = "UNAUTHENTICATED"
	RejectAmbiguousCredential RejectionKind = "AMBIGUOUS_CREDENTIAL"
	RejectBadPayload          RejectionKind = "BAD_PAYLOAD"
	RejectStorageFailure      RejectionKind = "STORAGE_FAILURE"
	RejectRateLimited         RejectionKind = "RATE_LIMITED"
)

// Rejection is returned for every delivery the receiver refuses.
type Rejection struct {
	Kind       RejectionKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Message
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func Reject(kind RejectionKind, message string, cause error) *Rejection {
	return &Rejection{Kind: kind, Message: message, Err: cause}
}
