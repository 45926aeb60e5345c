package domain

import (
	"context"
	"errors"
	"time"
)

type PersonType string

const (
	PersonIndividual   PersonType = "INDIVIDUAL"
	PersonOrganization PersonType = "ORGANIZATION"
)

type ProvisionRequest struct {
	PersonType    PersonType     `json:"person_type" validate:"required,oneof=INDIVIDUAL ORGANIZATION"`
	Name          string         `json:"name" validate:"required,max=255"`
	Email         string         `json:"email" validate:"required,email"`
	Document      string         `json:"document" validate:"required"`
	MobilePhone   string         `json:"mobile_phone" validate:"omitempty,max=32"`
	IncomeCents   int64          `json:"income_value_cents" validate:"gte=0"`
	Address       string         `json:"address" validate:"omitempty,max=255"`
	AddressNumber string         `json:"address_number" validate:"omitempty,max=32"`
	Complement    string         `json:"complement" validate:"omitempty,max=255"`
	Province      string         `json:"province" validate:"omitempty,max=255"`
	PostalCode    string         `json:"postal_code" validate:"omitempty,max=16"`
	CompanyType   string         `json:"company_type" validate:"omitempty,oneof=MEI LTDA SA EIRELI ASSOCIATION COOPERATIVE"`
	BirthDate     string         `json:"birth_date"`
	Metadata      map[string]any `json:"metadata"`
}

type CancelRequest struct {
	Reason string `json:"remove_reason" validate:"required,max=500"`
}

// Response is the operator view of an account. Secrets are never included.
type Response struct {
	ID                    string     `json:"id"`
	ExternalAccountID     string     `json:"external_account_id,omitempty"`
	WalletID              string     `json:"wallet_id,omitempty"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	AccountStatus         Status     `json:"account_status"`
	VerificationStatus    string     `json:"verification_status,omitempty"`
	StatusBank            string     `json:"status_bank,omitempty"`
	StatusCommercial      string     `json:"status_commercial,omitempty"`
	StatusDocument        string     `json:"status_document,omitempty"`
	StatusGeneral         string     `json:"status_general,omitempty"`
	StatusReason          string     `json:"status_reason,omitempty"`
	HasAPIKey             bool       `json:"has_api_key"`
	LastWebhookEvent      string     `json:"last_webhook_event,omitempty"`
	LastWebhookReceivedAt *time.Time `json:"last_webhook_received_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	// SyncStatus pulls per-area onboarding status with the account's own key.
	SyncStatus(ctx context.Context, id string) (*Response, error)
	// Cancel closes the account at the partner with its own key, then marks it
	// CANCELLED so its secret token stops authenticating webhooks.
	Cancel(ctx context.Context, id string, req CancelRequest) (*Response, error)
}

var (
	ErrNotFound              = errors.New("account_not_found")
	ErrAlreadyExists         = errors.New("account_already_exists")
	ErrInvalidID             = errors.New("invalid_account_id")
	ErrInvalidDocument       = errors.New("invalid_document")
	ErrInvalidRequest        = errors.New("invalid_request")
	ErrMissingAPIKey         = errors.New("account_api_key_missing")
	ErrCallbackNotConfigured = errors.New("webhook_callback_not_configured")
	ErrAlreadyCancelled      = errors.New("account_already_cancelled")
)

// ToResponse strips secrets from an account.
func ToResponse(a *Account) *Response {
	if a == nil {
		return nil
	}
	return &Response{
		ID:                    a.ID.String(),
		ExternalAccountID:     deref(a.ExternalAccountID),
		WalletID:              deref(a.WalletID),
		Name:                  a.Name,
		Email:                 a.Email,
		AccountStatus:         a.AccountStatus,
		VerificationStatus:    deref(a.VerificationStatus),
		StatusBank:            deref(a.StatusBank),
		StatusCommercial:      deref(a.StatusCommercial),
		StatusDocument:        deref(a.StatusDocument),
		StatusGeneral:         deref(a.StatusGeneral),
		StatusReason:          deref(a.StatusReason),
		HasAPIKey:             a.EncryptedAPIKey != nil && *a.EncryptedAPIKey != "",
		LastWebhookEvent:      deref(a.LastWebhookEvent),
		LastWebhookReceivedAt: a.LastWebhookReceivedAt,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
