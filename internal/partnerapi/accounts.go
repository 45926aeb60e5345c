package partnerapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	SendTypeSequentially = "SEQUENTIALLY"
	WebhookNameAccount   = "AccountStatus"
)

// AccountStatusEvents are the onboarding notifications subscribed for every
// provisioned sub-account.
var AccountStatusEvents = []string{
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_APPROVED",
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_AWAITING_APPROVAL",
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_PENDING",
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_REJECTED",
	"ACCOUNT_STATUS_COMMERCIAL_INFO_APPROVED",
	"ACCOUNT_STATUS_COMMERCIAL_INFO_AWAITING_APPROVAL",
	"ACCOUNT_STATUS_COMMERCIAL_INFO_PENDING",
	"ACCOUNT_STATUS_COMMERCIAL_INFO_REJECTED",
	"ACCOUNT_STATUS_DOCUMENT_APPROVED",
	"ACCOUNT_STATUS_DOCUMENT_AWAITING_APPROVAL",
	"ACCOUNT_STATUS_DOCUMENT_PENDING",
	"ACCOUNT_STATUS_DOCUMENT_REJECTED",
	"ACCOUNT_STATUS_GENERAL_APPROVAL_APPROVED",
	"ACCOUNT_STATUS_GENERAL_APPROVAL_AWAITING_APPROVAL",
	"ACCOUNT_STATUS_GENERAL_APPROVAL_PENDING",
	"ACCOUNT_STATUS_GENERAL_APPROVAL_REJECTED",
}

type WebhookConfig struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Email       string   `json:"email"`
	Enabled     bool     `json:"enabled"`
	Interrupted bool     `json:"interrupted"`
	AuthToken   string   `json:"authToken"`
	SendType    string   `json:"sendType"`
	Events      []string `json:"events"`
}

type CreateAccountRequest struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	CpfCnpj       string          `json:"cpfCnpj"`
	MobilePhone   string          `json:"mobilePhone,omitempty"`
	IncomeValue   float64         `json:"incomeValue,omitempty"`
	Address       string          `json:"address,omitempty"`
	AddressNumber string          `json:"addressNumber,omitempty"`
	Complement    string          `json:"complement,omitempty"`
	Province      string          `json:"province,omitempty"`
	PostalCode    string          `json:"postalCode,omitempty"`
	CompanyType   string          `json:"companyType,omitempty"`
	BirthDate     string          `json:"birthDate,omitempty"`
	Webhooks      []WebhookConfig `json:"webhooks,omitempty"`
}

// Account is the partner's view of a sub-account. APIKey is only populated
// by the create call.
type Account struct {
	ID       string `json:"id"`
	WalletID string `json:"walletId"`
	APIKey   string `json:"apiKey,omitempty"`
	Status   string `json:"status,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	CpfCnpj  string `json:"cpfCnpj,omitempty"`
}

// AccountStatus is the per-area onboarding state reported by /myAccount/status.
type AccountStatus struct {
	ID              string `json:"id"`
	CommercialInfo  string `json:"commercialInfo"`
	BankAccountInfo string `json:"bankAccountInfo"`
	Documentation   string `json:"documentation"`
	General         string `json:"general"`
}

// NewAccountWebhook builds the account-status subscription that points the
// partner back at this service.
func NewAccountWebhook(callbackURL, email, authToken string) WebhookConfig {
	events := make([]string, len(AccountStatusEvents))
	copy(events, AccountStatusEvents)
	return WebhookConfig{
		Name:        WebhookNameAccount,
		URL:         callbackURL,
		Email:       email,
		Enabled:     true,
		Interrupted: false,
		AuthToken:   authToken,
		SendType:    SendTypeSequentially,
		Events:      events,
	}
}

// CreateAccount provisions a sub-account with the master key.
func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	var out Account
	if err := c.do(ctx, c.masterKey, http.MethodPost, "/accounts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount looks a sub-account up by partner id with the master key.
func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}
	var out Account
	if err := c.do(ctx, c.masterKey, http.MethodGet, "/accounts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMyAccountStatus reads onboarding status with the sub-account's own key.
func (a *AccountAPI) GetMyAccountStatus(ctx context.Context) (*AccountStatus, error) {
	var out AccountStatus
	if err := a.client.do(ctx, a.apiKey, http.MethodGet, "/myAccount/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type DeleteAccountRequest struct {
	RemoveReason string `json:"removeReason"`
}

// DeleteMyAccount closes the sub-account owning the key. The partner's
// response body is returned as-is for bookkeeping.
func (a *AccountAPI) DeleteMyAccount(ctx context.Context, reason string) (map[string]any, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	out := map[string]any{}
	if err := a.client.do(ctx, a.apiKey, http.MethodDelete, "/myAccount/", DeleteAccountRequest{RemoveReason: reason}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
