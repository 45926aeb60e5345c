// Package mapping turns partner event types into account status patches.
//
// Every supported event type is listed in rules. Anything else resolves to an
// empty patch unless an operator override names it.
package mapping

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/config"
)

// DefaultReason is stored when a rejection carries no reason.
const DefaultReason = "No specific reason provided in webhook payload."

type Area string

const (
	AreaNone       Area = ""
	AreaBank       Area = "status_bank"
	AreaCommercial Area = "status_commercial"
	AreaDocument   Area = "status_document"
	AreaGeneral    Area = "status_general"
)

// Rule is one row of the mapping table.
type Rule struct {
	AccountStatus      accountdomain.Status
	VerificationStatus string
	Area               Area
	AreaStatus         string
	// FromPayload copies status and verificationStatus from the body.
	FromPayload bool
	// CaptureReason records the rejection reason from the body.
	CaptureReason bool
}

var rules = map[string]Rule{
	"ACCOUNT_APPROVED":       {AccountStatus: accountdomain.StatusActive, VerificationStatus: accountdomain.AreaApproved},
	"ACCOUNT_REJECTED":       {AccountStatus: accountdomain.StatusSuspended, VerificationStatus: accountdomain.AreaRejected, CaptureReason: true},
	"ACCOUNT_SUSPENDED":      {AccountStatus: accountdomain.StatusSuspended},
	"ACCOUNT_REACTIVATED":    {AccountStatus: accountdomain.StatusActive},
	"ACCOUNT_STATUS_UPDATED": {FromPayload: true},

	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_APPROVED":          {Area: AreaBank, AreaStatus: accountdomain.AreaApproved},
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_AWAITING_APPROVAL": {Area: AreaBank, AreaStatus: accountdomain.AreaAwaitingApproval},
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_PENDING":           {Area: AreaBank, AreaStatus: accountdomain.AreaPending},
	"ACCOUNT_STATUS_BANK_ACCOUNT_INFO_REJECTED":          {Area: AreaBank, AreaStatus: accountdomain.AreaRejected, CaptureReason: true},

	"ACCOUNT_STATUS_COMMERCIAL_INFO_APPROVED":          {Area: AreaCommercial, AreaStatus: accountdomain.AreaApproved},
	"ACCOUNT_STATUS_COMMERCIAL_INFO_AWAITING_APPROVAL": {Area: AreaCommercial, AreaStatus: accountdomain.AreaAwaitingApproval},
	"ACCOUNT_STATUS_COMMERCIAL_INFO_PENDING":           {Area: AreaCommercial, AreaStatus: accountdomain.AreaPending},
	"ACCOUNT_STATUS_COMMERCIAL_INFO_REJECTED":          {Area: AreaCommercial, AreaStatus: accountdomain.AreaRejected, CaptureReason: true},

	"ACCOUNT_STATUS_DOCUMENT_APPROVED":          {Area: AreaDocument, AreaStatus: accountdomain.AreaApproved},
	"ACCOUNT_STATUS_DOCUMENT_AWAITING_APPROVAL": {Area: AreaDocument, AreaStatus: accountdomain.AreaAwaitingApproval},
	"ACCOUNT_STATUS_DOCUMENT_PENDING":           {Area: AreaDocument, AreaStatus: accountdomain.AreaPending},
	"ACCOUNT_STATUS_DOCUMENT_REJECTED":          {Area: AreaDocument, AreaStatus: accountdomain.AreaRejected, CaptureReason: true},

	"ACCOUNT_STATUS_GENERAL_APPROVAL_APPROVED":          {Area: AreaGeneral, AreaStatus: accountdomain.AreaApproved},
	"ACCOUNT_STATUS_GENERAL_APPROVAL_AWAITING_APPROVAL": {Area: AreaGeneral, AreaStatus: accountdomain.AreaAwaitingApproval},
	"ACCOUNT_STATUS_GENERAL_APPROVAL_PENDING":           {Area: AreaGeneral, AreaStatus: accountdomain.AreaPending},
	"ACCOUNT_STATUS_GENERAL_APPROVAL_REJECTED":          {Area: AreaGeneral, AreaStatus: accountdomain.AreaRejected, CaptureReason: true},
}

var knownAccountStatuses = map[accountdomain.Status]struct{}{
	accountdomain.StatusPendingSetup: {},
	accountdomain.StatusActive:       {},
	accountdomain.StatusSuspended:    {},
	accountdomain.StatusCancelled:    {},
}

// Lookup returns the built-in rule for eventType.
func Lookup(eventType string) (Rule, bool) {
	rule, ok := rules[strings.TrimSpace(eventType)]
	return rule, ok
}

// EventTypes lists every built-in event type.
func EventTypes() []string {
	out := make([]string, 0, len(rules))
	for k := range rules {
		out = append(out, k)
	}
	return out
}

type Mapper struct {
	overrides *config.EventMappingHolder
}

// New returns a mapper. overrides may be nil.
func New(overrides *config.EventMappingHolder) *Mapper {
	return &Mapper{overrides: overrides}
}

// Resolve maps an event to a patch. Unknown events yield an empty patch.
func (m *Mapper) Resolve(eventType string, payload []byte) accountdomain.Patch {
	if rule, ok := Lookup(eventType); ok {
		return rule.apply(payload)
	}
	if m != nil {
		if rule, ok := m.override(eventType); ok {
			return rule.apply(payload)
		}
	}
	return accountdomain.Patch{}
}

func (m *Mapper) override(eventType string) (Rule, bool) {
	eventType = strings.TrimSpace(eventType)
	for _, r := range m.overrides.Get().Rules {
		if strings.TrimSpace(r.Event) != eventType {
			continue
		}
		return Rule{
			AccountStatus:      accountdomain.Status(strings.ToUpper(strings.TrimSpace(r.AccountStatus))),
			VerificationStatus: strings.ToUpper(strings.TrimSpace(r.VerificationStatus)),
		}, true
	}
	return Rule{}, false
}

func (r Rule) apply(payload []byte) accountdomain.Patch {
	var patch accountdomain.Patch
	body := decode(payload)

	if r.AccountStatus != "" {
		if _, ok := knownAccountStatuses[r.AccountStatus]; ok {
			status := r.AccountStatus
			patch.AccountStatus = &status
		}
	}
	if r.VerificationStatus != "" {
		v := r.VerificationStatus
		patch.VerificationStatus = &v
	}

	if r.FromPayload {
		if s := firstString(body, "status"); s != "" {
			status := accountdomain.Status(strings.ToUpper(s))
			if _, ok := knownAccountStatuses[status]; ok {
				patch.AccountStatus = &status
			}
		}
		if v := firstString(body, "verificationStatus"); v != "" {
			patch.VerificationStatus = &v
		}
	}

	if r.Area != AreaNone {
		status := r.AreaStatus
		switch r.Area {
		case AreaBank:
			patch.StatusBank = &status
		case AreaCommercial:
			patch.StatusCommercial = &status
		case AreaDocument:
			patch.StatusDocument = &status
		case AreaGeneral:
			patch.StatusGeneral = &status
		}
		if !r.CaptureReason {
			patch.ClearReason = true
		}
	}

	if r.CaptureReason {
		reason := Reason(body)
		patch.StatusReason = &reason
	}
	return patch
}

// IgnoredStatus returns the payload status a FromPayload rule dropped because
// it is not a known account status. The event still resolves; only the
// status column is left alone.
func IgnoredStatus(eventType string, payload []byte) string {
	rule, ok := Lookup(eventType)
	if !ok || !rule.FromPayload {
		return ""
	}
	s := firstString(decode(payload), "status")
	if s == "" {
		return ""
	}
	if _, known := knownAccountStatuses[accountdomain.Status(strings.ToUpper(s))]; known {
		return ""
	}
	return s
}

// Reason picks the first non-empty reason field and truncates it.
func Reason(body map[string]any) string {
	candidates := []string{
		nestedString(body, "account", "refusalReason"),
		nestedString(body, "bankAccount", "refusalReason"),
		firstString(body, "description"),
		firstErrorDescription(body),
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return truncateRunes(c, accountdomain.MaxReasonLength)
		}
	}
	return DefaultReason
}

// Describe renders the columns a patch writes, for batch reports.
func Describe(p accountdomain.Patch) map[string]any {
	out := map[string]any{}
	if p.AccountStatus != nil {
		out["account_status"] = string(*p.AccountStatus)
	}
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set("verification_status", p.VerificationStatus)
	set(string(AreaBank), p.StatusBank)
	set(string(AreaCommercial), p.StatusCommercial)
	set(string(AreaDocument), p.StatusDocument)
	set(string(AreaGeneral), p.StatusGeneral)
	if p.ClearReason {
		out["status_reason"] = nil
	} else {
		set("status_reason", p.StatusReason)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decode(payload []byte) map[string]any {
	var body map[string]any
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	return body
}

func firstString(body map[string]any, key string) string {
	if body == nil {
		return ""
	}
	if s, ok := body[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nestedString(body map[string]any, parent, key string) string {
	if body == nil {
		return ""
	}
	child, ok := body[parent].(map[string]any)
	if !ok {
		return ""
	}
	return firstString(child, key)
}

func firstErrorDescription(body map[string]any) string {
	if body == nil {
		return ""
	}
	list, ok := body["errors"].([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return ""
	}
	return firstString(first, "description")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
