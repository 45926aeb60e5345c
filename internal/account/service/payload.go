package service

import (
	"math"
	"strings"

	"github.com/smallbiznis/partnersync/internal/account/domain"
	"github.com/smallbiznis/partnersync/internal/partnerapi"
)

const (
	defaultIncomeValue   = 1000
	minIncomeValue       = 100
	defaultAddressNumber = "S/N"
	defaultProvince      = "Centro"
	defaultPostalCode    = "00000000"
)

var companyTypes = map[string]string{
	"MEI":         "MEI",
	"LTDA":        "LIMITED",
	"SA":          "LIMITED",
	"EIRELI":      "LIMITED",
	"ASSOCIATION": "ASSOCIATION",
	"COOPERATIVE": "ASSOCIATION",
}

func buildCreateAccountRequest(req domain.ProvisionRequest, document string, hook partnerapi.WebhookConfig) partnerapi.CreateAccountRequest {
	out := partnerapi.CreateAccountRequest{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		CpfCnpj:       document,
		MobilePhone:   normalizeMobilePhone(req.MobilePhone),
		IncomeValue:   incomeValue(req.IncomeCents),
		Address:       strings.TrimSpace(req.Address),
		AddressNumber: withDefault(req.AddressNumber, defaultAddressNumber),
		Complement:    strings.TrimSpace(req.Complement),
		Province:      withDefault(req.Province, defaultProvince),
		PostalCode:    normalizePostalCode(req.PostalCode),
		Webhooks:      []partnerapi.WebhookConfig{hook},
	}

	switch req.PersonType {
	case domain.PersonOrganization:
		if strings.TrimSpace(req.CompanyType) != "" {
			out.CompanyType = companyType(req.CompanyType)
		}
	case domain.PersonIndividual:
		out.BirthDate = datePart(req.BirthDate)
	}
	return out
}

func companyType(v string) string {
	if mapped, ok := companyTypes[strings.ToUpper(strings.TrimSpace(v))]; ok {
		return mapped
	}
	return "LIMITED"
}

// normalizeDocument returns the CPF (11) or CNPJ (14) digits.
func normalizeDocument(v string) (string, error) {
	digits := onlyDigits(v)
	if len(digits) != 11 && len(digits) != 14 {
		return "", domain.ErrInvalidDocument
	}
	return digits, nil
}

// normalizeMobilePhone drops the 55 country code and anything that is not a
// 10 or 11 digit national number.
func normalizeMobilePhone(v string) string {
	digits := onlyDigits(v)
	if strings.HasPrefix(digits, "55") && len(digits) > 11 {
		digits = digits[2:]
	}
	if len(digits) < 10 || len(digits) > 11 {
		return ""
	}
	return digits
}

// incomeValue converts cents to whole currency units with a floor of 100.
func incomeValue(cents int64) float64 {
	if cents <= 0 {
		return defaultIncomeValue
	}
	units := math.Floor(float64(cents)/100 + 0.5)
	return math.Max(units, minIncomeValue)
}

func normalizePostalCode(v string) string {
	digits := onlyDigits(v)
	if digits == "" {
		return defaultPostalCode
	}
	if len(digits) < 8 {
		digits = strings.Repeat("0", 8-len(digits)) + digits
	}
	return digits
}

func datePart(v string) string {
	v = strings.TrimSpace(v)
	if idx := strings.IndexByte(v, 'T'); idx >= 0 {
		v = v[:idx]
	}
	return v
}

func withDefault(v, def string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return def
}

func onlyDigits(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
