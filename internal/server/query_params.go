package server

import (
	"strconv"
	"strings"
)

const maxListLimit = 500

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimit returns def for an empty value. Values outside [1, max] are rejected.
func parseLimit(value string, def int, max int) (int, error) {
	parsed, err := parseOptionalInt(value)
	if err != nil {
		return 0, newValidationError("limit", "invalid_limit", "limit must be an integer")
	}
	if parsed == nil {
		return def, nil
	}
	if *parsed < 1 || *parsed > max {
		return 0, newValidationError("limit", "invalid_limit", "limit out of range")
	}
	return *parsed, nil
}
