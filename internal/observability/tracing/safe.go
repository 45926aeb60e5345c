package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const maxErrorMessage = 256

var sensitiveFragments = []string{
	"token",
	"secret",
	"password",
	"authorization",
	"api_key",
	"apikey",
	"access_token",
}

// SafeAttributes drops attributes whose key looks like it carries a credential.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

// SafeError returns a copy of err suitable for span events. Messages that
// mention credentials are replaced and long messages are cut.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	if isSensitiveKey(message) {
		return errors.New("redacted error")
	}
	if len(message) > maxErrorMessage {
		message = message[:maxErrorMessage]
	}
	return errors.New(message)
}

func isSensitiveKey(value string) bool {
	value = strings.ToLower(value)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(value, fragment) {
			return true
		}
	}
	return false
}
