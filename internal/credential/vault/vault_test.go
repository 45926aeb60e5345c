package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := Default()
	inputs := []string{
		"",
		"$aact_YTU5YTE0M2M2N2I4MTliNzk0YTI5N2U5MzdjNWZmNDQ6OjAwMDAwMDAwMDAwMDAwNzE5NjU6OiRhYWNoXzQ5",
		"unicode: ação çãõ 😀",
		strings.Repeat("x", 4096),
	}
	for _, plaintext := range inputs {
		blob, err := v.Encrypt(plaintext, "master-secret")
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if strings.Contains(blob, plaintext) && plaintext != "" {
			t.Fatalf("blob leaks plaintext")
		}
		got, err := v.Decrypt(blob, "master-secret")
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, err := Encrypt("same", "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := Encrypt("same", "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct blobs for repeated encryption")
	}
}

func TestBlobLayout(t *testing.T) {
	blob, err := Encrypt("abc", "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := nonceSize + len("abc") + tagSize; len(raw) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(raw))
	}
}

func TestDecryptWrongSecret(t *testing.T) {
	blob, err := Encrypt("api-key", "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(blob, "wrong"); !errors.Is(err, ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestDecryptTamperedBlob(t *testing.T) {
	blob, err := Encrypt("api-key", "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(blob)
	for _, idx := range []int{0, nonceSize, len(raw) - 1} {
		tampered := append([]byte(nil), raw...)
		tampered[idx] ^= 0x01
		_, err := Decrypt(base64.StdEncoding.EncodeToString(tampered), "secret")
		if !errors.Is(err, ErrCrypto) {
			t.Fatalf("byte %d: expected ErrCrypto, got %v", idx, err)
		}
	}
}

func TestDecryptMalformedInput(t *testing.T) {
	cases := []string{
		"not base64 !!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		"",
	}
	for _, blob := range cases {
		if _, err := Decrypt(blob, "secret"); !errors.Is(err, ErrCrypto) {
			t.Fatalf("blob %q: expected ErrCrypto, got %v", blob, err)
		}
	}
}

func TestEmptyMasterSecret(t *testing.T) {
	if _, err := Encrypt("x", ""); !errors.Is(err, ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestSaltChangesKey(t *testing.T) {
	other, err := New(Config{Salt: "deployment-specific-salt"})
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	blob, err := other.Encrypt("api-key", "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(blob, "secret"); !errors.Is(err, ErrCrypto) {
		t.Fatalf("expected default salt to fail, got %v", err)
	}
	got, err := other.Decrypt(blob, "secret")
	if err != nil || got != "api-key" {
		t.Fatalf("expected round trip with same salt, got %q, %v", got, err)
	}
}

func TestNewRejectsLowIterations(t *testing.T) {
	if _, err := New(Config{Iterations: 1000}); !errors.Is(err, ErrInvalidIteration) {
		t.Fatalf("expected ErrInvalidIteration, got %v", err)
	}
}

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(token) != DefaultTokenLength {
		t.Fatalf("expected length %d, got %d", DefaultTokenLength, len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
	other, _ := GenerateSecureToken(0)
	if token == other {
		t.Fatalf("expected distinct tokens")
	}
}

func TestGenerateWebhookToken(t *testing.T) {
	token, err := GenerateWebhookToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(token) != webhookTokenLength {
		t.Fatalf("expected length %d, got %d", webhookTokenLength, len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune(hexAlphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}
