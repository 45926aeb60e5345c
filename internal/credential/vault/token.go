package vault

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	tokenAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hexAlphabet        = "0123456789abcdef"
	DefaultTokenLength = 32
	webhookTokenLength = 14
)

// GenerateSecureToken returns a random alphanumeric token of length n.
func GenerateSecureToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenLength
	}
	return randomFrom(tokenAlphabet, n)
}

// GenerateWebhookToken returns a 14 character hex token.
func GenerateWebhookToken() (string, error) {
	return randomFrom(hexAlphabet, webhookTokenLength)
}

func randomFrom(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%w: generate token", ErrCrypto)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
