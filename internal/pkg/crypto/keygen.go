// Package crypto provides the credential hasher for Warden.
package crypto

import (
	"crypto/rand"
	"fmt"
)

// secretChars contains characters used for generated secrets.
const secretChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// GeneratedSecretLength is the length of secrets returned by GenerateSecret.
const GeneratedSecretLength = 24

// GenerateSecret returns a random password-shaped string. It is used for
// decoy credentials and for operator-issued initial passwords.
func GenerateSecret() (string, error) {
	return generateRandomString(GeneratedSecretLength, secretChars)
}

// generateRandomString generates a random string of the specified length
// using characters from the provided character set.
func generateRandomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := len(charset)

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// 64-character charset: every byte maps without modulo bias.
	for i := 0; i < length; i++ {
		result[i] = charset[int(randomBytes[i])%charsetLen]
	}

	return string(result), nil
}
