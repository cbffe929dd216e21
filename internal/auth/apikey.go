package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// CheckAPIKey compares a presented operator API key against its stored bcrypt
// hash. Used by service-to-service callers that cannot hold a JWT.
func CheckAPIKey(presented, storedHash string) bool {
	if presented == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented)) == nil
}

// HashAPIKey produces a bcrypt hash suitable for OPERATOR_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
