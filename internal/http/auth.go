package http

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier checks bearer tokens against a single configured secret. The
// secret is held only as a bcrypt hash.
type TokenVerifier struct {
	hash []byte
	// raw is set when the configured value was already a bcrypt hash of the
	// token itself rather than of its digest.
	raw bool
}

// NewTokenVerifier hashes secret for later comparison. A value that is
// already a bcrypt hash ("$2a$", "$2b$", ...) is used as-is.
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("http: token secret is required")
	}
	if strings.HasPrefix(secret, "$2") {
		if _, err := bcrypt.Cost([]byte(secret)); err != nil {
			return nil, err
		}
		return &TokenVerifier{hash: []byte(secret), raw: true}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(digest(secret)), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	return &TokenVerifier{hash: hash}, nil
}

// Verify reports whether token matches the configured secret.
func (v *TokenVerifier) Verify(token string) bool {
	if v == nil || token == "" {
		return false
	}
	candidate := token
	if !v.raw {
		candidate = digest(token)
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(candidate)) == nil
}

// digest keeps long secrets under bcrypt's 72 byte input limit.
func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func extractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
