package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string. Exp stores the expiration
// timestamp. Access tokens are short-lived and sent in the Authorization
// header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user. The JWT carries
// the standard subject claim plus the email and role needed by the
// authorization middleware: sub, email, role, exp, iat.
func NewAccessToken(secret, userID, email, role string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// OpaqueToken is a random token handed to users out of band (password
// reset and email verification links) together with its expiry.
type OpaqueToken struct {
	Raw string
	Exp time.Time
}

// NewResetToken returns an opaque token for the password-reset flow.
// Reset tokens expire after one hour.
func NewResetToken() (OpaqueToken, error) {
	return newOpaqueToken(time.Hour)
}

// NewVerificationToken returns an opaque token for the email-verification
// flow. Verification tokens expire after 24 hours.
func NewVerificationToken() (OpaqueToken, error) {
	return newOpaqueToken(24 * time.Hour)
}

func newOpaqueToken(ttl time.Duration) (OpaqueToken, error) {
	raw, err := randomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
