package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Verifier validates tokens signed with a shared secret.
type HS256Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHS256Verifier returns a verifier for HS256 tokens. Issuer and audience
// are checked only when non-empty.
func NewHS256Verifier(secret []byte, issuer, audience string, clockSkew time.Duration) (*HS256Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("hs256 auth enabled but secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &HS256Verifier{secret: secret, parser: jwt.NewParser(opts...)}, nil
}

// Verify checks the signature and registered claims.
func (v *HS256Verifier) Verify(_ context.Context, token string) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		reason := "verification_failed"
		switch {
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			reason = "time_validation_failed"
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			reason = "invalid_signature"
		case errors.Is(err, jwt.ErrTokenMalformed):
			reason = "malformed"
		}
		return nil, &tokenError{reason: reason, err: err}
	}
	return claims, nil
}

// TokenClaims describes a principal token to mint.
type TokenClaims struct {
	Subject  string
	UserID   int64
	Admin    bool
	Issuer   string
	Audience []string
	TTL      time.Duration

	UserIDClaim string
	AdminClaim  string
}

// MintHS256 signs a principal token with the shared secret.
func MintHS256(secret []byte, c TokenClaims, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}
	if c.UserIDClaim == "" {
		c.UserIDClaim = "user_id"
	}
	if c.AdminClaim == "" {
		c.AdminClaim = "admin"
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}

	claims := jwt.MapClaims{
		"sub":         c.Subject,
		"iat":         now.Unix(),
		"nbf":         now.Add(-time.Minute).Unix(),
		"exp":         now.Add(c.TTL).Unix(),
		c.UserIDClaim: c.UserID,
	}
	if c.Admin {
		claims[c.AdminClaim] = true
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
