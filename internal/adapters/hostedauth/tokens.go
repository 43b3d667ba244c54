package hostedauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the GoTrue access-token claims we read.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// tokenParser reads access-token claims, verifying the HS256 signature when a
// secret is configured. Expiry is read, not enforced: callers decide whether to
// refresh.
type tokenParser struct {
	secret []byte
	parser *jwt.Parser
}

func newTokenParser(secret string) *tokenParser {
	return &tokenParser{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func (p *tokenParser) parse(raw string) (accessClaims, error) {
	var claims accessClaims
	if len(p.secret) == 0 {
		if _, _, err := p.parser.ParseUnverified(raw, &claims); err != nil {
			return accessClaims{}, fmt.Errorf("parse access token: %w", err)
		}
		return claims, nil
	}
	_, err := p.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return accessClaims{}, fmt.Errorf("verify access token: %w", err)
	}
	return claims, nil
}

// expiry returns the token's exp claim.
func (p *tokenParser) expiry(raw string) (time.Time, error) {
	claims, err := p.parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
