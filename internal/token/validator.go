// Package token validates opaque bearer tokens during session
// admission. The gateway treats tokens as opaque strings (spec.md §1)
// validated through an injected Validator — no token parsing logic
// leaks into the signalling service itself.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
)

// Claims is what a validated token yields back to the caller.
type Claims struct {
	Subject  string
	Audience string
}

// Validator is the injected capability the signalling service depends
// on. Concrete realisations: JWTValidator (production) and
// NoopValidator (tests, mirrors the original source's
// `audience:subject` placeholder format).
type Validator interface {
	Validate(token string, audience string) (Claims, error)
}

// JWTValidator validates bearer tokens as signed JWTs against a
// configured issuer/audience using a fixed HMAC or RSA key resolved
// by KeyFunc. Empty tokens, malformed tokens, expired tokens, and
// audience mismatches all fail with Authentication.
type JWTValidator struct {
	Issuer  string
	KeyFunc jwt.Keyfunc
}

// NewJWTValidator builds a validator pinned to issuer, using keyFunc
// to resolve the signing key (e.g. from a JWKS cache).
func NewJWTValidator(issuer string, keyFunc jwt.Keyfunc) *JWTValidator {
	return &JWTValidator{Issuer: issuer, KeyFunc: keyFunc}
}

func (v *JWTValidator) Validate(token string, audience string) (Claims, error) {
	if token == "" {
		return Claims{}, gatewayerr.New(gatewayerr.Authentication, "empty token")
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, v.KeyFunc,
		jwt.WithIssuer(v.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkewLeeway),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, gatewayerr.Wrap(gatewayerr.Authentication, "token validation failed", err)
	}
	return Claims{Subject: claims.Subject, Audience: audience}, nil
}

// NoopValidator accepts tokens of the form "audience:subject",
// failing on mismatch or malformed input. Grounded on
// original_source/signaling/token.rs's NoopTokenValidator; used in
// tests and local development in place of a real issuer.
type NoopValidator struct{}

func (NoopValidator) Validate(token string, audience string) (Claims, error) {
	if token == "" {
		return Claims{}, gatewayerr.New(gatewayerr.Authentication, "empty token")
	}
	idx := strings.IndexByte(token, ':')
	if idx < 0 {
		return Claims{}, gatewayerr.New(gatewayerr.Authentication, "malformed token")
	}
	tokAud, subject := token[:idx], token[idx+1:]
	if tokAud != audience {
		return Claims{}, gatewayerr.New(gatewayerr.Authentication, "audience mismatch")
	}
	return Claims{Subject: subject, Audience: audience}, nil
}

// clockSkewLeeway is the tolerance JWTValidator passes to jwt/v5
// (jwt.WithLeeway) when validating exp/nbf.
const clockSkewLeeway = 30 * time.Second
