// Package envelope implements the signed request/response wrapper (C3):
// asymmetric JWT signing and verification with a strict lifetime ceiling,
// or a configurable pass-through when signing is disabled.
package envelope

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/refillerr"
)

var logger = log.NewModuleLogger(log.Envelope)

// Envelope verifies incoming signed tokens and signs outgoing responses.
// With Enabled=false it is a pass-through (§4.3): "the envelope is a
// pass-through that copies the parsed request body into the verified-data
// slot."
type Envelope struct {
	Enabled     bool
	PublicKey   *rsa.PublicKey
	PrivateKey  *rsa.PrivateKey
	MaxLifetime time.Duration
	now         func() time.Time
}

// New builds an Envelope. publicKey/privateKey may be nil when enabled is
// false.
func New(enabled bool, publicKey *rsa.PublicKey, privateKey *rsa.PrivateKey, maxLifetime time.Duration) *Envelope {
	return &Envelope{
		Enabled:     enabled,
		PublicKey:   publicKey,
		PrivateKey:  privateKey,
		MaxLifetime: maxLifetime,
		now:         time.Now,
	}
}

type claims struct {
	Payload json.RawMessage `json:"payload"`
	jwt.RegisteredClaims
}

// VerifyBody verifies a write request whose entire raw body IS the signed
// token (§4.3: "For write operations, the entire raw request body IS the
// signed token"). With Enabled=false, body is parsed directly as JSON.
func (e *Envelope) VerifyBody(body []byte) (json.RawMessage, *refillerr.Error) {
	if !e.Enabled {
		var raw json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, refillerr.New(refillerr.CodeInvalidToken, "request body is not valid JSON")
		}
		return raw, nil
	}
	return e.verify(strings.TrimSpace(string(body)))
}

// VerifyBearer verifies a read request whose token is carried in an
// Authorization: Bearer header (§4.3: "For read operations, the token is
// passed in a bearer-style header slot").
func (e *Envelope) VerifyBearer(authorizationHeader string) (json.RawMessage, *refillerr.Error) {
	if !e.Enabled {
		return json.RawMessage(authorizationHeader), nil
	}
	if authorizationHeader == "" {
		return nil, refillerr.New(refillerr.CodeMissingAuthorizationHeader, "missing Authorization header")
	}
	parts := strings.SplitN(authorizationHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, refillerr.New(refillerr.CodeInvalidAuthorizationFormat, "Authorization header must be 'Bearer <token>'")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return nil, refillerr.New(refillerr.CodeMissingBearerToken, "bearer token is empty")
	}
	return e.verify(token)
}

func (e *Envelope) verify(tokenString string) (json.RawMessage, *refillerr.Error) {
	if e.PublicKey == nil {
		return nil, refillerr.New(refillerr.CodeAuthConfigError, "auth is enabled but no public key is configured")
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return e.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, refillerr.New(refillerr.CodeTokenExpired, "token has expired")
		}
		return nil, refillerr.New(refillerr.CodeInvalidToken, "token verification failed: "+err.Error())
	}
	if !parsed.Valid {
		return nil, refillerr.New(refillerr.CodeInvalidToken, "token is not valid")
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return nil, refillerr.New(refillerr.CodeInvalidToken, "token is missing iat/exp claims")
	}

	lifetime := c.ExpiresAt.Time.Sub(c.IssuedAt.Time)
	if lifetime > e.MaxLifetime {
		return nil, refillerr.New(refillerr.CodeJWTLifetimeExceeded, "token lifetime exceeds the configured maximum")
	}

	return c.Payload, nil
}

// Sign wraps payload (any JSON-serializable response body) in a signed
// token with iat=now, exp=now+MaxLifetime (§4.3). With Enabled=false, the
// raw JSON-encoded payload is returned unsigned.
func (e *Envelope) Sign(payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if !e.Enabled {
		return raw, nil
	}
	if e.PrivateKey == nil {
		return nil, errors.New("envelope: auth is enabled but no private key is configured")
	}

	now := e.now()
	c := claims{
		Payload: raw,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.MaxLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	signed, err := token.SignedString(e.PrivateKey)
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}
