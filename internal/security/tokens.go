package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a session cookie token is malformed, expired, or badly signed.
	ErrInvalidToken = errors.New("invalid token")
)

const sessionIssuer = "itoi-workspaces"

// SessionClaims holds JWT claims for the session cookie. The subject is the server-side session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionTokens issues and validates HS256-signed session cookie values.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	nowF   func() time.Time
}

// NewSessionTokens returns SessionTokens signing with secret; issued tokens expire after ttl.
func NewSessionTokens(secret []byte, ttl time.Duration) *SessionTokens {
	return &SessionTokens{secret: secret, ttl: ttl, nowF: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (p *SessionTokens) TTL() time.Duration { return p.ttl }

// Issue returns a signed cookie value for sessionID and its expiry.
func (p *SessionTokens) Issue(sessionID string) (token string, expiresAt time.Time, err error) {
	if sessionID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	now := p.nowF().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// Validate parses and validates a cookie value (signature, exp, iss) and returns the session id.
func (p *SessionTokens) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			return p.secret, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(p.nowF),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
