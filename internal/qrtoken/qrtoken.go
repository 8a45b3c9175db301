package qrtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrMalformedToken covers unparseable tokens and bad signatures.
	ErrMalformedToken = errors.New("malformed pickup token")
	// ErrExpiredToken means the signature checked out but the token is past
	// its expiry.
	ErrExpiredToken = errors.New("pickup token expired")
)

// Payload is the decoded content of a pickup token.
type Payload struct {
	RequestID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	RequestID string `json:"rid"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies signed pickup tokens. The signing key comes from
// configuration at construction; there is no package-level key state.
type Issuer struct {
	key    []byte
	issuer string
}

// NewIssuer creates an issuer bound to a signing key.
func NewIssuer(key, issuer string) *Issuer {
	return &Issuer{key: []byte(key), issuer: issuer}
}

// Issue produces a signed token bound to a pickup request, valid until
// expiresAt.
func (i *Issuer) Issue(requestID string, expiresAt time.Time) (string, error) {
	now := time.Now()
	c := claims{
		RequestID: requestID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.key)
}

// Verify checks signature and expiry and returns the decoded payload.
// Expired-but-authentic tokens return ErrExpiredToken so the gate UI can tell
// the guard why the scan failed; everything else is ErrMalformedToken.
func (i *Issuer) Verify(tokenStr string) (Payload, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformedToken
		}
		return i.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// The claims are still recoverable on expiry; surface them so
			// callers can log which request the stale token belonged to.
			if parsed != nil {
				if c, ok := parsed.Claims.(*claims); ok {
					return payloadOf(c), ErrExpiredToken
				}
			}
			return Payload{}, ErrExpiredToken
		}
		return Payload{}, ErrMalformedToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.RequestID == "" {
		return Payload{}, ErrMalformedToken
	}
	if i.issuer != "" && c.Issuer != i.issuer {
		return Payload{}, ErrMalformedToken
	}
	return payloadOf(c), nil
}

func payloadOf(c *claims) Payload {
	p := Payload{RequestID: c.RequestID}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

// RenderPNG encodes the token as a QR code image for the parent app to show
// at the gate.
func RenderPNG(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}
