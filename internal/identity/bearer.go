package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"monthbook/internal/core"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// ErrInvalidToken is returned for a bearer token that fails verification.
var ErrInvalidToken = fmt.Errorf("invalid bearer token: %w", core.ErrUnauthenticated)

// Bearer resolves the user id from the sub claim of an HS256 token.
type Bearer struct {
	secret []byte
	now    func() time.Time
}

func NewBearer(secret []byte) *Bearer {
	return &Bearer{secret: secret, now: time.Now}
}

func (b *Bearer) Resolve(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", nil
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID valid for ttl.
func (b *Bearer) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("issue token: empty user id")
	}
	now := b.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}
