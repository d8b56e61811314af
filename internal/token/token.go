package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/posmart/internal/token/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("token secret is not configured")
)

type Claims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// Operator is the authenticated caller. Raw is forwarded to the backend.
type Operator struct {
	Code string
	Raw  string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(cfg config.Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: ttl}, nil
}

func (issuer *Issuer) Issue(operator string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(issuer.ttl)),
		},
		Operator: operator,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secret)
}

// GetOperator validates raw and returns the operator code it carries.
func (issuer *Issuer) GetOperator(raw string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return issuer.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Operator == "" {
		return "", ErrInvalidToken
	}
	return claims.Operator, nil
}

type operatorKey struct{}

func NewContext(ctx context.Context, operator Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

func FromContext(ctx context.Context) (Operator, bool) {
	operator, ok := ctx.Value(operatorKey{}).(Operator)
	return operator, ok
}
