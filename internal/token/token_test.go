package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/posmart/internal/token/config"
)

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewIssuer(config.Config{Secret: "s3cret"})
	require.NoError(t, err)

	raw, err := issuer.Issue("cashier-7")
	require.NoError(t, err)

	operator, err := issuer.GetOperator(raw)
	require.NoError(t, err)
	require.Equal(t, "cashier-7", operator)
}

func TestParseRejects(t *testing.T) {
	issuer, err := NewIssuer(config.Config{Secret: "s3cret"})
	require.NoError(t, err)
	other, err := NewIssuer(config.Config{Secret: "other"})
	require.NoError(t, err)

	raw, err := other.Issue("cashier-7")
	require.NoError(t, err)
	_, err = issuer.GetOperator(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewIssuer(config.Config{Secret: "s3cret", TTL: time.Nanosecond})
	require.NoError(t, err)
	raw, err = expired.Issue("cashier-7")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = issuer.GetOperator(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Operator: "x"})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.GetOperator(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.GetOperator("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(config.Config{})
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	ctx := NewContext(context.Background(), Operator{Code: "op", Raw: "raw"})
	operator, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "raw", operator.Raw)
}
