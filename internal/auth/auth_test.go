package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/posmart/internal/token"
	"github.com/iurnickita/posmart/internal/token/config"
)

func TestMiddleware(t *testing.T) {
	issuer, err := token.NewIssuer(config.Config{Secret: "s3cret"})
	require.NoError(t, err)
	raw, err := issuer.Issue("cashier-1")
	require.NoError(t, err)

	var got token.Operator
	h := NewAuth(issuer).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = token.FromContext(r.Context())
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		code    int
	}{
		{
			name:    "bearer header",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+raw) },
			code:    http.StatusOK,
		},
		{
			name:    "cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieOperatorToken, Value: raw}) },
			code:    http.StatusOK,
		},
		{
			name:    "missing",
			prepare: func(r *http.Request) {},
			code:    http.StatusUnauthorized,
		},
		{
			name:    "bad token",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			code:    http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = token.Operator{}
			r := httptest.NewRequest(http.MethodGet, "/api/pos/cart", nil)
			tt.prepare(r)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "cashier-1", got.Code)
				assert.Equal(t, raw, got.Raw)
			}
		})
	}
}
