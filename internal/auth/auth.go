package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iurnickita/posmart/internal/token"
)

type Auth interface {
	Middleware(h http.Handler) http.Handler
}

const cookieOperatorToken = "posmartToken"

var ErrNoToken = errors.New("missing operator token")

type auth struct {
	issuer *token.Issuer
}

func NewAuth(issuer *token.Issuer) Auth {
	return &auth{issuer: issuer}
}

func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// resolve the operator
		operator, err := a.getOperator(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// hand over to the handler
		h.ServeHTTP(w, r.WithContext(token.NewContext(r.Context(), operator)))
	})
}

func (a *auth) getOperator(r *http.Request) (token.Operator, error) {
	raw := bearer(r.Header.Get("Authorization"))
	if raw == "" {
		tokenCookie, err := r.Cookie(cookieOperatorToken)
		if err != nil {
			return token.Operator{}, ErrNoToken
		}
		raw = tokenCookie.Value
	}

	code, err := a.issuer.GetOperator(raw)
	if err != nil {
		return token.Operator{}, err
	}
	return token.Operator{Code: code, Raw: raw}, nil
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
