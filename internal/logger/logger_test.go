package logger

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/posmart/internal/logger/config"
)

func TestNewZapLog(t *testing.T) {
	zl, err := NewZapLog(config.Config{LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, zl.Core().Enabled(zap.DebugLevel))

	zl, err = NewZapLog(config.Config{})
	require.NoError(t, err)
	assert.False(t, zl.Core().Enabled(zap.DebugLevel))

	_, err = NewZapLog(config.Config{LogLevel: "loud"})
	require.Error(t, err)
}

func serve(t *testing.T, level zapcore.Level, status int, method, path, body string) (*observer.ObservedLogs, string) {
	t.Helper()
	core, logs := observer.New(level)
	var seen string
	h := RequestLogMdlw(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen = string(data)
		w.WriteHeader(status)
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	require.Equal(t, status, w.Code)
	return logs, seen
}

func TestRequestLogMdlw(t *testing.T) {
	logs, seen := serve(t, zap.DebugLevel, http.StatusCreated, http.MethodPost, "/api/pos/cart/lines", `{"productId":"A"}`)
	assert.Equal(t, `{"productId":"A"}`, seen)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/pos/cart/lines", fields["path"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(2), fields["bytes"])
	assert.Equal(t, `{"productId":"A"}`, fields["body"])
}

func TestRequestLogMdlwMasksCardNumber(t *testing.T) {
	body := `{"method":"card","cardNumber":"4111111111111111"}`
	logs, seen := serve(t, zap.DebugLevel, http.StatusOK, http.MethodPut, "/api/pos/cart/payment", body)
	assert.Equal(t, body, seen)

	entries := logs.All()
	require.Len(t, entries, 1)
	logged := entries[0].ContextMap()["body"].(string)
	assert.NotContains(t, logged, "4111111111111111")
	assert.JSONEq(t, `{"method":"card","cardNumber":"***1111"}`, logged)
}

func TestRequestLogMdlwOmitsCustomer(t *testing.T) {
	logs, _ := serve(t, zap.DebugLevel, http.StatusOK, http.MethodPut, "/api/pos/cart/customer",
		`{"name":"Ann Buyer","email":"ann@example.com","phone":"555-0100"}`)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[omitted]", entries[0].ContextMap()["body"])
}

func TestRequestLogMdlwNoBodyAboveDebug(t *testing.T) {
	logs, _ := serve(t, zap.InfoLevel, http.StatusOK, http.MethodPut, "/api/pos/cart/payment",
		`{"method":"card","cardNumber":"4111111111111111"}`)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "body")
}

func TestRequestLogMdlwLevelFollowsStatus(t *testing.T) {
	logs, _ := serve(t, zap.InfoLevel, http.StatusUnprocessableEntity, http.MethodPost, "/api/pos/checkout", "")
	require.Len(t, logs.All(), 1)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)

	logs, _ = serve(t, zap.InfoLevel, http.StatusBadGateway, http.MethodPost, "/api/pos/checkout", "")
	require.Len(t, logs.All(), 1)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestLoggableBodyNested(t *testing.T) {
	got := loggableBody("/api/pos/saved-carts", []byte(`{"state":{"customer":{"email":"ann@example.com"}},"items":[{"phone":"555-0100-22"}]}`))
	assert.NotContains(t, got, "ann@example.com")
	assert.NotContains(t, got, "555-0100-22")
	assert.Equal(t, "[not json]", loggableBody("/api/pos/cart/notes", []byte("plain")))
}
