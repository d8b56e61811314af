package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iurnickita/posmart/internal/logger/config"
)

func NewZapLog(cfg config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

// Bodies of these routes carry customer contact data and are never logged.
var privateRoutes = []string{"/cart/customer"}

// Fields masked wherever they appear in a logged JSON body.
var redactedFields = map[string]bool{
	"cardNumber": true,
	"email":      true,
	"phone":      true,
	"address":    true,
}

// RequestLogMdlw writes one entry per request. 5xx answers are logged as
// errors and 4xx as warnings. The request body is attached at debug level
// with card numbers and contact fields masked.
func RequestLogMdlw(zaplog *zap.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			withBody := zaplog.Core().Enabled(zap.DebugLevel) && r.Body != nil
			if withBody {
				body, _ = io.ReadAll(r.Body)
				r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			h.ServeHTTP(sw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.written),
				zap.Duration("duration", time.Since(start)),
			}

			level := zapcore.InfoLevel
			switch {
			case sw.status >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case sw.status >= http.StatusBadRequest:
				level = zapcore.WarnLevel
			}
			if withBody && len(body) > 0 {
				fields = append(fields, zap.String("body", loggableBody(r.URL.Path, body)))
			}

			zaplog.Log(level, "request served", fields...)
		})
	}
}

func loggableBody(path string, body []byte) string {
	for _, route := range privateRoutes {
		if strings.HasSuffix(path, route) {
			return "[omitted]"
		}
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "[not json]"
	}
	out, err := json.Marshal(redact(doc))
	if err != nil {
		return "[not json]"
	}
	return string(out)
}

func redact(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		for key, value := range v {
			if redactedFields[key] {
				v[key] = mask(value)
				continue
			}
			v[key] = redact(value)
		}
	case []interface{}:
		for i := range v {
			v[i] = redact(v[i])
		}
	}
	return v
}

// mask keeps the last four characters of long strings, enough to tell
// cards apart.
func mask(v interface{}) string {
	s, ok := v.(string)
	if !ok || len(s) < 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.written += n
	return n, err
}
