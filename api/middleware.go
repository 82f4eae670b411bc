package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/vocdoni/starkvote/log"
)

// DisabledLogging turns the request logger off.
var DisabledLogging = false

var (
	// jsonRegex matches bodies that look like JSON.
	jsonRegex = regexp.MustCompile(`^\s*[\[{]`)
	// voterIDRegex matches the voter identifier field, which never reaches
	// the logs.
	voterIDRegex = regexp.MustCompile(`"voterId"\s*:\s*("[^"]*"|[0-9]+)`)
)

// LoggingConfig configures the request logger.
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string
}

// DefaultLoggingConfig returns the request logger defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       512,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

func (lc LoggingConfig) skip(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// redactBody prepares a JSON request body for the logs.
func (lc LoggingConfig) redactBody(body []byte) string {
	if !jsonRegex.Match(body) {
		return ""
	}
	s := voterIDRegex.ReplaceAllString(string(body), `"voterId":"<redacted>"`)
	if len(s) > lc.MaxBodyLog {
		s = s[:lc.MaxBodyLog] + "..."
	}
	return strings.ReplaceAll(s, "\"", "")
}

// responseWriter captures the status code of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// loggingMiddleware logs requests and responses at debug level.
func loggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
				if err != nil {
					ErrMalformedBody.WithErr(err).Write(w)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body = config.redactBody(raw)
			}

			wrapped := &responseWriter{ResponseWriter: w}
			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", body)
			next.ServeHTTP(wrapped, r)
			log.Debugw("api response",
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"took", time.Since(start).String())
		})
	}
}
