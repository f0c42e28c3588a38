package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"visionserver/internal/logger"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// LoggingMiddleware logs method, path, status and duration of every request.
// Server errors go to the error log, client errors to the warning log.
func LoggingMiddleware(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start).Round(time.Millisecond)
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("%s %s -> %d (%d bytes, %s)", r.Method, r.URL.Path, status, rec.bytes, elapsed)
			case status >= http.StatusBadRequest:
				logger.Warning("%s %s -> %d (%d bytes, %s)", r.Method, r.URL.Path, status, rec.bytes, elapsed)
			default:
				logger.Info("%s %s -> %d (%d bytes, %s)", r.Method, r.URL.Path, status, rec.bytes, elapsed)
			}
		})
	}
}
