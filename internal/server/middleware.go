package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader carries the request id on responses, and on requests
// from clients that already assigned one.
const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

type logBagKey struct{}

// logBag holds the fields handlers attach to the request's completion
// log line.
type logBag struct {
	mu     sync.Mutex
	fields map[string]string
}

func (b *logBag) set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fields[key] = value
}

// attrs returns the collected fields as slog attributes in key order,
// so repeated runs of the same request log identically.
func (b *logBag) attrs() []slog.Attr {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.String(k, b.fields[k]))
	}
	return out
}

// RequestIDMiddleware stamps each request with a req_-prefixed id,
// keeping an id the caller already set. The id rides the context and
// the X-Request-ID response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = "req_" + uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stamped by RequestIDMiddleware, or ""
// outside the middleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware logs one line when a request arrives and one when
// it completes: status, duration, response size, and whatever fields
// the handler attached via AddLogField.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			bag := &logBag{fields: make(map[string]string)}
			ctx := context.WithValue(r.Context(), logBagKey{}, bag)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			requestID := GetRequestID(ctx)

			logger.Info("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := append([]slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.written),
				slog.Duration("duration", time.Since(start)),
			}, bag.attrs()...)
			logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}

// AddLogField attaches a field to the completion line LoggingMiddleware
// emits for this request. Empty values and contexts outside the
// middleware are dropped.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if bag, ok := ctx.Value(logBagKey{}).(*logBag); ok {
		bag.set(key, value)
	}
}

// AddError records err on the request's completion log line. Nil is
// ignored.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}

// statusRecorder captures the status code and body size the handler
// writes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

// Flush keeps streaming responses working through the recorder.
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// TimeoutMiddleware deadlines the request context. Handlers observe
// the deadline cooperatively; zero or negative disables the cap.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
