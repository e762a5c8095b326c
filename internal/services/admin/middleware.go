package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/requestctx"
)

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

var requestIDCounter atomic.Uint64

// Chain applies middleware in declaration order.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		if middleware[idx] == nil {
			continue
		}
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

// RequestID injects and echoes a request id for correlation.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = fmt.Sprintf("admin-%d-%d", time.Now().UnixNano(), requestIDCounter.Add(1))
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLog logs one line per request after it completes.
func RequestLog() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			log.Printf(
				"admin: %s %s status=%d duration=%s request_id=%s",
				r.Method,
				r.URL.Path,
				recorder.status,
				time.Since(start).Round(time.Millisecond),
				r.Header.Get("X-Request-ID"),
			)
		})
	}
}

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RecoverPanic converts handler panics into JSON 500 responses.
func RecoverPanic() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					path := "-"
					method := "-"
					requestID := "-"
					if r != nil {
						path = strings.TrimSpace(r.URL.Path)
						method = strings.TrimSpace(r.Method)
						if rid := strings.TrimSpace(r.Header.Get("X-Request-ID")); rid != "" {
							requestID = rid
						}
					}
					log.Printf(
						"admin: panic recovered method=%s path=%s request_id=%s panic=%v stack=%s",
						method,
						path,
						requestID,
						recovered,
						debug.Stack(),
					)
					writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorDetail{
						Code:    string(apperrors.CodeUnknown),
						Message: "an unexpected error occurred",
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authorizer answers permission checks for an acting customer.
type Authorizer interface {
	Authorize(ctx context.Context, permissionSystemName, customerID string) bool
}

// requirePermission rejects requests whose acting customer lacks the
// named permission. Requests without an acting customer get 401, not 403.
func requirePermission(authz Authorizer, permission string, next http.HandlerFunc) http.HandlerFunc {
	return requireAnyPermission(authz, []string{permission}, next)
}

// requireAnyPermission admits customers holding at least one of the named
// permissions.
func requireAnyPermission(authz Authorizer, permissions []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := requestctx.CustomerIDFromContext(r.Context())
		if customerID == "" {
			writeError(w, r, apperrors.New(apperrors.CodeAuthRequired, "authentication is required"))
			return
		}
		for _, permission := range permissions {
			if authz != nil && authz.Authorize(r.Context(), permission, customerID) {
				next(w, r)
				return
			}
		}
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeAuthForbidden, "permission denied",
			map[string]string{"permission": strings.Join(permissions, ",")}))
	}
}
