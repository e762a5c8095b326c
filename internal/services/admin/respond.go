package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	errori18n "github.com/louisbranch/storefront/internal/platform/errors/i18n"
	"github.com/louisbranch/storefront/internal/platform/i18n"
)

// maxBodyBytes caps request payloads before JSON decoding.
const maxBodyBytes = 1 << 20

// errorEnvelope is the JSON error body returned by every admin route.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeJSON writes payload as an application/json response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("admin: encode response: %v", err)
	}
}

// writeError renders err as an error envelope with a message localized
// against the request's Accept-Language header.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	var metadata map[string]string
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		metadata = appErr.Metadata
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("admin: %s %s: %v", r.Method, r.URL.Path, err)
	}
	locale := i18n.Match(r.Header.Get("Accept-Language")).String()
	message := errori18n.GetCatalog(locale).Format(string(code), metadata)
	writeJSON(w, status, errorEnvelope{Error: errorDetail{
		Code:     string(code),
		Message:  message,
		Metadata: metadata,
	}})
}

// decodeJSON reads the request body into target, rejecting unknown fields
// and oversized payloads.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "request body is not valid JSON", err)
	}
	return nil
}

// methodNotAllowed writes a 405 envelope advertising the allowed methods.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed"))
}

// notFound writes a 404 envelope for unknown admin routes.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperrors.New(apperrors.CodeNotFound, "route not found"))
}

// splitPathParts normalizes a slash-delimited route suffix into non-empty
// path segments.
func splitPathParts(path string) []string {
	rawParts := strings.Split(path, "/")
	parts := make([]string, 0, len(rawParts))
	for _, part := range rawParts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}
