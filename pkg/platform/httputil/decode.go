package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	dErrors "optin/pkg/domain-errors"
	"optin/pkg/platform/validation"
)

// FormBinder is implemented by request types populated from form values.
type FormBinder interface {
	Bind(values url.Values)
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes and validates a request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeForm parses the urlencoded body, capped at validation.MaxBodySize,
// into a new T, then normalizes and
// validates it. On failure it writes the error response and returns false.
//
// Usage:
//
//	req, ok := httputil.DecodeForm[SaveRequest](ctx, w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeForm[T any, PT interface {
	*T
	FormBinder
}](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodySize)
	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "failed to parse form body", "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return nil, false
	}

	req := PT(new(T))
	req.Bind(r.PostForm)

	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request", "error", err)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}
	return (*T)(req), true
}
