package handler

import (
	"net/url"
	"strings"

	"optin/internal/consent/models"
	dErrors "optin/pkg/domain-errors"
	"optin/pkg/platform/validation"
)

// ActionRequest carries the page a consent action returns to.
type ActionRequest struct {
	ReturnTo string
}

func (r *ActionRequest) Bind(v url.Values) {
	r.ReturnTo = v.Get("return_to")
}

func (r *ActionRequest) Normalize() {
	r.ReturnTo = strings.TrimSpace(r.ReturnTo)
}

func (r *ActionRequest) Validate() error {
	return validation.CheckStringLength("return_to", r.ReturnTo, validation.MaxReturnToLength)
}

// SaveRequest is the custom choice posted from the options view. Strict is
// not a field: it is always granted.
type SaveRequest struct {
	ActionRequest
	Functional  bool
	Performance bool
	Targeting   bool
}

func (r *SaveRequest) Bind(v url.Values) {
	r.ActionRequest.Bind(v)
	r.Functional = checked(v, models.CategoryFunctional)
	r.Performance = checked(v, models.CategoryPerformance)
	r.Targeting = checked(v, models.CategoryTargeting)
}

// Flags converts the checkbox states into mask flags.
func (r *SaveRequest) Flags() models.Flags {
	return models.Flags{
		Strict:      true,
		Functional:  r.Functional,
		Performance: r.Performance,
		Targeting:   r.Targeting,
	}
}

// RevokeRequest narrows consent to a level of the nesting chain.
type RevokeRequest struct {
	ActionRequest
	Level string

	level models.Category
}

func (r *RevokeRequest) Bind(v url.Values) {
	r.ActionRequest.Bind(v)
	r.Level = v.Get("level")
}

func (r *RevokeRequest) Normalize() {
	r.ActionRequest.Normalize()
	r.Level = strings.ToLower(strings.TrimSpace(r.Level))
}

func (r *RevokeRequest) Validate() error {
	if err := r.ActionRequest.Validate(); err != nil {
		return err
	}
	if r.Level == "" {
		return dErrors.New(dErrors.CodeValidation, "level is required")
	}
	if err := validation.CheckStringLength("level", r.Level, validation.MaxCategoryLength); err != nil {
		return err
	}
	c, err := models.ParseCategory(r.Level)
	if err != nil {
		return err
	}
	if c == models.CategoryPerformance {
		return dErrors.New(dErrors.CodeValidation, "performance is not a consent level")
	}
	r.level = c
	return nil
}

// checked accepts what browsers and scripts send for a ticked box.
func checked(v url.Values, c models.Category) bool {
	switch strings.ToLower(v.Get(c.String())) {
	case "1", "on", "true", "yes":
		return true
	default:
		return false
	}
}
