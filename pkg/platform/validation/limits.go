package validation

import (
	"fmt"

	dErrors "optin/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed form body size (8 KB). A consent
	// form carries a handful of checkboxes and a return path.
	MaxBodySize = 8 * 1024

	// MaxPageSize is the largest page body the content gate buffers (4 MB).
	// Larger pages are served unchanged: staged embeds keep no src.
	MaxPageSize = 4 << 20
)

// String element length limits
const (
	// MaxReturnToLength is the maximum length of the return_to path.
	MaxReturnToLength = 2048

	// MaxCategoryLength is the maximum length of a posted category name.
	MaxCategoryLength = 32
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
