// Package validation provides validation for fleet API inputs. Resource
// identifiers follow the control-plane's format: ws-<identifier>, where the
// identifier is lowercase alphanumeric.
package validation

import (
	"fmt"
	"strings"
)

// MaxBatchSize caps how many resources one bulk submission may target.
// The control-plane rejects larger batches; checking here fails fast.
const MaxBatchSize = 500

// isLowerAlphaNum returns true if the byte is a lowercase letter or digit.
func isLowerAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// ValidateResourceID validates a virtual desktop identifier.
func ValidateResourceID(id string) error {
	identifier, ok := strings.CutPrefix(id, "ws-")
	if !ok {
		return fmt.Errorf("resource id must start with 'ws-'")
	}
	if identifier == "" {
		return fmt.Errorf("resource id must not be empty after 'ws-'")
	}
	for _, b := range []byte(identifier) {
		if !isLowerAlphaNum(b) {
			return fmt.Errorf("resource ids can only contain lowercase letters and digits after 'ws-'")
		}
	}
	return nil
}

// ValidateResourceIDs validates a bulk target list: non-empty, within the
// batch cap, and every identifier well-formed. Duplicates are allowed; the
// control-plane is the source of truth for dedup.
func ValidateResourceIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one resource id is required")
	}
	if len(ids) > MaxBatchSize {
		return fmt.Errorf("batch exceeds maximum size of %d resources", MaxBatchSize)
	}
	for _, id := range ids {
		if err := ValidateResourceID(id); err != nil {
			return fmt.Errorf("%q: %w", id, err)
		}
	}
	return nil
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
