package policy

import "strings"

// Violation codes surfaced to callers.
const (
	// CodePasswordUsed marks a reuse of an in-scope historical password.
	CodePasswordUsed = "password_used"
	// CodeMinLengthDigit marks too few digits.
	CodeMinLengthDigit = "min_length_digit"
	// CodeMinLengthAlpha marks too few letters.
	CodeMinLengthAlpha = "min_length_alpha"
	// CodeMinLengthUpper marks too few uppercase letters.
	CodeMinLengthUpper = "min_length_upper_characters"
	// CodeMinLengthLower marks too few lowercase letters.
	CodeMinLengthLower = "min_length_lower_characters"
	// CodeMinLengthSpecial marks too few special characters.
	CodeMinLengthSpecial = "min_length_special_characters"
)

// ValidationError is a single policy violation with a machine-readable
// code and a human-readable message. It rejects the proposed password;
// the caller prompts for a different one.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Message }

// ValidationErrors aggregates multiple violations from one validation
// pass. Only the character-requirements validator produces compounds;
// the reuse validator raises at most one violation per call.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, violation := range e {
		parts = append(parts, violation.Message)
	}
	return strings.Join(parts, " ")
}

// HasCode reports whether the compound contains a violation with the code.
func (e ValidationErrors) HasCode(code string) bool {
	for _, violation := range e {
		if violation.Code == code {
			return true
		}
	}
	return false
}
