package policy

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultSpecialCharacters is the special-character set used when none is
// configured.
const DefaultSpecialCharacters = "[~!@#$%^&*()_+{}\":;'[]"

// CharacterRequirementsValidator enforces minimum character-class counts
// on a proposed password. It is stateless; all violations found in one
// pass are aggregated into a single compound error.
type CharacterRequirementsValidator struct {
	MinDigits         int    // Minimum digit count.
	MinLetters        int    // Minimum letter count.
	MinUppercase      int    // Minimum uppercase letter count.
	MinLowercase      int    // Minimum lowercase letter count.
	MinSpecial        int    // Minimum special character count.
	SpecialCharacters string // Characters counted as special.
}

// NewCharacterRequirementsValidator returns a validator requiring one of
// each character class.
func NewCharacterRequirementsValidator() *CharacterRequirementsValidator {
	return &CharacterRequirementsValidator{
		MinDigits:         1,
		MinLetters:        1,
		MinUppercase:      1,
		MinLowercase:      1,
		MinSpecial:        1,
		SpecialCharacters: DefaultSpecialCharacters,
	}
}

// Validate counts character classes in the password and returns a
// ValidationErrors compound when any minimum is not met.
func (v *CharacterRequirementsValidator) Validate(password string) error {
	var digits, letters, upper, lower, special int
	for _, r := range password {
		if unicode.IsDigit(r) {
			digits++
		}
		if unicode.IsLetter(r) {
			letters++
		}
		if unicode.IsUpper(r) {
			upper++
		}
		if unicode.IsLower(r) {
			lower++
		}
		if strings.ContainsRune(v.SpecialCharacters, r) {
			special++
		}
	}

	var violations ValidationErrors
	if digits < v.MinDigits {
		violations = append(violations, &ValidationError{
			Code:    CodeMinLengthDigit,
			Message: fmt.Sprintf("Password must contain at least %d digit(s).", v.MinDigits),
		})
	}
	if letters < v.MinLetters {
		violations = append(violations, &ValidationError{
			Code:    CodeMinLengthAlpha,
			Message: fmt.Sprintf("Password must contain at least %d letter(s).", v.MinLetters),
		})
	}
	if upper < v.MinUppercase {
		violations = append(violations, &ValidationError{
			Code:    CodeMinLengthUpper,
			Message: fmt.Sprintf("Password must contain at least %d capital letter(s).", v.MinUppercase),
		})
	}
	if lower < v.MinLowercase {
		violations = append(violations, &ValidationError{
			Code:    CodeMinLengthLower,
			Message: fmt.Sprintf("Password must contain at least %d small letter(s).", v.MinLowercase),
		})
	}
	if special < v.MinSpecial {
		violations = append(violations, &ValidationError{
			Code:    CodeMinLengthSpecial,
			Message: fmt.Sprintf("Password must contain at least %d special character(s).", v.MinSpecial),
		})
	}

	if len(violations) > 0 {
		return violations
	}
	return nil
}

// HelpText enumerates the configured requirements.
func (v *CharacterRequirementsValidator) HelpText() string {
	var requirements []string
	if v.MinLetters > 0 {
		requirements = append(requirements, fmt.Sprintf("%d letters", v.MinLetters))
	}
	if v.MinDigits > 0 {
		requirements = append(requirements, fmt.Sprintf("%d digits", v.MinDigits))
	}
	if v.MinLowercase > 0 {
		requirements = append(requirements, fmt.Sprintf("%d lower case letters", v.MinLowercase))
	}
	if v.MinUppercase > 0 {
		requirements = append(requirements, fmt.Sprintf("%d upper case letters", v.MinUppercase))
	}
	if v.MinSpecial > 0 {
		requirements = append(requirements, fmt.Sprintf("%d special characters such as %s", v.MinSpecial, v.SpecialCharacters))
	}
	if len(requirements) == 0 {
		return "No character requirements are configured."
	}
	return "Password must contain at least " + strings.Join(requirements, ", ") + "."
}
