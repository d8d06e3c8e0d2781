// Package fields contains validators for individual user-supplied values.
package fields

import (
	"github.com/go-playground/validator/v10"
)

const (
	// SkipLabel is the menu label that bypasses tax-id validation.
	SkipLabel = "Пропустить"
	// NotProvided is stored instead of a tax id when the user skips the step,
	// and printed in records for any missing contact value.
	NotProvided = "Не указан"

	// ASCII digits only, exactly 10 (organisation) or 12 (individual) characters.
	taxIDRule = "number,len=10|len=12"
)

var validate = validator.New()

// ValidTaxID reports whether input is a well-formed tax identifier.
func ValidTaxID(input string) bool {
	return validate.Var(input, taxIDRule) == nil
}

// ResolveTaxID maps the raw tax-id step input to the value that should be stored.
// The skip label always succeeds and yields NotProvided. Otherwise the input must
// pass ValidTaxID; ok is false when it does not.
func ResolveTaxID(input string) (value string, ok bool) {
	if input == SkipLabel {
		return NotProvided, true
	}
	if !ValidTaxID(input) {
		return "", false
	}
	return input, true
}
