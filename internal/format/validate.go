package format

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// IsValidPhoneNumber accepts 10 to 14 digits with an optional leading 1
// once every non-digit has been stripped.
func IsValidPhoneNumber(phone string) bool {
	d := digits(phone)
	if len(d) == 15 && d[0] == '1' {
		d = d[1:]
	}
	return validate.Var(d, "numeric,min=10,max=14") == nil
}

func IsNonEmpty(value string) bool {
	return strings.TrimSpace(value) != ""
}

func HasMinLength(value string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(value)) >= n
}

func HasMaxLength(value string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(value)) <= n
}
