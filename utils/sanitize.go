// utils/sanitize.go
package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneStrip    = regexp.MustCompile(`[^\d+]`)
	scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
)

// SanitizeInput trims free text, drops control characters and escapes HTML
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return html.EscapeString(input)
}

// SanitizeEmail lowercases and checks an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

// SanitizePhone keeps digits and a leading +. Empty input stays empty.
func SanitizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", nil
	}
	phone = phoneStrip.ReplaceAllString(phone, "")
	digits := strings.TrimPrefix(phone, "+")
	if strings.Contains(digits, "+") {
		return "", errors.New("invalid phone number")
	}
	if len(digits) < 7 || len(digits) > 15 {
		return "", errors.New("invalid phone number length")
	}
	return phone, nil
}

// SanitizeSignup normalizes the free-form fields of a signup body in place.
func SanitizeSignup(name, email, phone *string) error {
	*name = SanitizeInput(*name)
	cleanEmail, err := SanitizeEmail(*email)
	if err != nil {
		return err
	}
	*email = cleanEmail
	cleanPhone, err := SanitizePhone(*phone)
	if err != nil {
		return err
	}
	*phone = cleanPhone
	return nil
}
