package utils

import "testing"

func TestSanitizeInput(t *testing.T) {
	got := SanitizeInput("  Ravi<script>alert(1)</script> & Co\x07 ")
	if got != "Ravi &amp; Co" {
		t.Errorf("SanitizeInput = %q", got)
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got, err := SanitizeEmail(" Ravi@Example.COM "); err != nil || got != "ravi@example.com" {
		t.Errorf("SanitizeEmail = %q, %v", got, err)
	}
	if _, err := SanitizeEmail("not-an-email"); err == nil {
		t.Error("accepted an invalid email")
	}
}

func TestSanitizePhone(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"", "", true},
		{"+91 98765-43210", "+919876543210", true},
		{"98765 43210", "9876543210", true},
		{"12", "", false},
		{"+91+98765", "", false},
	}
	for _, tc := range cases {
		got, err := SanitizePhone(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("SanitizePhone(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	type body struct {
		Email string `validate:"required,email"`
	}
	if err := v.Validate(&body{Email: "x@example.com"}); err != nil {
		t.Errorf("valid body rejected: %v", err)
	}
	if err := v.Validate(&body{}); err == nil {
		t.Error("empty body accepted")
	}
}
