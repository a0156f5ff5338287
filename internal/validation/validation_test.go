package validation

import (
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"john@example.com", true},
		{"first.last+tag@sub.example.co.uk", true},
		{"UPPER@EXAMPLE.COM", true},

		// Invalid cases
		{"", false},
		{"john", false},
		{"john@", false},
		{"@example.com", false},
		{"john@example", false}, // no dotted domain
		{"john doe@example.com", false},
		{"john@@example.com", false},
	}

	for _, tc := range tests {
		result := IsValidEmail(tc.email)
		if result != tc.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tc.email, result, tc.valid)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"rankmath", true},
		{"content-ai", true},
		{"product-2", true},
		{"a", true},

		// Invalid
		{"", false},
		{"-leading", false},
		{"Has-Caps", false},
		{"with space", false},
		{"under_score", false},
	}

	for _, tc := range tests {
		result := IsValidSlug(tc.slug)
		if result != tc.valid {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tc.slug, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"John@Example.COM", "john@example.com"},
		{"  user@example.com  ", "user@example.com"},
	}

	for _, tc := range tests {
		if got := NormalizeEmail(tc.input); got != tc.expected {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
