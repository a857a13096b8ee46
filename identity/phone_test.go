package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"international with plus", "+7 900 111-22-33", "9001112233"},
		{"eleven digits leading 7", "79001112233", "9001112233"},
		{"eleven digits leading 8", "89001112233", "9001112233"},
		{"ten digits leading 9", "9001112233", "9001112233"},
		{"ten digits leading 8", "8001112233", "9001112233"},
		{"nine digits", "001112233", "9001112233"},
		{"formatted with parens", "8 (900) 111-22-33", "9001112233"},
		{"too short stays as is", "12345", "12345"},
		{"too long stays as is", "790011122334", "790011122334"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"+7 900 111-22-33", "89001112233", "9001112233", "001112233"}
	for _, in := range inputs {
		once := NormalizePhone(in)
		assert.Equal(t, once, NormalizePhone(once), "normalizing %q twice must be stable", in)
	}
}

func TestNormalizePhoneEquivalentSpellings(t *testing.T) {
	spellings := []string{
		"+79001112233",
		"8 900 111 22 33",
		"9001112233",
		"(900) 111-22-33",
	}
	for _, s := range spellings {
		assert.Equal(t, "9001112233", NormalizePhone(s), "spelling %q", s)
	}
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("9001112233"))
	assert.False(t, IsCanonical("89001112233"))
	assert.False(t, IsCanonical("900111223"))
	assert.False(t, IsCanonical("8001112233"))
	assert.False(t, IsCanonical("90011122a3"))
}

func TestValidPhoneInput(t *testing.T) {
	assert.True(t, ValidPhoneInput("+7 900 111-22-33"))
	assert.True(t, ValidPhoneInput("  89001112233 "))
	assert.False(t, ValidPhoneInput("звони 900"))
	assert.False(t, ValidPhoneInput(""))
	assert.False(t, ValidPhoneInput("12345"))
	assert.False(t, ValidPhoneInput("+7-900-111-22-33x"))
}
