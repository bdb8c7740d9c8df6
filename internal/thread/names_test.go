package thread

import (
	"strings"
	"testing"
)

func TestDeriveThreadName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"  spaced   out  words ", "spaced out words"},
		{"\n\nsecond line is first non-empty\nrest", "second line is first non-empty"},
		{"", ""},
		{"   \n  \t ", ""},
	}
	for _, tc := range cases {
		if got := deriveThreadName(tc.input); got != tc.want {
			t.Fatalf("deriveThreadName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDeriveThreadNameTruncates(t *testing.T) {
	long := strings.Repeat("word ", 30)
	name := deriveThreadName(long)
	if !strings.HasSuffix(name, "…") {
		t.Fatalf("long name should end with ellipsis, got %q", name)
	}
	if len([]rune(name)) > threadNameWidth {
		t.Fatalf("name too long: %q", name)
	}
}
