package util

import "testing"

func TestExtractHTSCode(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"850110", "850110"},
		{"The code is 850110 for motors", "850110"},
		{"8501102030", "850110"},
		{"8501.10", ""},
		{"850110 or possibly 847130", "850110"},
		{"I cannot determine a code", ""},
		{"", ""},
		{"  392690  ", "392690"},
		{"123456abc", "123456"},
	}
	for _, tc := range cases {
		if got := ExtractHTSCode(tc.raw); got != tc.want {
			t.Fatalf("ExtractHTSCode(%q)=%q want %q", tc.raw, got, tc.want)
		}
	}
}

func TestPickAlias(t *testing.T) {
	record := map[string]string{"Description": "Widget", "quantity": "2"}
	if got := PickAlias(record, "description", "Description"); got != "Widget" {
		t.Fatalf("got %q", got)
	}
	if got := PickAlias(record, "quantity", "Quantity"); got != "2" {
		t.Fatalf("got %q", got)
	}
	if got := PickAlias(record, "brand", "Brand"); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeSpaces(t *testing.T) {
	if got := NormalizeSpaces("  a \t b\n c  "); got != "a b c" {
		t.Fatalf("got %q", got)
	}
}
