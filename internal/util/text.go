package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reDigitRun = regexp.MustCompile(`\b\d{6,10}\b`)
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// ExtractHTSCode reduces a free-text model reply to a 6-digit code. The model
// routinely wraps the code in commentary, so the first run of 6-10 digits wins;
// failing that, a reply that simply starts with 6 digits is accepted. Anything
// else means no prediction.
func ExtractHTSCode(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if run := reDigitRun.FindString(trimmed); run != "" {
		return run[:6]
	}
	if len(trimmed) >= 6 && allDigits(trimmed[:6]) {
		return trimmed[:6]
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// PickAlias resolves a logical field from a raw record under any of its known
// key spellings, first present wins. Model key names drift run to run.
func PickAlias(record map[string]string, aliases ...string) string {
	for _, alias := range aliases {
		if v, ok := record[alias]; ok && v != "" {
			return v
		}
	}
	return ""
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
