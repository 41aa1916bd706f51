package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault returns def for empty or non-numeric input.
func ParseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// ParseBoolPtr returns nil for empty or unparseable input, so callers can
// tell "unset" from "false".
func ParseBoolPtr(s string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}
