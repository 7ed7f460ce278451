package normalize

import (
	"strconv"
	"strings"
)

// ParseNumber parses a quantity cell. Accounting notation is supported, so
// "(123)" yields -123. Anything else that is not a number is absent.
func ParseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		return parsed, true
	}

	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") && len(value) > 2 {
		inner := strings.TrimSpace(value[1 : len(value)-1])
		if parsed, err := strconv.ParseFloat(inner, 64); err == nil {
			return -parsed, true
		}
	}

	return 0, false
}

// NumberPtr is ParseNumber for optional record fields.
func NumberPtr(value string) *float64 {
	parsed, ok := ParseNumber(value)
	if !ok {
		return nil
	}
	return &parsed
}
