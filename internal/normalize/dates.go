// Package normalize turns the legacy date, timestamp and number notations
// found in dispatch reports into canonical values. Nothing here returns an
// error: a value that matches no known notation is reported as absent.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// dateLayouts are tried in order; the first match wins.
var dateLayouts = []string{
	"2-Jan-06",   // 30-Sep-24
	"2-Jan-2006", // 27-Sep-2024
	"1/2/2006",   // 9/27/2024
	"2/Jan/06",   // 11/Sep/24
}

var isoFraction = regexp.MustCompile(`:\d{2}\.\d{1,6}$`)

var printedOnPattern = regexp.MustCompile(`Printed on (\d{1,2}/\d{1,2}/\d{4}) / *(\d{1,2}:\d{2}:\d{2})(AM|PM)`)

const (
	printedOnLayout = "1/2/2006 3:04:05PM"
	isoLayout       = "2006-01-02T15:04:05"
)

// ParseDate returns value as YYYY-MM-DD, or false when no known layout matches.
func ParseDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(DateLayout), true
		}
	}

	zap.L().Warn("could not parse date", zap.String("value", value))
	return "", false
}

// ParseDatetime returns value as YYYY-MM-DD HH:MM:SS. It understands the
// "Printed on 9/27/2024 /  3:59:22PM" stamp embedded in report footers, the
// canonical form itself, and ISO-8601 with fractional seconds.
func ParseDatetime(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	if match := printedOnPattern.FindStringSubmatch(value); match != nil {
		stamp := match[1] + " " + match[2] + match[3]
		if parsed, err := time.Parse(printedOnLayout, stamp); err == nil {
			return parsed.Format(DatetimeLayout), true
		}
	}

	// time.Parse accepts a fraction after the seconds even when the layout
	// has none, so the fraction rules are checked by hand: none in the
	// canonical form, one to six digits in the ISO form.
	if !strings.Contains(value, ".") {
		if parsed, err := time.Parse(DatetimeLayout, value); err == nil {
			return parsed.Format(DatetimeLayout), true
		}
	}

	if strings.Contains(value, "T") && isoFraction.MatchString(value) {
		if parsed, err := time.Parse(isoLayout, value); err == nil {
			return parsed.Truncate(time.Second).Format(DatetimeLayout), true
		}
	}

	zap.L().Warn("could not parse datetime", zap.String("value", value))
	return "", false
}
