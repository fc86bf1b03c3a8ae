package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxPrice is the largest price the assistant will extract from a message.
// It matches the DECIMAL(10,2) price column.
const MaxPrice = 99999999.99

var pricePattern = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)

// ExtractPrice returns the first well-formed price in text: a non-negative
// decimal with at most two fraction digits, optionally prefixed with "$".
// Malformed or out-of-range numbers are skipped rather than reported.
func ExtractPrice(text string) (float64, bool) {
	for _, loc := range pricePattern.FindAllStringSubmatchIndex(text, -1) {
		if start := loc[0]; start > 0 {
			if prev := text[start-1]; prev == '-' || prev == '.' {
				continue
			}
		}

		num := text[loc[2]:loc[3]]
		if dot := strings.IndexByte(num, '.'); dot >= 0 && len(num)-dot-1 > 2 {
			continue
		}

		value, err := strconv.ParseFloat(num, 64)
		if err != nil || value > MaxPrice {
			continue
		}
		return value, true
	}
	return 0, false
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func priceOrUnknown(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return formatPrice(*v)
}
