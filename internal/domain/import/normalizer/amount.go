package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a raw amount value cannot be normalized.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseSignedAmount normalizes a monetary token. Currency symbols and
// thousands separators are dropped, and accounting parentheses flip the sign.
func ParseSignedAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	parensNegative := strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")")
	value = strings.ReplaceAll(strings.ReplaceAll(value, "(", ""), ")", "")
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if parensNegative && parsed.IsPositive() {
		parsed = parsed.Neg()
	}
	return parsed, nil
}
