// Package money converts between the decimal strings used on the wire and
// the int64 minor units stored in the database. Amounts carry at most two
// decimal places.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// maxAbsMajor keeps parsed amounts far away from int64 overflow in minor units.
var maxAbsMajor = decimal.New(1, 12)

// ParseMinor converts a decimal string such as "250.00" into minor units
// (25000). More than two decimal places is an error, not a rounding.
func ParseMinor(input string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return 0, ErrTooManyDecimals
	}
	if d.Abs().GreaterThan(maxAbsMajor) {
		return 0, ErrInvalidAmount
	}
	return d.Shift(2).IntPart(), nil
}

// FormatMinor renders minor units with exactly two decimal places: 110050
// becomes "1100.50".
func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}

// ValueToInt64 coerces the loosely typed values MapScan produces for numeric
// columns. Unparseable values coerce to zero.
func ValueToInt64(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case []byte:
		parsed, _ := strconv.ParseInt(string(v), 10, 64)
		return parsed
	case string:
		parsed, _ := strconv.ParseInt(v, 10, 64)
		return parsed
	default:
		parsed, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return parsed
	}
}
