// Package validate holds the pure predicates shared by the controllers and
// the proposal validator. Each check returns a human-readable message or the
// empty string; callers collect checks in order and surface the first
// non-empty message, so check ordering is part of the error contract.
package validate

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NotPositive rejects amounts <= 0.
func NotPositive(value decimal.Decimal) string {
	if value.Sign() <= 0 {
		return fmt.Sprintf("Value (%s) is not positive", value.String())
	}
	return ""
}

// NotNegative rejects amounts < 0.
func NotNegative(value decimal.Decimal) string {
	if value.Sign() < 0 {
		return fmt.Sprintf("Value (%s) is negative", value.String())
	}
	return ""
}

// NotLessThanOrEqualTo rejects values exceeding an available bound.
func NotLessThanOrEqualTo(value, bound decimal.Decimal) string {
	if value.GreaterThan(bound) {
		return fmt.Sprintf("Value (%s) is not less than or equal to %s", value.String(), bound.String())
	}
	return ""
}

// InvalidAddress rejects anything that is not a 20-byte hex address.
func InvalidAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return fmt.Sprintf("Value (%s) is not a valid eth address", addr)
	}
	return ""
}

// FirstError returns the first non-empty message.
func FirstError(msgs ...string) string {
	for _, msg := range msgs {
		if msg != "" {
			return msg
		}
	}
	return ""
}
