// Package money parses and formats the decimal amounts and currency codes the
// wallet engines accept.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// Scale is the number of fraction digits every amount carries.
const Scale = 2

// MaxAmount is the largest amount accepted, equal to the largest value a
// NUMERIC(18,2) balance column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// maxExponent bounds the decimal exponent of an accepted amount so that
// rounding and comparison never expand an input like "1e999999999".
const maxExponent = 32

// ParseAmount validates a caller-supplied amount. Well-formed decimals,
// exponent notation included, are taken at face value. Anything else has
// characters other than digits, '.' and '-' stripped first so values such as
// "$1,250.00" are accepted. The result is positive and rounded to two
// decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		if amount, err = parseLoose(raw); err != nil {
			return decimal.Zero, err
		}
	}

	if e := amount.Exponent(); e > maxExponent || e < -maxExponent {
		return decimal.Zero, walletapi.Validationf("amount %q is out of range", raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, walletapi.Validationf("amount must be greater than zero")
	}
	amount = amount.Round(Scale)
	if !amount.IsPositive() {
		return decimal.Zero, walletapi.Validationf("amount must be greater than zero")
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, walletapi.Validationf("amount %s exceeds the maximum of %s", amount.StringFixed(Scale), MaxAmount.StringFixed(Scale))
	}
	return amount, nil
}

func parseLoose(raw string) (decimal.Decimal, error) {
	if hasExponent(raw) {
		return decimal.Zero, walletapi.Validationf("amount %q is out of range", raw)
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" || strings.Trim(cleaned, ".-") == "" {
		return decimal.Zero, walletapi.Validationf("amount %q is not a number", raw)
	}
	if strings.Count(cleaned, ".") > 1 || strings.LastIndex(cleaned, "-") > 0 {
		return decimal.Zero, walletapi.Validationf("amount %q is not a number", raw)
	}
	if strings.HasPrefix(cleaned, "-") {
		return decimal.Zero, walletapi.Validationf("amount must be greater than zero")
	}
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}
	cleaned = strings.TrimSuffix(cleaned, ".")

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, walletapi.Validationf("amount %q is not a number", raw)
	}
	return amount, nil
}

// hasExponent reports exponent notation the decimal parser refused, such as
// an exponent too large to represent. Stripping the marker would change the value.
func hasExponent(raw string) bool {
	for i := 1; i < len(raw)-1; i++ {
		if raw[i] != 'e' && raw[i] != 'E' {
			continue
		}
		prev, next := raw[i-1], raw[i+1]
		if (isDigit(prev) || prev == '.') && (isDigit(next) || next == '+' || next == '-') {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// NormalizeCurrency upper-cases a currency code and checks it is three letters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", walletapi.Validationf("currency code %q must be three letters", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", walletapi.Validationf("currency code %q must be three letters", code)
		}
	}
	return code, nil
}

// Format renders an amount with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Input decodes a JSON amount given either as a number or as a string, keeping
// the raw text for ParseAmount. Numbers must be valid decimals; exponent
// notation such as 1e2 is kept as written and valued by ParseAmount.
type Input string

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*in = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
	default:
		if _, err := decimal.NewFromString(string(data)); err != nil {
			return fmt.Errorf("amount must be a number or a string, got %s", data)
		}
		*in = Input(data)
	}
	return nil
}

func (in Input) String() string { return string(in) }
