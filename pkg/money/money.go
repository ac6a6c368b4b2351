// Package money holds currency amounts as integer minor units (cents) so cart
// and receipt arithmetic never accumulates floating point drift.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Cents is an amount in minor currency units.
type Cents int64

const DefaultCurrency = "KSh"

var hundred = decimal.NewFromInt(100)

var printer = message.NewPrinter(language.English)

// FromDecimal rounds a major-unit decimal to the nearest cent, half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// Parse reads a major-unit amount such as "1250.5" or "1,250.50".
func Parse(value string) (Cents, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if clean == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(value string) Cents {
	c, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Mul multiplies by an integer quantity.
func (c Cents) Mul(qty int) Cents {
	return c * Cents(qty)
}

// ApplyRate returns c×rate rounded half-up to the cent.
func (c Cents) ApplyRate(rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(c)).Mul(rate).Round(0).IntPart())
}

// String renders the plain two-decimal amount ("14152.00").
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Format renders the amount for display with thousands grouping, e.g. "KSh 14,152.00".
func (c Cents) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return currency + " " + c.Grouped()
}

// Grouped renders the amount with thousands separators and two decimals.
func (c Cents) Grouped() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%s.%02d", sign, printer.Sprintf("%d", v/100), v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*c = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Sum adds the provided amounts.
func Sum(values ...Cents) Cents {
	var total Cents
	for _, v := range values {
		total += v
	}
	return total
}
