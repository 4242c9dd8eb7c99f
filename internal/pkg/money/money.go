// Package money holds cent arithmetic shared by carts, orders and invoices.
package money

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Tax applies a rate in basis points to amount, rounding half-up to the cent
func Tax(amount, basisPoints int64) int64 {
	if amount <= 0 || basisPoints <= 0 {
		return 0
	}
	return (amount*basisPoints + 5000) / 10000
}

// Percent returns pct percent of amount, truncated to the cent
func Percent(amount, pct int64) int64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return amount * pct / 100
}

// Format renders cents as "$1,234.50"
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return printer.Sprintf("%s$%d", sign, cents/100) + fmt.Sprintf(".%02d", cents%100)
}
