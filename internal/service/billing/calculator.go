package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config holds the pricing configuration
type Config struct {
	UnitMinutes       int    // Billing unit length in minutes
	RoundingIncrement int64  // Prices are rounded to multiples of this
	Currency          string // Currency code (e.g., "IDR")
}

// DefaultConfig returns the default pricing configuration
func DefaultConfig() *Config {
	return &Config{
		UnitMinutes:       30,  // price quoted per 30 minutes
		RoundingIncrement: 500, // round to nearest Rp 500
		Currency:          "IDR",
	}
}

// Calculator computes the price of a completed timed session. It is a
// pure function of its inputs: no clock, no I/O.
type Calculator struct {
	cfg *Config
}

func NewCalculator(cfg *Config) *Calculator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Calculator{cfg: cfg}
}

// Price returns the rounded amount for a session of durationMinutes on a
// channel priced at pricePerUnit per billing unit. Rounding is half-up
// to the nearest increment; ties go away from zero.
func (c *Calculator) Price(durationMinutes int, pricePerUnit int64) int64 {
	raw := float64(durationMinutes) / float64(c.cfg.UnitMinutes) * float64(pricePerUnit)
	inc := float64(c.cfg.RoundingIncrement)
	return int64(math.Floor(raw/inc+0.5) * inc)
}

// FormatAmount renders an amount the way the ledger has always stored
// it: "Rp 5.500" with dot thousands separators and no decimals.
func (c *Calculator) FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("%sRp %s", sign, b.String())
}

// Currency returns the configured currency code.
func (c *Calculator) Currency() string {
	return c.cfg.Currency
}
