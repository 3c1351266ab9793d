package bds

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const dateLayout = "20060102"

var ligatures = strings.NewReplacer("Œ", "OE", "œ", "oe", "Æ", "AE", "æ", "ae", "ß", "SS")

// Fold upper-cases s and reduces it to printable ASCII: accents are dropped
// and anything else outside ASCII becomes a space.
func Fold(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, ligatures.Replace(s))
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(folded)
	var b strings.Builder
	for _, r := range folded {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// alpha left-justifies, pads with spaces and truncates to width.
func alpha(s string, width int) string {
	s = Fold(s)
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// numeric right-justifies digits with zeros, keeping the rightmost ones when
// the value is too wide.
func numeric(s string, width int) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) >= width {
		return digits[len(digits)-width:]
	}
	return strings.Repeat("0", width-len(digits)) + digits
}

// Centimes converts an amount to whole centimes, rounding half away from
// zero. Negative amounts are encoded as zero.
func Centimes(d decimal.Decimal) int64 {
	c := d.Shift(2).Round(0).IntPart()
	if c < 0 {
		return 0
	}
	return c
}

func amount(d decimal.Decimal, width int) string {
	return numeric(fmt.Sprintf("%d", Centimes(d)), width)
}

func date(t *time.Time, width int) string {
	if t == nil || t.IsZero() {
		return strings.Repeat(" ", width)
	}
	return t.Format(dateLayout)
}

// RatePercent encodes a fractional rate as a percentage with two implied
// decimals: 0.064 becomes 640.
func RatePercent(rate decimal.Decimal) int64 {
	return rate.Shift(4).Round(0).IntPart()
}
