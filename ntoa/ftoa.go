package ntoa

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/agilira/charon/internal/stage"
)

var bigTen = big.NewInt(10)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}

// roundScaled reads the 18 digits as an integer D and returns D * 10^(-shift)
// rounded to the nearest integer (halves round up), as a decimal string. A
// rounding carry shows up as one extra leading digit in the result.
func roundScaled(digits [18]byte, shift int) (result string) {
	d := new(big.Int)
	d.SetString(string(digits[:]), 10)
	if shift <= 0 {
		d.Mul(d, pow10(-shift))
		return d.String()
	}
	divisor := pow10(shift)
	q, r := new(big.Int).QuoRem(d, divisor, new(big.Int))
	twice := new(big.Int).Lsh(r, 1)
	if twice.Cmp(divisor) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.String()
}

// fixedParts renders the exact decimal expansion of decimal18(v) to
// `precision` digits after the decimal point, rounding correctly.
func fixedParts(digits [18]byte, exp10, precision int) (intPart, fracPart string) {
	// value * 10^precision, as an exact integer via shift = 17 - exp10 - precision
	shift := 17 - exp10 - precision
	s := roundScaled(digits, shift)
	if precision == 0 {
		return s, ""
	}
	if len(s) <= precision {
		return "0", strings.Repeat("0", precision-len(s)) + s
	}
	return s[:len(s)-precision], s[len(s)-precision:]
}

// significantParts rounds decimal18(v) to sig significant digits and
// returns the rounded digit string plus the (possibly incremented, on
// carry) exponent of its leading digit.
func significantParts(digits [18]byte, exp10, sig int) (roundedDigits string, newExp int) {
	if sig < 1 {
		sig = 1
	}
	if sig > 18 {
		sig = 18
	}
	shift := 18 - sig
	s := roundScaled(digits, shift)
	if s == "0" {
		// v is zero: pad to sig digits and keep its exponent, instead of
		// counting the single "0" as a shortfall of sig-1 digits.
		return strings.Repeat("0", sig), exp10
	}
	newExp = exp10 + (len(s) - sig)
	return s, newExp
}

func stripTrailingZeros(s string) string {
	s = strings.TrimRight(s, "0")
	return s
}

// FloatFixed writes v to dst in %f style: [sign]ddd.ddd, with Precision
// fractional digits (default 6).
func FloatFixed(dst *stage.Buffer, v float64, cs ConversionSpec) error {
	if special, err := emitSpecial(dst, v, cs); special {
		return err
	}
	precision := int(cs.Precision)
	if cs.Precision == UnspecifiedPrecision {
		precision = 6
	}
	neg := signbit(v)
	av := v
	if neg {
		av = -v
	}
	digits, exp10 := decimal18WithExp(av)
	intPart, fracPart := fixedParts(digits, exp10, precision)
	return writeFloat(dst, neg, intPart, fracPart, cs, precision)
}

// FloatGeneral writes v to dst in %g style: %f or %e form with
// Precision significant digits (default 6), switching to scientific
// notation when the decimal exponent is below -4 or at or above the
// precision, and trimming trailing fractional zeros unless Alt is set.
func FloatGeneral(dst *stage.Buffer, v float64, cs ConversionSpec) error {
	if special, err := emitSpecial(dst, v, cs); special {
		return err
	}
	sig := int(cs.Precision)
	if cs.Precision == UnspecifiedPrecision {
		sig = 6
	}
	if sig == 0 {
		sig = 1
	}
	neg := signbit(v)
	av := v
	if neg {
		av = -v
	}
	digits, exp10 := decimal18WithExp(av)
	roundedDigits, newExp := significantParts(digits, exp10, sig)

	if newExp < -4 || newExp >= sig {
		mantissaFrac := roundedDigits[1:]
		if !cs.Alt {
			mantissaFrac = stripTrailingZeros(mantissaFrac)
		}
		return writeScientific(dst, neg, roundedDigits[:1], mantissaFrac, newExp, cs)
	}

	fracDigits := sig - 1 - newExp
	var intPart, fracPart string
	if newExp >= 0 {
		intPart = roundedDigits[:newExp+1]
		fracPart = roundedDigits[newExp+1:]
	} else {
		intPart = "0"
		fracPart = strings.Repeat("0", -newExp-1) + roundedDigits
	}
	if fracDigits < len(fracPart) {
		fracPart = fracPart[:fracDigits]
	} else {
		fracPart = fracPart + strings.Repeat("0", fracDigits-len(fracPart))
	}
	if !cs.Alt {
		fracPart = stripTrailingZeros(fracPart)
	}
	return writeFloat(dst, neg, intPart, fracPart, cs, len(fracPart))
}

// decimal18WithExp is decimal18 restricted to already-nonnegative input,
// used internally once the sign has been split off by the caller.
func decimal18WithExp(av float64) ([18]byte, int) {
	_, digits, exp10 := decimal18(av)
	return digits, exp10
}

func emitSpecial(dst *stage.Buffer, v float64, cs ConversionSpec) (bool, error) {
	switch {
	case math.IsNaN(v):
		return true, writeLiteral(dst, "nan", cs)
	case math.IsInf(v, 1):
		return true, writeLiteral(dst, "inf", cs)
	case math.IsInf(v, -1):
		return true, writeLiteral(dst, "-inf", cs)
	default:
		return false, nil
	}
}

func writeLiteral(dst *stage.Buffer, s string, cs ConversionSpec) error {
	n := len(s)
	pad := 0
	if int(cs.Width) > n {
		pad = int(cs.Width) - n
	}
	buf, err := dst.Reserve(n + pad)
	if err != nil {
		return err
	}
	w := 0
	if cs.Left {
		copy(buf[w:], s)
		w += n
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
	} else {
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
		copy(buf[w:], s)
		w += n
	}
	dst.Commit(n + pad)
	return nil
}

func writeFloat(dst *stage.Buffer, neg bool, intPart, fracPart string, cs ConversionSpec, precision int) error {
	var sign byte
	if neg {
		sign = '-'
	} else if cs.PlusSign != 0 {
		sign = cs.PlusSign
	}
	dot := ""
	if len(fracPart) > 0 || cs.Alt {
		dot = "."
	}
	body := intPart + dot + fracPart
	total := body
	if sign != 0 {
		total = string(sign) + total
	}
	pad := 0
	if int(cs.Width) > len(total) {
		pad = int(cs.Width) - len(total)
	}
	n := len(total) + pad
	buf, err := dst.Reserve(n)
	if err != nil {
		return err
	}
	w := 0
	switch {
	case cs.Left:
		copy(buf[w:], total)
		w += len(total)
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
	case cs.Zero:
		if sign != 0 {
			buf[w] = sign
			w++
		}
		for i := 0; i < pad; i++ {
			buf[w] = '0'
			w++
		}
		copy(buf[w:], body)
		w += len(body)
	default:
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
		copy(buf[w:], total)
		w += len(total)
	}
	dst.Commit(n)
	return nil
}

func writeScientific(dst *stage.Buffer, neg bool, leadDigit, frac string, exp int, cs ConversionSpec) error {
	e := "e"
	if cs.Upper {
		e = "E"
	}
	expSign := "+"
	absExp := exp
	if exp < 0 {
		expSign = "-"
		absExp = -exp
	}
	expStr := strconv.Itoa(absExp)
	if len(expStr) < 2 {
		expStr = "0" + expStr
	}
	dot := ""
	if len(frac) > 0 || cs.Alt {
		dot = "."
	}
	body := leadDigit + dot + frac + e + expSign + expStr
	var sign byte
	if neg {
		sign = '-'
	} else if cs.PlusSign != 0 {
		sign = cs.PlusSign
	}
	total := body
	if sign != 0 {
		total = string(sign) + total
	}
	pad := 0
	if int(cs.Width) > len(total) {
		pad = int(cs.Width) - len(total)
	}
	n := len(total) + pad
	buf, err := dst.Reserve(n)
	if err != nil {
		return err
	}
	w := 0
	if cs.Left {
		copy(buf[w:], total)
		w += len(total)
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
	} else if cs.Zero {
		if sign != 0 {
			buf[w] = sign
			w++
		}
		for i := 0; i < pad; i++ {
			buf[w] = '0'
			w++
		}
		copy(buf[w:], body)
		w += len(body)
	} else {
		for i := 0; i < pad; i++ {
			buf[w] = ' '
			w++
		}
		copy(buf[w:], total)
		w += len(total)
	}
	dst.Commit(n)
	return nil
}
