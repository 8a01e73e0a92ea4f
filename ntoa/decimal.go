package ntoa

import "math/big"

// decimal18 is the binary64 -> decimal conversion reckless performs with
// x87 extended-precision arithmetic (see DESIGN.md, Open Question 3). Go
// has no 80-bit float type, so charon instead converts the float64's exact
// binary value into a big.Float at a working precision well beyond 64 bits
// and renders it through Text('e', 17), which big.Float computes with
// correct rounding. The result is the same contract reckless's decimal18
// describes: an 18-digit decimal mantissa (one digit, decimal point
// implied, then 17 more) and a base-10 exponent, correctly rounded.
//
// digits holds exactly 18 ASCII digit bytes with no sign or decimal point;
// exp10 is the power of ten such that value == 0.d1 d2...d18 * 10^(exp10+1)
// when read as 0.<digits>, or equivalently digits[0].digits[1:] * 10^exp10.
func decimal18(v float64) (neg bool, digits [18]byte, exp10 int) {
	neg = signbit(v)
	if v == 0 {
		for i := range digits {
			digits[i] = '0'
		}
		return neg, digits, 0
	}
	if neg {
		v = -v
	}

	bf := new(big.Float).SetPrec(200).SetFloat64(v)
	s := bf.Text('e', 17) // "d.ddddddddddddddddde±dd"

	di := 0
	exp10 = 0
	expSign := 1
	i := 0
	// integer digit
	digits[di] = s[i]
	di++
	i++
	if i < len(s) && s[i] == '.' {
		i++
	}
	for i < len(s) && s[i] != 'e' && s[i] != 'E' {
		if di < 18 {
			digits[di] = s[i]
			di++
		}
		i++
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			if s[i] == '-' {
				expSign = -1
			}
			i++
		}
		for i < len(s) {
			exp10 = exp10*10 + int(s[i]-'0')
			i++
		}
	}
	exp10 *= expSign
	for di < 18 {
		digits[di] = '0'
		di++
	}
	return neg, digits, exp10
}

func signbit(v float64) bool {
	if v < 0 {
		return true
	}
	if v == 0 {
		return 1/v < 0
	}
	return false
}
