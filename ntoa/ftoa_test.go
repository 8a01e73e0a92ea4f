package ntoa_test

import (
	"math"
	"strconv"
	"testing"

	"github.com/agilira/charon/internal/stage"
	"github.com/agilira/charon/ntoa"
	"github.com/stretchr/testify/require"
)

func TestFloatFixedRoundingCarry(t *testing.T) {
	// spec.md §8 scenario 5: 0.095 at precision 2 rounds up across the
	// decimal point to "0.10", not down to "0.09".
	got := render(t, func(buf *stage.Buffer) {
		require.NoError(t, ntoa.FloatFixed(buf, 0.095, ntoa.ConversionSpec{Precision: 2}))
	})
	require.Equal(t, "0.10", got)
}

func TestFloatFixedDefaultPrecision(t *testing.T) {
	got := render(t, func(buf *stage.Buffer) {
		require.NoError(t, ntoa.FloatFixed(buf, 3.14, ntoa.DefaultSpec()))
	})
	require.Equal(t, "3.140000", got)
}

func TestFloatFixedExactDigitCount(t *testing.T) {
	for _, p := range []uint{0, 1, 2, 6, 10} {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.FloatFixed(buf, 1.5, ntoa.ConversionSpec{Precision: p, Alt: p == 0}))
		})
		if p == 0 {
			require.Equal(t, "2.", got)
			continue
		}
		dot := len("1") // integer part of 1.5 is 1 digit
		require.Len(t, got, dot+1+int(p))
	}
}

func TestFloatGeneralRoundTripMaxFloat(t *testing.T) {
	v := 1.7976931348623157e308
	got := render(t, func(buf *stage.Buffer) {
		require.NoError(t, ntoa.FloatGeneral(buf, v, ntoa.ConversionSpec{Precision: 17}))
	})
	parsed, err := strconv.ParseFloat(got, 64)
	require.NoError(t, err)
	require.Equal(t, v, parsed)
}

func TestFloatGeneralRoundTripRandomish(t *testing.T) {
	values := []float64{0, -0.0, 1, -1, 0.1, 123456.789, 1e-300, 1e300, math.Pi, math.SmallestNonzeroFloat64}
	for _, v := range values {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.FloatGeneral(buf, v, ntoa.ConversionSpec{Precision: 17}))
		})
		parsed, err := strconv.ParseFloat(got, 64)
		require.NoError(t, err)
		require.Equal(t, v, parsed, "round-trip mismatch for %v via %q", v, got)
	}
}

func TestFloatGeneralSpecialValues(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, c := range cases {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.FloatGeneral(buf, c.v, ntoa.DefaultSpec()))
		})
		require.Equal(t, c.want, got)
	}
}

func TestFloatGeneralStripsTrailingZeros(t *testing.T) {
	got := render(t, func(buf *stage.Buffer) {
		require.NoError(t, ntoa.FloatGeneral(buf, 100.0, ntoa.DefaultSpec()))
	})
	require.Equal(t, "100", got)
}

func TestFloatGeneralAltKeepsTrailingZeros(t *testing.T) {
	got := render(t, func(buf *stage.Buffer) {
		require.NoError(t, ntoa.FloatGeneral(buf, 100.0, ntoa.ConversionSpec{Alt: true, Precision: ntoa.UnspecifiedPrecision}))
	})
	require.Equal(t, "100.000", got)
}
