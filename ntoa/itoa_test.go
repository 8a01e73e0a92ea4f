package ntoa_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/agilira/charon/internal/stage"
	"github.com/agilira/charon/ntoa"
	"github.com/stretchr/testify/require"
)

type captureWriter struct{ got []byte }

func (w *captureWriter) Write(p []byte) (int, error) {
	w.got = append(w.got, p...)
	return len(p), nil
}

func newBuffer(t *testing.T) (*stage.Buffer, *captureWriter) {
	t.Helper()
	cw := &captureWriter{}
	return stage.New(cw, 4096), cw
}

func render(t *testing.T, write func(*stage.Buffer)) string {
	t.Helper()
	buf, cw := newBuffer(t)
	write(buf)
	buf.FrameEnd()
	require.NoError(t, buf.Flush())
	return string(cw.got)
}

func TestIntBase10RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 9, 10, 99, 100, 12345, -987654321, math.MinInt64, math.MaxInt64}
	for _, v := range values {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.IntBase10(buf, v, ntoa.DefaultSpec()))
		})
		require.Equal(t, fmt.Sprintf("%d", v), got)
	}
}

func TestIntBase10Unsigned(t *testing.T) {
	values := []uint64{0, 1, 255, 65535, math.MaxUint64}
	for _, v := range values {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.IntBase10(buf, v, ntoa.DefaultSpec()))
		})
		require.Equal(t, fmt.Sprintf("%d", v), got)
	}
}

func TestIntBase10WidthAndPadding(t *testing.T) {
	cases := []struct {
		spec ntoa.ConversionSpec
		v    int
		want string
	}{
		{ntoa.ConversionSpec{Width: 6}, 42, "    42"},
		{ntoa.ConversionSpec{Width: 6, Zero: true, Precision: ntoa.UnspecifiedPrecision}, 42, "000042"},
		{ntoa.ConversionSpec{Width: 6, Left: true}, 42, "42    "},
		{ntoa.ConversionSpec{Width: 4, PlusSign: '+'}, 7, "  +7"},
		{ntoa.ConversionSpec{Width: 4}, -7, "  -7"},
	}
	for _, c := range cases {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.IntBase10(buf, c.v, c.spec))
		})
		require.Equal(t, c.want, got)
	}
}

func TestIntBase10Precision(t *testing.T) {
	cases := []struct {
		spec ntoa.ConversionSpec
		v    int
		want string
	}{
		{ntoa.ConversionSpec{Precision: 5}, 42, "00042"},
		{ntoa.ConversionSpec{Precision: 0}, 0, ""},
		{ntoa.ConversionSpec{Precision: 3}, -7, "-007"},
		{ntoa.ConversionSpec{Precision: 2, Width: 6}, 42, "    42"},
	}
	for _, c := range cases {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.IntBase10(buf, c.v, c.spec))
		})
		require.Equal(t, c.want, got)
	}
}

func TestIntBase16(t *testing.T) {
	cases := []struct {
		spec ntoa.ConversionSpec
		v    uint32
		want string
	}{
		{ntoa.DefaultSpec(), 255, "ff"},
		{ntoa.ConversionSpec{Upper: true, Precision: ntoa.UnspecifiedPrecision}, 255, "FF"},
		{ntoa.ConversionSpec{Alt: true, Precision: ntoa.UnspecifiedPrecision}, 255, "0xff"},
		{ntoa.ConversionSpec{Alt: true, Upper: true, Precision: ntoa.UnspecifiedPrecision}, 255, "0XFF"},
		{ntoa.ConversionSpec{Alt: true, Precision: ntoa.UnspecifiedPrecision}, 0, "0"},
	}
	for _, c := range cases {
		got := render(t, func(buf *stage.Buffer) {
			require.NoError(t, ntoa.IntBase16(buf, c.v, c.spec))
		})
		require.Equal(t, c.want, got)
	}
}
