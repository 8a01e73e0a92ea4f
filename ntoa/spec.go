// Package ntoa converts integers and floating-point values to their decimal
// and hexadecimal textual forms without going through fmt, and without
// allocating. It exists so the consumer goroutine of a charon Logger can
// render an argument straight into a stage.Buffer at dispatch time.
package ntoa

// unspecifiedPrecision marks a ConversionSpec.Precision that was never set,
// matching printf's "no . given" state rather than ".0".
const unspecifiedPrecision = ^uint(0)

// UnspecifiedPrecision is the Precision value meaning "not given", mirroring
// printf semantics: FloatGeneral defaults to 6 significant digits and
// FloatFixed defaults to 6 fractional digits when Precision equals this.
const UnspecifiedPrecision = unspecifiedPrecision

// ConversionSpec carries the printf-style flags and widths that control how
// a value is rendered. The zero value has no minimum width, a Precision of 0
// (printf's ".0", not "unspecified"), no sign forcing, right-justification,
// no alternate form and space padding; DefaultSpec gives the same with
// Precision left unspecified.
type ConversionSpec struct {
	Width     uint
	Precision uint
	PlusSign  byte // '+' or ' ' to force a sign on non-negative values, 0 to omit
	Left      bool // left-justify within Width
	Alt       bool // alternate form (adds "0x" prefix for base16, forces a decimal point for floats)
	Zero      bool // pad with '0' instead of ' ' when right-justified
	Upper     bool // use uppercase hex digits
}

// DefaultSpec returns the zero-value ConversionSpec with Precision marked
// unspecified, equivalent to C's conversion_specification default
// constructor.
func DefaultSpec() ConversionSpec {
	return ConversionSpec{Precision: UnspecifiedPrecision}
}
