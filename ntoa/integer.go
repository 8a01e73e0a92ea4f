package ntoa

// Integer is the set of built-in integer types this package can convert.
// Go has no variadic templates; this constraint plus the two exported
// generic functions stand in for reckless's six itoa_base10/itoa_base16
// overloads (int, unsigned int, long, ...).
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// splitSign reports whether v is negative and returns its absolute value
// as a uint64, without overflowing on the minimum representable value.
func splitSign[T Integer](v T) (neg bool, mag uint64) {
	switch x := any(v).(type) {
	case int:
		return signedSplit(int64(x))
	case int8:
		return signedSplit(int64(x))
	case int16:
		return signedSplit(int64(x))
	case int32:
		return signedSplit(int64(x))
	case int64:
		return signedSplit(x)
	default:
		return false, uint64(v)
	}
}

func signedSplit(v int64) (bool, uint64) {
	if v < 0 {
		return true, uint64(-(v + 1)) + 1
	}
	return false, uint64(v)
}

// rawBits returns the unsigned bit pattern of v, used for base-16
// conversion where negative values print as their two's-complement form.
func rawBits[T Integer](v T) uint64 {
	switch x := any(v).(type) {
	case int:
		return uint64(uint(x))
	case int8:
		return uint64(uint8(x))
	case int16:
		return uint64(uint16(x))
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	default:
		return uint64(v)
	}
}
