package ring

import "unsafe"

// The wraparound marker is a zero 8-byte word written at a frame's
// dispatch slot, exactly reckless's WRAPAROUND_MARKER (a null
// formatter_dispatch_function_t). The consumer checks for it before
// reinterpreting a slot as a real frame header.
func writeWraparoundMarker(buf []byte, offset int) {
	p := (*uint64)(unsafe.Pointer(&buf[offset]))
	*p = 0
}

// IsWraparoundMarker reports whether the 8-byte word at offset is the
// wraparound sentinel.
func IsWraparoundMarker(buf []byte, offset int) bool {
	p := (*uint64)(unsafe.Pointer(&buf[offset]))
	return *p == 0
}
