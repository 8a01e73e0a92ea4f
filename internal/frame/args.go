package frame

// Go has no variadic generics, so a handful of small argument-tuple
// structs stand in for reckless's variadic basic_log::write<Args...>.
// Each is its own concrete type, so Write[F, Args2[A,B]] monomorphizes
// independently for every (formatter, A, B) combination actually used,
// exactly like a C++ template instantiation.

type Args1[A any] struct{ A0 A }

type Args2[A, B any] struct {
	A0 A
	A1 B
}

type Args3[A, B, C any] struct {
	A0 A
	A1 B
	A2 C
}

type Args4[A, B, C, D any] struct {
	A0 A
	A1 B
	A2 C
	A3 D
}
