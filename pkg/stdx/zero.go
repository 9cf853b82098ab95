package stdx

// Zero returns a fresh zero T, for instance the value typed tool arguments
// are decoded into.
func Zero[T any]() T {
	var zero T
	return zero
}
