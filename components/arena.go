package components

// Handle refers to one slot of an Arena. It is only valid for the
// generation it was issued in.
type Handle struct {
	Index int
	Gen   uint32
}

// Arena is a growable container indexed by stable handles.
// Any resize bumps the generation so handles taken before it stop resolving.
type Arena[T any] struct {
	items []T
	gen   uint32
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int { return len(a.items) }

// Gen returns the current generation.
func (a *Arena[T]) Gen() uint32 { return a.gen }

// At returns a pointer to slot i. It panics when i is out of range.
func (a *Arena[T]) At(i int) *T { return &a.items[i] }

// Items returns the live slots. The slice is invalidated by Resize.
func (a *Arena[T]) Items() []T { return a.items }

// Handle returns a handle to slot i in the current generation.
func (a *Arena[T]) Handle(i int) Handle { return Handle{Index: i, Gen: a.gen} }

// Get resolves h, returning false when h is stale or out of range.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	if h.Gen != a.gen || h.Index < 0 || h.Index >= len(a.items) {
		return nil, false
	}
	return &a.items[h.Index], true
}

// Resize sets the live length to n. Slots kept across the resize retain
// their values; slots beyond n are zeroed before being dropped and new slots
// start zeroed. Reports whether the length changed.
func (a *Arena[T]) Resize(n int) bool {
	if n < 0 {
		n = 0
	}
	old := len(a.items)
	if n == old {
		return false
	}
	if n < old {
		var zero T
		for i := n; i < old; i++ {
			a.items[i] = zero
		}
		a.items = a.items[:n]
	} else if n <= cap(a.items) {
		a.items = a.items[:n]
	} else {
		grown := make([]T, n)
		copy(grown, a.items)
		a.items = grown
	}
	a.gen++
	return true
}

// Reset zeroes every slot and bumps the generation.
func (a *Arena[T]) Reset() {
	var zero T
	for i := range a.items {
		a.items[i] = zero
	}
	a.gen++
}
