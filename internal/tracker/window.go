package tracker

// window is a fixed-capacity ring buffer paired with a lifetime counter. The
// counter advances once per recorded event and is never reduced by eviction
// or retain, so lifetime >= len() always holds. A zero-capacity window counts
// events without buffering them.
type window[T any] struct {
	buf      []T
	head     int // index of the oldest entry
	size     int
	lifetime int64
}

func newWindow[T any](capacity int) window[T] {
	if capacity < 0 {
		capacity = 0
	}
	return window[T]{buf: make([]T, capacity)}
}

func (w *window[T]) record(v T) {
	w.lifetime++
	capacity := len(w.buf)
	if capacity == 0 {
		return
	}
	if w.size == capacity {
		w.buf[w.head] = v
		w.head = (w.head + 1) % capacity
		return
	}
	w.buf[(w.head+w.size)%capacity] = v
	w.size++
}

// snapshot returns the most recent n entries (or fewer) in arrival order,
// as a fresh slice.
func (w *window[T]) snapshot(n int) []T {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return []T{}
	}
	capacity := len(w.buf)
	out := make([]T, n)
	start := w.head + w.size - n
	for i := 0; i < n; i++ {
		out[i] = w.buf[(start+i)%capacity]
	}
	return out
}

// retain shrinks the window to its most recent n entries. The lifetime
// counter is untouched.
func (w *window[T]) retain(n int) {
	if n < 0 {
		n = 0
	}
	if n >= w.size {
		return
	}
	w.head = (w.head + w.size - n) % len(w.buf)
	w.size = n
}

func (w *window[T]) len() int { return w.size }

func (w *window[T]) total() int64 { return w.lifetime }
