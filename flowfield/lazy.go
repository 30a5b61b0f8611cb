package flowfield

import "sync"

// lazy holds a value computed at most once. Concurrent first callers block until
// the winner finishes; later reads take the sync.Once fast path and never lock.
type lazy[T any] struct {
	once sync.Once
	v    T
}

func (l *lazy[T]) get(load func() T) T {
	l.once.Do(func() { l.v = load() })
	return l.v
}
