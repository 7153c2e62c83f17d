package kvo

// slots is a per-object map of values keyed by property name. The dispatcher
// runs on a single goroutine per scope, so unlike a shared cache it needs no
// locking.
type slots[T any] struct {
	data map[string]T
}

func newSlots[T any]() *slots[T] {
	return &slots[T]{data: make(map[string]T)}
}

func (c *slots[T]) Load(key string) (T, bool) {
	value, ok := c.data[key]
	return value, ok
}

func (c *slots[T]) Store(key string, value T) {
	c.data[key] = value
}

func (c *slots[T]) Delete(key string) {
	delete(c.data, key)
}

func (c *slots[T]) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

func (c *slots[T]) Size() int {
	return len(c.data)
}

func (c *slots[T]) Clear() {
	clear(c.data)
}
