package vm

// Iterator is the traversal contract every container implements.
//
// Value returns the current element, or End once the sequence is
// exhausted. Next advances and returns the new current element; advancing
// past the end is a no-op that keeps returning End. An iterator cannot be
// reset: request a fresh one from the container to start over.
//
// Reading must not change the container's topology, and a full traversal
// must report each child exactly once. The collector learns the shape of
// the object graph only through this interface.
type Iterator interface {
	Value() Value
	Next() Value
}

// SliceIterator iterates over a slice of values. It is the building block
// for array-backed containers.
type SliceIterator struct {
	values []Value
	pos    int
}

// NewSliceIterator returns an iterator positioned at the first element.
// The slice is read in place; the caller must not mutate it mid-walk.
func NewSliceIterator(values []Value) *SliceIterator {
	return &SliceIterator{values: values}
}

// Value implements Iterator.
func (it *SliceIterator) Value() Value {
	if it.pos >= len(it.values) {
		return End
	}
	return it.values[it.pos]
}

// Next implements Iterator.
func (it *SliceIterator) Next() Value {
	if it.pos < len(it.values) {
		it.pos++
	}
	return it.Value()
}

// Each walks it to exhaustion, calling fn for every element. Iteration
// stops early when fn returns false.
func Each(it Iterator, fn func(Value) bool) {
	for v := it.Value(); !v.IsEnd(); v = it.Next() {
		if !fn(v) {
			return
		}
	}
}
