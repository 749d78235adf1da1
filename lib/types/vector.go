package types

import (
	"fmt"
	"unsafe"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/vm"
)

// InitialSlots is the element capacity of a new vector.
const InitialSlots = 31

// Vector is a growable array of values. Its element storage is accounted
// through the allocator and doubles when full.
type Vector struct {
	vm.Header
	elems []vm.Value
	store *alloc.Block
}

// VectorType is the type of every Vector.
var VectorType *vm.Type

func init() {
	VectorType = vm.MustDefine(vm.TypeSpec{
		Name:     "vector",
		Size:     unsafe.Sizeof(Vector{}),
		New:      newVector,
		Delete:   destroyVector,
		Copy:     copyVector,
		ToString: vectorToString,
		Doc: vm.StaticDoc("A growable sequence of values indexed from zero. " +
			"Negative indices count from the end."),
		Iterator: func(obj vm.Object) (vm.Iterator, error) {
			return vm.NewSliceIterator(obj.(*Vector).elems), nil
		},
	})
}

// NewVector constructs an empty vector.
func NewVector(cfg *config.Config) (*Vector, error) {
	obj, err := vm.Construct(VectorType, cfg)
	if err != nil {
		return nil, err
	}
	return obj.(*Vector), nil
}

func newVector(cfg *config.Config) (vm.Object, error) {
	store, err := cfg.Allocator().Realloc(nil, InitialSlots*valueSize)
	if err != nil {
		return nil, fmt.Errorf("types: vector storage: %w", err)
	}
	return &Vector{elems: make([]vm.Value, 0, InitialSlots), store: store}, nil
}

func destroyVector(obj vm.Object) error {
	v := obj.(*Vector)
	err := v.Allocator().Free(v.store)
	v.store = nil
	v.elems = nil
	return err
}

func copyVector(obj vm.Object) (vm.Object, error) {
	src := obj.(*Vector)
	dst, err := NewVector(vm.ConfigOf(src))
	if err != nil {
		return nil, err
	}
	for _, e := range src.elems {
		if err := dst.Append(e); err != nil {
			release(dst)
			return nil, err
		}
	}
	return dst, nil
}

func vectorToString(obj vm.Object) (string, error) {
	return render(vm.FromObject(obj)), nil
}

// Len returns the number of elements.
func (v *Vector) Len() int { return len(v.elems) }

// Slots returns the current element capacity.
func (v *Vector) Slots() int { return cap(v.elems) }

func (v *Vector) index(i int) (int, error) {
	j := i
	if j < 0 {
		j += len(v.elems)
	}
	if j < 0 || j >= len(v.elems) {
		return 0, fmt.Errorf("types: vector index %d with length %d: %w", i, len(v.elems), errcode.OutOfBound)
	}
	return j, nil
}

// Get returns element i.
func (v *Vector) Get(i int) (vm.Value, error) {
	j, err := v.index(i)
	if err != nil {
		return vm.Nil, err
	}
	return v.elems[j], nil
}

// Set replaces element i.
func (v *Vector) Set(i int, val vm.Value) error {
	j, err := v.index(i)
	if err != nil {
		return err
	}
	if err := checkStorable(v.Collector(), val); err != nil {
		return err
	}
	v.elems[j] = val
	return nil
}

// Append adds val at the end, doubling the storage when it is full. On
// allocation failure the vector is unchanged.
func (v *Vector) Append(val vm.Value) error {
	if err := checkStorable(v.Collector(), val); err != nil {
		return err
	}
	if len(v.elems) == cap(v.elems) {
		slots := 2 * cap(v.elems)
		store, err := v.Allocator().Realloc(v.store, slots*valueSize)
		if err != nil {
			return fmt.Errorf("types: grow vector to %d slots: %w", slots, err)
		}
		v.store = store
		elems := make([]vm.Value, len(v.elems), slots)
		copy(elems, v.elems)
		v.elems = elems
	}
	v.elems = append(v.elems, val)
	return nil
}

// Values returns a copy of the elements.
func (v *Vector) Values() []vm.Value {
	out := make([]vm.Value, len(v.elems))
	copy(out, v.elems)
	return out
}
