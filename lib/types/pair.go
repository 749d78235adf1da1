package types

import (
	"fmt"
	"unsafe"

	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/vm"
)

// Pair holds two values. Chains of pairs whose last tail is Nil form
// proper lists.
type Pair struct {
	vm.Header
	head, tail vm.Value
}

// PairType is the type of every Pair.
var PairType *vm.Type

func init() {
	PairType = vm.MustDefine(vm.TypeSpec{
		Name:     "pair",
		Size:     unsafe.Sizeof(Pair{}),
		New:      func(*config.Config) (vm.Object, error) { return &Pair{}, nil },
		Delete:   func(vm.Object) error { return nil },
		Copy:     copyPair,
		ToString: func(obj vm.Object) (string, error) { return render(vm.FromObject(obj)), nil },
		Doc:      vm.StaticDoc("A head and a tail. Pairs chained through their tails and ending in nil form a list."),
		Iterator: func(obj vm.Object) (vm.Iterator, error) {
			return &pairIterator{p: obj.(*Pair)}, nil
		},
	})
}

// pairIterator reads a pair's head, then its tail, in place.
type pairIterator struct {
	p   *Pair
	pos int
}

func (it *pairIterator) Value() vm.Value {
	switch it.pos {
	case 0:
		return it.p.head
	case 1:
		return it.p.tail
	}
	return vm.End
}

func (it *pairIterator) Next() vm.Value {
	if it.pos < 2 {
		it.pos++
	}
	return it.Value()
}

// NewPair constructs a pair of head and tail.
func NewPair(cfg *config.Config, head, tail vm.Value) (*Pair, error) {
	gc, err := collectorOf(cfg)
	if err != nil {
		return nil, err
	}
	for _, v := range []vm.Value{head, tail} {
		if err := checkStorable(gc, v); err != nil {
			return nil, err
		}
	}
	obj, err := vm.Construct(PairType, cfg)
	if err != nil {
		return nil, err
	}
	p := obj.(*Pair)
	p.head, p.tail = head, tail
	return p, nil
}

func copyPair(obj vm.Object) (vm.Object, error) {
	src := obj.(*Pair)
	return NewPair(vm.ConfigOf(src), src.head, src.tail)
}

func (p *Pair) Head() vm.Value { return p.head }
func (p *Pair) Tail() vm.Value { return p.tail }

func (p *Pair) SetHead(v vm.Value) error {
	if err := checkStorable(p.Collector(), v); err != nil {
		return err
	}
	p.head = v
	return nil
}

func (p *Pair) SetTail(v vm.Value) error {
	if err := checkStorable(p.Collector(), v); err != nil {
		return err
	}
	p.tail = v
	return nil
}

// NewList builds a proper list of values. An empty list is Nil. If a pair
// cannot be built, the pairs already built are deleted unless a collector
// owns them.
func NewList(cfg *config.Config, values ...vm.Value) (vm.Value, error) {
	list := vm.Nil
	var built []*Pair
	for i := len(values) - 1; i >= 0; i-- {
		p, err := NewPair(cfg, values[i], list)
		if err != nil {
			for _, b := range built {
				release(b)
			}
			return vm.Nil, fmt.Errorf("types: list element %d: %w", i, err)
		}
		built = append(built, p)
		list = vm.FromObject(p)
	}
	return list, nil
}

// ListValues returns the elements of a proper list. It fails with
// errcode.BadValueType for anything else, including circular lists.
func ListValues(v vm.Value) ([]vm.Value, error) {
	var out []vm.Value
	seen := make(map[*Pair]bool)
	for !v.IsNil() {
		p, ok := v.Object().(*Pair)
		if !ok {
			return nil, fmt.Errorf("types: list ends in %s: %w", v.Kind(), errcode.BadValueType)
		}
		if seen[p] {
			return nil, fmt.Errorf("types: circular list: %w", errcode.BadValueType)
		}
		seen[p] = true
		out = append(out, p.head)
		v = p.tail
	}
	return out, nil
}
