package types

import (
	"fmt"
	"math/big"
	"strconv"
	"unsafe"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/vm"
)

// Integer is an arbitrary precision integer. Values that fit in an int64
// are held inline; larger ones keep their words in accounted storage.
type Integer struct {
	vm.Header
	small int64
	big   *big.Int
	store *alloc.Block
}

// Float is a boxed float64.
type Float struct {
	vm.Header
	f float64
}

var (
	IntegerType *vm.Type
	FloatType   *vm.Type
)

func init() {
	IntegerType = vm.MustDefine(vm.TypeSpec{
		Name:   "integer",
		Size:   unsafe.Sizeof(Integer{}),
		New:    func(*config.Config) (vm.Object, error) { return &Integer{}, nil },
		Delete: destroyInteger,
		Copy: func(obj vm.Object) (vm.Object, error) {
			i := obj.(*Integer)
			return NewBigInteger(vm.ConfigOf(i), i.Big())
		},
		ToString: func(obj vm.Object) (string, error) { return obj.(*Integer).String(), nil },
		Doc:      vm.StaticDoc("An integer of any magnitude."),
	})
	FloatType = vm.MustDefine(vm.TypeSpec{
		Name:   "float",
		Size:   unsafe.Sizeof(Float{}),
		New:    func(*config.Config) (vm.Object, error) { return &Float{}, nil },
		Delete: func(vm.Object) error { return nil },
		Copy: func(obj vm.Object) (vm.Object, error) {
			f := obj.(*Float)
			return NewFloat(vm.ConfigOf(f), f.f)
		},
		ToString: func(obj vm.Object) (string, error) {
			return strconv.FormatFloat(obj.(*Float).f, 'g', -1, 64), nil
		},
		Doc: vm.StaticDoc("A 64-bit IEEE 754 floating point number."),
	})
}

// NewInteger constructs an integer holding n.
func NewInteger(cfg *config.Config, n int64) (*Integer, error) {
	obj, err := vm.Construct(IntegerType, cfg)
	if err != nil {
		return nil, err
	}
	i := obj.(*Integer)
	i.small = n
	return i, nil
}

// NewBigInteger constructs an integer holding a copy of n.
func NewBigInteger(cfg *config.Config, n *big.Int) (*Integer, error) {
	if n == nil {
		return nil, fmt.Errorf("types: nil big integer: %w", errcode.InvalidParameter)
	}
	if n.IsInt64() {
		return NewInteger(cfg, n.Int64())
	}
	obj, err := vm.Construct(IntegerType, cfg)
	if err != nil {
		return nil, err
	}
	i := obj.(*Integer)
	words := len(n.Bits())
	store, err := i.Allocator().Realloc(nil, words*int(unsafe.Sizeof(big.Word(0))))
	if err != nil {
		release(i)
		return nil, fmt.Errorf("types: integer storage: %w", err)
	}
	i.store = store
	i.big = new(big.Int).Set(n)
	return i, nil
}

// ParseInteger constructs an integer from optionally signed base-10 text.
// Magnitudes beyond int64 are kept exactly.
func ParseInteger(cfg *config.Config, text string) (*Integer, error) {
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("types: parse integer %q: %w", text, errcode.InvalidParameter)
	}
	return NewBigInteger(cfg, n)
}

func destroyInteger(obj vm.Object) error {
	i := obj.(*Integer)
	err := i.Allocator().Free(i.store)
	i.store = nil
	i.big = nil
	return err
}

// IsBig reports whether the value does not fit in an int64.
func (i *Integer) IsBig() bool { return i.big != nil }

// Int returns the value and whether it fits in an int64.
func (i *Integer) Int() (int64, bool) {
	if i.big != nil {
		return 0, false
	}
	return i.small, true
}

// Big returns the value as a new big.Int.
func (i *Integer) Big() *big.Int {
	if i.big != nil {
		return new(big.Int).Set(i.big)
	}
	return big.NewInt(i.small)
}

func (i *Integer) String() string {
	if i.big != nil {
		return i.big.String()
	}
	return strconv.FormatInt(i.small, 10)
}

// NewFloat constructs a boxed float.
func NewFloat(cfg *config.Config, f float64) (*Float, error) {
	obj, err := vm.Construct(FloatType, cfg)
	if err != nil {
		return nil, err
	}
	fl := obj.(*Float)
	fl.f = f
	return fl, nil
}

func (f *Float) Float() float64 { return f.f }
