package types

import (
	"fmt"
	"unicode/utf8"
	"unsafe"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/vm"
)

var runeSize = int(unsafe.Sizeof(rune(0)))

// String is an immutable sequence of unicode scalars.
type String struct {
	vm.Header
	runes []rune
	store *alloc.Block
}

// StringType is the type of every String.
var StringType *vm.Type

func init() {
	StringType = vm.MustDefine(vm.TypeSpec{
		Name:   "string",
		Size:   unsafe.Sizeof(String{}),
		New:    func(*config.Config) (vm.Object, error) { return &String{}, nil },
		Delete: destroyString,
		Copy: func(obj vm.Object) (vm.Object, error) {
			s := obj.(*String)
			return NewString(vm.ConfigOf(s), s.Text())
		},
		ToString: func(obj vm.Object) (string, error) { return obj.(*String).Text(), nil },
		Doc:      vm.StaticDoc("Text as a sequence of unicode scalars, indexed by scalar."),
	})
}

// NewString constructs a string holding text, which must be valid UTF-8.
func NewString(cfg *config.Config, text string) (*String, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("types: string: invalid UTF-8: %w", errcode.InvalidParameter)
	}
	obj, err := vm.Construct(StringType, cfg)
	if err != nil {
		return nil, err
	}
	s := obj.(*String)
	runes := []rune(text)
	if len(runes) > 0 {
		store, err := s.Allocator().Realloc(nil, len(runes)*runeSize)
		if err != nil {
			release(s)
			return nil, fmt.Errorf("types: string storage: %w", err)
		}
		s.store = store
	}
	s.runes = runes
	return s, nil
}

func destroyString(obj vm.Object) error {
	s := obj.(*String)
	err := s.Allocator().Free(s.store)
	s.store = nil
	s.runes = nil
	return err
}

// Len returns the number of scalars.
func (s *String) Len() int { return len(s.runes) }

// Runes returns a copy of the scalars.
func (s *String) Runes() []rune {
	out := make([]rune, len(s.runes))
	copy(out, s.runes)
	return out
}

// RuneAt returns scalar i.
func (s *String) RuneAt(i int) (rune, error) {
	if i < 0 || i >= len(s.runes) {
		return 0, fmt.Errorf("types: string index %d with length %d: %w", i, len(s.runes), errcode.OutOfBound)
	}
	return s.runes[i], nil
}

func (s *String) Text() string { return string(s.runes) }
