package vm

import (
	"fmt"
	"unsafe"

	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
)

// Version is the metaobject protocol version stamped into every Type.
const Version uint32 = 1

// HeaderSize is the size of the common object header. Every type's
// instance size must be strictly larger.
var HeaderSize = int(unsafe.Sizeof(Header{}))

// Slot function signatures.
type (
	// Constructor performs type-specific setup and returns the new
	// instance. The header is stamped by Construct afterwards.
	Constructor func(cfg *config.Config) (Object, error)

	// Destructor releases type-specific resources. The instance storage
	// itself is freed by the caller.
	Destructor func(obj Object) error

	CopyFunc     func(obj Object) (Object, error)
	ToStringFunc func(obj Object) (string, error)
	DocFunc      func(obj Object) (string, error)
	IteratorFunc func(obj Object) (Iterator, error)
)

// Type is the metaobject describing one kind of instance. Types are
// objects themselves; their header type is MetaType.
type Type struct {
	Header

	name    string
	version uint32
	size    int

	construct Constructor
	destroy   Destructor
	copy      CopyFunc
	toString  ToStringFunc
	doc       DocFunc
	iterator  IteratorFunc

	container bool
	frozen    bool
}

// metaType is filled in by init; MetaType is its address so that other
// package-level types can refer to it during variable initialization.
var metaType Type

// MetaType is the type of all types, including itself.
var MetaType = &metaType

func init() {
	metaType = Type{
		name:      "type",
		version:   Version,
		size:      int(unsafe.Sizeof(Type{})),
		construct: newBlankType,
		destroy:   func(Object) error { return nil },
		copy:      noCopy,
		toString:  typeToString,
		doc:       StaticDoc("Describes how to construct, destroy, copy, print, document and iterate instances."),
		iterator:  noIterator,
		frozen:    true,
	}
	metaType.typ = &metaType
}

// ---------------------------------------------------------------------------
// Default slots
// ---------------------------------------------------------------------------

func noCopy(Object) (Object, error) {
	return nil, fmt.Errorf("vm: copy: %w", errcode.NotSupported)
}

func noString(Object) (string, error) {
	return "", fmt.Errorf("vm: to_string: %w", errcode.NotSupported)
}

func noDoc(Object) (string, error) {
	return "", fmt.Errorf("vm: get_doc: %w", errcode.NotSupported)
}

func noIterator(Object) (Iterator, error) {
	return nil, fmt.Errorf("vm: get_iterator: %w", errcode.NotSupported)
}

// StaticDoc returns a DocFunc that always yields s.
func StaticDoc(s string) DocFunc {
	return func(Object) (string, error) { return s, nil }
}

func newBlankType(*config.Config) (Object, error) {
	return NewType(""), nil
}

func typeToString(obj Object) (string, error) {
	t, ok := obj.(*Type)
	if !ok {
		return "", fmt.Errorf("vm: to_string: %T is not a type: %w", obj, errcode.BadValueType)
	}
	return "#<type " + t.name + ">", nil
}

// ---------------------------------------------------------------------------
// Creation and mutation
// ---------------------------------------------------------------------------

// NewType returns a blank, unfrozen type. Its optional slots answer
// NotSupported; constructor and destructor must be set before use.
func NewType(name string) *Type {
	t := &Type{
		name:     name,
		version:  Version,
		copy:     noCopy,
		toString: noString,
		doc:      noDoc,
		iterator: noIterator,
	}
	t.typ = MetaType
	return t
}

func (t *Type) mutable(op string) error {
	if t == nil {
		return fmt.Errorf("vm: type: %s: nil type: %w", op, errcode.InvalidParameter)
	}
	if t.frozen {
		return fmt.Errorf("vm: type %q: %s after registration: %w", t.name, op, errcode.InvalidState)
	}
	return nil
}

func nilSlot(t *Type, op string) error {
	return fmt.Errorf("vm: type %q: %s: nil function: %w", t.name, op, errcode.InvalidParameter)
}

// SetName renames the type.
func (t *Type) SetName(name string) error {
	if err := t.mutable("set name"); err != nil {
		return err
	}
	t.name = name
	return nil
}

// SetSize sets the instance size in bytes.
func (t *Type) SetSize(size int) error {
	if err := t.mutable("set size"); err != nil {
		return err
	}
	if size <= HeaderSize {
		return fmt.Errorf("vm: type %q: size %d must exceed header size %d: %w",
			t.name, size, HeaderSize, errcode.InvalidParameter)
	}
	t.size = size
	return nil
}

func (t *Type) SetConstructor(fn Constructor) error {
	if err := t.mutable("set constructor"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set constructor")
	}
	t.construct = fn
	return nil
}

func (t *Type) SetDestructor(fn Destructor) error {
	if err := t.mutable("set destructor"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set destructor")
	}
	t.destroy = fn
	return nil
}

func (t *Type) SetCopy(fn CopyFunc) error {
	if err := t.mutable("set copy"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set copy")
	}
	t.copy = fn
	return nil
}

func (t *Type) SetToString(fn ToStringFunc) error {
	if err := t.mutable("set to_string"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set to_string")
	}
	t.toString = fn
	return nil
}

func (t *Type) SetDoc(fn DocFunc) error {
	if err := t.mutable("set get_doc"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set get_doc")
	}
	t.doc = fn
	return nil
}

// SetIterator installs the iteration capability, which makes the type a
// container.
func (t *Type) SetIterator(fn IteratorFunc) error {
	if err := t.mutable("set get_iterator"); err != nil {
		return err
	}
	if fn == nil {
		return nilSlot(t, "set get_iterator")
	}
	t.iterator = fn
	t.container = true
	return nil
}

// Freeze makes the type immutable. Registration freezes implicitly.
func (t *Type) Freeze() {
	t.frozen = true
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (t *Type) Name() string { return t.name }
func (t *Type) Version() uint32 { return t.version }
func (t *Type) Size() int { return t.size }
func (t *Type) Frozen() bool { return t.frozen }
func (t *Type) IsContainer() bool { return t.container }
func (t *Type) IsPrimitive() bool { return !t.container }

// Validate checks that the type can construct and destroy instances.
func (t *Type) Validate() error {
	var reason string
	switch {
	case t == nil:
		return fmt.Errorf("vm: validate: nil type: %w", errcode.InvalidParameter)
	case t.version != Version:
		reason = fmt.Sprintf("version %d, want %d", t.version, Version)
	case t.typ != MetaType:
		reason = "header type is not the meta type"
	case t.size <= HeaderSize:
		reason = fmt.Sprintf("size %d does not exceed header size %d", t.size, HeaderSize)
	case t.construct == nil:
		reason = "no constructor"
	case t.destroy == nil:
		reason = "no destructor"
	default:
		return nil
	}
	return fmt.Errorf("vm: type %q invalid: %s: %w", t.name, reason, errcode.InvalidParameter)
}

// Valid reports whether Validate succeeds.
func (t *Type) Valid() bool {
	return t.Validate() == nil
}

// ---------------------------------------------------------------------------
// Declarative definition
// ---------------------------------------------------------------------------

// TypeSpec describes a type in one literal. Nil optional slots keep their
// NotSupported defaults; a nil Iterator makes the type primitive.
type TypeSpec struct {
	Name     string
	Size     uintptr
	New      Constructor
	Delete   Destructor
	Copy     CopyFunc
	ToString ToStringFunc
	Doc      DocFunc
	Iterator IteratorFunc
}

// DefineType builds, validates and freezes a type from spec.
func DefineType(spec TypeSpec) (*Type, error) {
	t := NewType(spec.Name)
	if err := t.SetSize(int(spec.Size)); err != nil {
		return nil, err
	}
	if err := t.SetConstructor(spec.New); err != nil {
		return nil, err
	}
	if err := t.SetDestructor(spec.Delete); err != nil {
		return nil, err
	}
	if spec.Copy != nil {
		t.copy = spec.Copy
	}
	if spec.ToString != nil {
		t.toString = spec.ToString
	}
	if spec.Doc != nil {
		t.doc = spec.Doc
	}
	if spec.Iterator != nil {
		_ = t.SetIterator(spec.Iterator)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Freeze()
	return t, nil
}

// MustDefine is like DefineType but panics on error. It is meant for
// package-level built-in types.
func MustDefine(spec TypeSpec) *Type {
	t, err := DefineType(spec)
	if err != nil {
		panic(fmt.Sprintf("vm: define type %q: %v", spec.Name, err))
	}
	return t
}
