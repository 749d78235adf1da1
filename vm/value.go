package vm

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindByte
	KindUnicode
	KindInteger
	KindFloat
	KindObject
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindByte:
		return "byte"
	case KindUnicode:
		return "unicode"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a tagged union of the scalar kinds and object references.
//
// Scalars share a 64-bit payload; object references are held separately
// so that the Go runtime can see them. End is the iterator's exhausted
// signal and is never stored in a container.
type Value struct {
	kind Kind
	bits uint64
	obj  Object
}

// Pre-defined values
var (
	Nil = Value{kind: KindNil}
	End = Value{kind: KindEnd}
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromByte creates a byte value.
func FromByte(b byte) Value {
	return Value{kind: KindByte, bits: uint64(b)}
}

// FromRune creates a unicode scalar value.
func FromRune(r rune) Value {
	return Value{kind: KindUnicode, bits: uint64(uint32(r))}
}

// FromInt creates an integer value.
func FromInt(i int64) Value {
	return Value{kind: KindInteger, bits: uint64(i)}
}

// FromFloat creates a float value.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, bits: math.Float64bits(f)}
}

// FromObject creates an object reference. A nil object yields Nil.
func FromObject(obj Object) Value {
	if obj == nil {
		return Nil
	}
	return Value{kind: KindObject, obj: obj}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }
func (v Value) IsEnd() bool { return v.kind == KindEnd }
func (v Value) IsByte() bool { return v.kind == KindByte }
func (v Value) IsUnicode() bool { return v.kind == KindUnicode }
func (v Value) IsInteger() bool { return v.kind == KindInteger }
func (v Value) IsFloat() bool { return v.kind == KindFloat }
func (v Value) IsObject() bool { return v.kind == KindObject }

// ---------------------------------------------------------------------------
// Payload access
// ---------------------------------------------------------------------------

// Byte returns the byte payload. Panics if v is not a byte.
func (v Value) Byte() byte {
	v.must(KindByte)
	return byte(v.bits)
}

// Rune returns the unicode payload. Panics if v is not a unicode scalar.
func (v Value) Rune() rune {
	v.must(KindUnicode)
	return rune(uint32(v.bits))
}

// Int returns the integer payload. Panics if v is not an integer.
func (v Value) Int() int64 {
	v.must(KindInteger)
	return int64(v.bits)
}

// Float returns the float payload. Panics if v is not a float.
func (v Value) Float() float64 {
	v.must(KindFloat)
	return math.Float64frombits(v.bits)
}

// Object returns the referenced object, or nil if v is not an object.
func (v Value) Object() Object {
	return v.obj
}

func (v Value) must(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("vm: Value is %s, not %s", v.kind, k))
	}
}

// Equal reports whether two values have the same kind and payload.
// Objects compare by identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindObject {
		return v.obj == o.obj
	}
	return v.bits == o.bits
}

// String renders the value for diagnostics. Objects render through their
// type's to_string slot when it is supported.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindEnd:
		return "#<end>"
	case KindByte:
		return "#x" + strconv.FormatUint(v.bits&0xff, 16)
	case KindUnicode:
		return strconv.QuoteRune(v.Rune())
	case KindInteger:
		return strconv.FormatInt(v.Int(), 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case KindObject:
		if s, err := ToString(v.obj); err == nil {
			return s
		}
		h := v.obj.ObjectHeader()
		name := "?"
		if h.typ != nil {
			name = h.typ.name
		}
		return fmt.Sprintf("#<%s@%d>", name, h.slot)
	default:
		return v.kind.String()
	}
}
