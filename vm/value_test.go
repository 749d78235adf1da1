package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Construction and kind checks
// ---------------------------------------------------------------------------

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"nil", Nil, KindNil},
		{"end", End, KindEnd},
		{"byte", FromByte(0xfe), KindByte},
		{"unicode", FromRune('λ'), KindUnicode},
		{"integer", FromInt(-42), KindInteger},
		{"float", FromFloat(2.5), KindFloat},
		{"object", FromObject(&leaf{}), KindObject},
		{"nil object", FromObject(nil), KindNil},
	}
	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.kind {
			t.Errorf("%s: Kind() = %v, want %v", tt.name, got, tt.kind)
		}
	}
}

func TestValuePredicatesAreExclusive(t *testing.T) {
	values := []Value{Nil, End, FromByte(1), FromRune('a'), FromInt(1), FromFloat(1), FromObject(&leaf{})}
	for _, v := range values {
		n := 0
		for _, p := range []bool{v.IsNil(), v.IsEnd(), v.IsByte(), v.IsUnicode(), v.IsInteger(), v.IsFloat(), v.IsObject()} {
			if p {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%v: %d predicates true, want 1", v.Kind(), n)
		}
	}
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

func TestValuePayloads(t *testing.T) {
	if got := FromByte(0xab).Byte(); got != 0xab {
		t.Errorf("Byte() = %#x, want 0xab", got)
	}
	if got := FromRune('€').Rune(); got != '€' {
		t.Errorf("Rune() = %q, want '€'", got)
	}
	for _, i := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
		if got := FromInt(i).Int(); got != i {
			t.Errorf("FromInt(%d).Int() = %d", i, got)
		}
	}
	for _, f := range []float64{0, -0.5, math.MaxFloat64, math.Inf(-1)} {
		if got := FromFloat(f).Float(); got != f {
			t.Errorf("FromFloat(%v).Float() = %v", f, got)
		}
	}
	if !math.IsNaN(FromFloat(math.NaN()).Float()) {
		t.Error("NaN did not survive")
	}

	l := &leaf{}
	if FromObject(l).Object() != Object(l) {
		t.Error("Object() did not return the stored object")
	}
	if FromInt(1).Object() != nil {
		t.Error("Object() of a non-object should be nil")
	}
}

func TestValueAccessorPanicsOnWrongKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Int() on a float did not panic")
		}
	}()
	FromFloat(1).Int()
}

// ---------------------------------------------------------------------------
// Equality and printing
// ---------------------------------------------------------------------------

func TestValueEqual(t *testing.T) {
	a, b := &leaf{}, &leaf{}
	tests := []struct {
		x, y Value
		want bool
	}{
		{FromInt(3), FromInt(3), true},
		{FromInt(3), FromFloat(3), false},
		{FromByte(3), FromInt(3), false},
		{FromObject(a), FromObject(a), true},
		{FromObject(a), FromObject(b), false},
		{Nil, Nil, true},
		{Nil, End, false},
	}
	for _, tt := range tests {
		if got := tt.x.Equal(tt.y); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{End, "#<end>"},
		{FromByte(0x1f), "#x1f"},
		{FromRune('a'), "'a'"},
		{FromInt(-7), "-7"},
		{FromFloat(1.25), "1.25"},
		{FromObject(&leaf{Header: Header{typ: leafType}}), "leaf"},
		{FromObject(&brittle{Header: Header{typ: brittleType, slot: -1}}), "#<brittle@-1>"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
