package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/logging"
)

func TestNewStoresServices(t *testing.T) {
	a := alloc.New()
	log := logging.Nop()
	c := New(a, log)

	if c.Allocator() != a {
		t.Error("Allocator() did not return the configured allocator")
	}
	if c.Logger() != log {
		t.Error("Logger() did not return the configured logger")
	}
	if diff := cmp.Diff([]string{KeyAlloc, KeyLog}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingServices(t *testing.T) {
	c := New(nil, nil)
	if c.Allocator() != nil {
		t.Error("Allocator() on empty config should be nil")
	}
	if c.Logger() != nil {
		t.Error("Logger() on empty config should be nil")
	}
}

func TestTypedEntries(t *testing.T) {
	c := New(nil, nil)

	if err := c.SetInt(KeyInitialSlots, 256); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := c.SetBool(KeyGrowth, false); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if err := c.SetString("log:name", "esch.gc"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	if v, err := c.GetInt(KeyInitialSlots); err != nil || v != 256 {
		t.Errorf("GetInt = %d, %v; want 256, nil", v, err)
	}
	if v, err := c.GetBool(KeyGrowth); err != nil || v {
		t.Errorf("GetBool = %v, %v; want false, nil", v, err)
	}
	if v, err := c.GetString("log:name"); err != nil || v != "esch.gc" {
		t.Errorf("GetString = %q, %v; want esch.gc, nil", v, err)
	}
}

func TestLookupErrors(t *testing.T) {
	c := New(nil, nil)
	_ = c.SetInt("n", 1)

	if _, err := c.GetInt("missing"); !errors.Is(err, errcode.NotFound) {
		t.Errorf("GetInt(missing) = %v, want NotFound", err)
	}
	if _, err := c.GetBool("n"); !errors.Is(err, errcode.BadValueType) {
		t.Errorf("GetBool(int key) = %v, want BadValueType", err)
	}
	if _, err := c.GetObject("n"); !errors.Is(err, errcode.BadValueType) {
		t.Errorf("GetObject(int key) = %v, want BadValueType", err)
	}
}

func TestDefaults(t *testing.T) {
	c := New(nil, nil)

	if v, err := c.IntOr(KeyInitialSlots, 4096); err != nil || v != 4096 {
		t.Errorf("IntOr absent = %d, %v; want 4096, nil", v, err)
	}
	if v, err := c.BoolOr(KeyGrowth, true); err != nil || !v {
		t.Errorf("BoolOr absent = %v, %v; want true, nil", v, err)
	}

	_ = c.SetString(KeyInitialSlots, "many")
	if _, err := c.IntOr(KeyInitialSlots, 4096); !errors.Is(err, errcode.BadValueType) {
		t.Errorf("IntOr wrong kind = %v, want BadValueType", err)
	}
}

func TestLimits(t *testing.T) {
	c := New(nil, nil)

	if err := c.SetInt(strings.Repeat("k", MaxKeyLength+1), 1); !errors.Is(err, errcode.InvalidParameter) {
		t.Errorf("long key = %v, want InvalidParameter", err)
	}
	if err := c.SetInt("", 1); !errors.Is(err, errcode.InvalidParameter) {
		t.Errorf("empty key = %v, want InvalidParameter", err)
	}
	if err := c.SetString("s", strings.Repeat("x", MaxStringLength+1)); !errors.Is(err, errcode.InvalidParameter) {
		t.Errorf("long string = %v, want InvalidParameter", err)
	}
	if err := c.SetObject("o", nil); !errors.Is(err, errcode.InvalidParameter) {
		t.Errorf("nil object = %v, want InvalidParameter", err)
	}
}

func TestGenericObject(t *testing.T) {
	c := New(alloc.New(), nil)

	a, ok, err := Object[*alloc.Counted](c, KeyAlloc)
	if err != nil || !ok || a == nil {
		t.Errorf("Object[*alloc.Counted] = %v, %v, %v", a, ok, err)
	}

	_, ok, err = Object[logging.Logger](c, KeyLog)
	if err != nil || ok {
		t.Errorf("Object absent = ok %v, err %v; want false, nil", ok, err)
	}

	_ = c.SetObject("thing", 42)
	if _, _, err := Object[string](c, "thing"); !errors.Is(err, errcode.BadValueType) {
		t.Errorf("Object wrong type = %v, want BadValueType", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := New(nil, nil)
	_ = c.SetInt("a", 1)

	d := c.Clone()
	_ = d.SetInt("a", 2)
	d.Delete("missing")

	if v, _ := c.GetInt("a"); v != 1 {
		t.Errorf("original changed to %d after editing clone", v)
	}
	if v, _ := d.GetInt("a"); v != 2 {
		t.Errorf("clone = %d, want 2", v)
	}
}
