// Package config implements the key-value configuration store passed to
// every esch constructor.
//
// Services (allocator, logger, collector, root object) and tunables live in
// the same store under string keys. Consumers read what they need once, at
// construction time.
package config

import (
	"fmt"
	"sort"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/logging"
)

// Size limits on keys and string values.
const (
	MaxKeyLength    = 32
	MaxStringLength = 255
)

// Well-known keys.
const (
	KeyAlloc        = "config:alloc"
	KeyLog          = "config:log"
	KeyInitialSlots = "gc:naive:initial_slots"
	KeyGrowth       = "gc:naive:growth_enabled"
)

// Kind is the type of a stored entry.
type Kind int

const (
	KindInt Kind = iota + 1
	KindBool
	KindString
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type entry struct {
	kind Kind
	i    int
	b    bool
	s    string
	obj  any
}

// Config is a key-value store. The zero value is not usable; use New.
type Config struct {
	entries map[string]entry
}

// New creates a store holding the two mandatory services.
func New(a alloc.Allocator, log logging.Logger) *Config {
	c := &Config{entries: make(map[string]entry)}
	if a != nil {
		c.entries[KeyAlloc] = entry{kind: KindObject, obj: a}
	}
	if log != nil {
		c.entries[KeyLog] = entry{kind: KindObject, obj: log}
	}
	return c
}

func checkKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return fmt.Errorf("config: key %q: length must be 1..%d: %w", key, MaxKeyLength, errcode.InvalidParameter)
	}
	return nil
}

func (c *Config) get(key string, kind Kind) (entry, error) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, fmt.Errorf("config: key %q: %w", key, errcode.NotFound)
	}
	if e.kind != kind {
		return entry{}, fmt.Errorf("config: key %q holds %s, not %s: %w", key, e.kind, kind, errcode.BadValueType)
	}
	return e, nil
}

func (c *Config) set(key string, e entry) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.entries[key] = e
	return nil
}

// SetInt stores an integer.
func (c *Config) SetInt(key string, v int) error {
	return c.set(key, entry{kind: KindInt, i: v})
}

// GetInt returns the integer stored under key.
func (c *Config) GetInt(key string) (int, error) {
	e, err := c.get(key, KindInt)
	return e.i, err
}

// IntOr returns the integer under key, or def when the key is absent.
// A key holding another kind is still an error.
func (c *Config) IntOr(key string, def int) (int, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.GetInt(key)
}

// SetBool stores a boolean.
func (c *Config) SetBool(key string, v bool) error {
	return c.set(key, entry{kind: KindBool, b: v})
}

// GetBool returns the boolean stored under key.
func (c *Config) GetBool(key string) (bool, error) {
	e, err := c.get(key, KindBool)
	return e.b, err
}

// BoolOr returns the boolean under key, or def when the key is absent.
func (c *Config) BoolOr(key string, def bool) (bool, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.GetBool(key)
}

// SetString stores a string of at most MaxStringLength bytes.
func (c *Config) SetString(key, v string) error {
	if len(v) > MaxStringLength {
		return fmt.Errorf("config: key %q: string longer than %d bytes: %w", key, MaxStringLength, errcode.InvalidParameter)
	}
	return c.set(key, entry{kind: KindString, s: v})
}

// GetString returns the string stored under key.
func (c *Config) GetString(key string) (string, error) {
	e, err := c.get(key, KindString)
	return e.s, err
}

// SetObject stores an arbitrary non-nil value.
func (c *Config) SetObject(key string, v any) error {
	if v == nil {
		return fmt.Errorf("config: key %q: nil object: %w", key, errcode.InvalidParameter)
	}
	return c.set(key, entry{kind: KindObject, obj: v})
}

// GetObject returns the value stored under key.
func (c *Config) GetObject(key string) (any, error) {
	e, err := c.get(key, KindObject)
	return e.obj, err
}

// Object returns the value under key converted to T. An absent key yields
// the zero T and ok == false; a value of another type is BadValueType.
func Object[T any](c *Config, key string) (v T, ok bool, err error) {
	if !c.Has(key) {
		return v, false, nil
	}
	raw, err := c.GetObject(key)
	if err != nil {
		return v, false, err
	}
	v, ok = raw.(T)
	if !ok {
		return v, false, fmt.Errorf("config: key %q holds %T: %w", key, raw, errcode.BadValueType)
	}
	return v, true, nil
}

// Has reports whether key is present.
func (c *Config) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Config) Delete(key string) {
	delete(c.entries, key)
}

// Keys returns all keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Services are shared, not duplicated.
func (c *Config) Clone() *Config {
	out := &Config{entries: make(map[string]entry, len(c.entries))}
	for k, e := range c.entries {
		out.entries[k] = e
	}
	return out
}

// Allocator returns the configured allocator, or nil.
func (c *Config) Allocator() alloc.Allocator {
	a, _, _ := Object[alloc.Allocator](c, KeyAlloc)
	return a
}

// Logger returns the configured logger, or nil.
func (c *Config) Logger() logging.Logger {
	l, _, _ := Object[logging.Logger](c, KeyLog)
	return l
}
