package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/logging"
)

// Configuration keys owned by the runtime.
const (
	KeyCollector = "gc:collector"
	KeyRoot      = "gc:naive:root"
	KeyObserver  = "gc:observer"
)

// Header is the common prefix of every instance. Concrete object structs
// embed it and thereby implement Object.
type Header struct {
	typ   *Type
	alloc alloc.Allocator
	log   logging.Logger
	gc    *Collector
	slot  int
	mem   *alloc.Block
}

// Object is anything carrying a Header.
type Object interface {
	ObjectHeader() *Header
}

// ObjectHeader implements Object.
func (h *Header) ObjectHeader() *Header { return h }

// Type returns the instance's type, or nil once it has been deleted.
func (h *Header) Type() *Type { return h.typ }

// Allocator returns the allocator the instance was constructed with.
func (h *Header) Allocator() alloc.Allocator { return h.alloc }

// Logger returns the logger the instance was constructed with.
func (h *Header) Logger() logging.Logger { return h.log }

// Collector returns the owning collector, or nil when detached.
func (h *Header) Collector() *Collector { return h.gc }

// Slot returns the arena slot id, or -1 when detached.
func (h *Header) Slot() int {
	if h.gc == nil {
		return -1
	}
	return h.slot
}

// Attached reports whether a collector owns the instance.
func (h *Header) Attached() bool { return h.gc != nil }

// static reports whether the instance was built outside Construct, like
// the Type values made by NewType and MustDefine. It owns no instance
// storage and can never be destroyed.
func (h *Header) static() bool { return h.alloc == nil || h.mem == nil }

func (h *Header) detach() {
	h.gc = nil
	h.slot = -1
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Construct allocates and initializes an instance of t.
//
// The allocator and logger come from cfg. When cfg carries a collector
// under KeyCollector the new object is attached to it; a failed attach
// destroys the object again, so on error nothing is left allocated.
func Construct(t *Type, cfg *config.Config) (Object, error) {
	if t == nil || cfg == nil {
		return nil, fmt.Errorf("vm: construct: nil type or config: %w", errcode.InvalidParameter)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("vm: construct: %w", err)
	}
	a, log := cfg.Allocator(), cfg.Logger()
	if a == nil || log == nil {
		return nil, fmt.Errorf("vm: construct %s: config lacks allocator or logger: %w", t.name, errcode.InvalidParameter)
	}
	gc, _, err := config.Object[*Collector](cfg, KeyCollector)
	if err != nil {
		return nil, fmt.Errorf("vm: construct %s: %w", t.name, err)
	}
	if gc != nil && t == CollectorType {
		return nil, fmt.Errorf("vm: construct %s: a collector cannot be managed by a collector: %w",
			t.name, errcode.ObjectUnexpectedGcAttached)
	}

	mem, err := a.Realloc(nil, t.size)
	if err != nil {
		return nil, fmt.Errorf("vm: construct %s: %w", t.name, err)
	}
	obj, err := t.construct(cfg)
	if err != nil {
		_ = a.Free(mem)
		return nil, fmt.Errorf("vm: construct %s: %w", t.name, err)
	}
	if obj == nil {
		_ = a.Free(mem)
		return nil, fmt.Errorf("vm: construct %s: constructor returned nil: %w", t.name, errcode.InvalidState)
	}

	h := obj.ObjectHeader()
	h.typ, h.alloc, h.log, h.mem = t, a, log, mem
	h.detach()

	if gc != nil {
		if err := gc.Attach(obj); err != nil {
			if derr := destroy(obj); derr != nil {
				log.Warningf("vm: rollback of %s failed: %v", t.name, derr)
			}
			return nil, err
		}
	}
	return obj, nil
}

// Delete destroys a detached object. Objects owned by a collector can only
// be released by that collector's Recycle.
//
// The instance storage is freed even when the destructor fails; the
// destructor's error is still returned.
func Delete(obj Object) error {
	if obj == nil {
		return fmt.Errorf("vm: delete: nil object: %w", errcode.InvalidParameter)
	}
	h := obj.ObjectHeader()
	switch {
	case h.typ == nil:
		return fmt.Errorf("vm: delete: object already deleted: %w", errcode.InvalidParameter)
	case h.gc != nil:
		return fmt.Errorf("vm: delete %s at slot %d: %w", h.typ.name, h.slot, errcode.DeleteManagedObject)
	case h.static():
		return fmt.Errorf("vm: delete %s: static object: %w", h.typ.name, errcode.InvalidParameter)
	}
	return destroy(obj)
}

// destroy runs the destructor and releases the instance storage. It does
// not look at collector ownership.
func destroy(obj Object) error {
	h := obj.ObjectHeader()
	t := h.typ
	derr := t.destroy(obj)
	if derr != nil {
		derr = fmt.Errorf("vm: destroy %s: %w", t.name, derr)
	}
	var ferr error
	if h.alloc != nil && h.mem != nil {
		ferr = h.alloc.Free(h.mem)
	}
	h.typ = nil
	h.mem = nil
	h.detach()
	return errors.Join(derr, ferr)
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func typeOf(op string, obj Object) (*Type, error) {
	if obj == nil {
		return nil, fmt.Errorf("vm: %s: nil object: %w", op, errcode.InvalidParameter)
	}
	t := obj.ObjectHeader().typ
	if t == nil {
		return nil, fmt.Errorf("vm: %s: deleted object: %w", op, errcode.InvalidParameter)
	}
	return t, nil
}

// Copy dispatches to the type's copy slot.
func Copy(obj Object) (Object, error) {
	t, err := typeOf("copy", obj)
	if err != nil {
		return nil, err
	}
	return t.copy(obj)
}

// ToString dispatches to the type's to_string slot.
func ToString(obj Object) (string, error) {
	t, err := typeOf("to_string", obj)
	if err != nil {
		return "", err
	}
	return t.toString(obj)
}

// Doc dispatches to the type's get_doc slot.
func Doc(obj Object) (string, error) {
	t, err := typeOf("get_doc", obj)
	if err != nil {
		return "", err
	}
	return t.doc(obj)
}

// GetIterator dispatches to the type's get_iterator slot.
func GetIterator(obj Object) (Iterator, error) {
	t, err := typeOf("get_iterator", obj)
	if err != nil {
		return nil, err
	}
	return t.iterator(obj)
}

// ConfigOf rebuilds a configuration from obj's header: the same allocator,
// logger and, if attached, collector. Copy implementations use it to
// construct siblings under the same services.
func ConfigOf(obj Object) *config.Config {
	h := obj.ObjectHeader()
	cfg := config.New(h.alloc, h.log)
	if h.gc != nil {
		_ = cfg.SetObject(KeyCollector, h.gc)
	}
	return cfg
}
