// Package types provides the built-in esch object types: vectors, pairs
// and lists, strings, integers and floats.
//
// Vectors and pairs are containers and expose their elements through the
// vm iterator protocol, which is how a collector discovers them. Strings
// and numbers are primitives.
//
// Every constructor takes a *config.Config. When the configuration
// carries a collector (vm.KeyCollector) the new object is attached to it
// and is freed by Recycle once unreachable; otherwise the caller owns the
// object and releases it with vm.Delete.
package types

import (
	"fmt"
	"unsafe"

	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/vm"
)

// valueSize is the accounted size of one stored element.
var valueSize = int(unsafe.Sizeof(vm.Value{}))

// Register adds every built-in type, including the collector type, to reg.
func Register(reg *vm.Registry) error {
	for _, t := range []*vm.Type{vm.CollectorType, VectorType, PairType, StringType, IntegerType, FloatType} {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("types: %w", err)
		}
	}
	return nil
}

// collectorOf returns the collector cfg attaches new objects to, if any.
func collectorOf(cfg *config.Config) (*vm.Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("types: nil config: %w", errcode.InvalidParameter)
	}
	gc, _, err := config.Object[*vm.Collector](cfg, vm.KeyCollector)
	return gc, err
}

// checkStorable rejects values a container owned by gc must not hold: the
// End marker, and objects managed by a different collector.
func checkStorable(gc *vm.Collector, v vm.Value) error {
	if v.IsEnd() {
		return fmt.Errorf("types: cannot store End: %w", errcode.BadValueType)
	}
	if !v.IsObject() {
		return nil
	}
	h := v.Object().ObjectHeader()
	if h.Type() == nil {
		return fmt.Errorf("types: cannot store a deleted object: %w", errcode.InvalidParameter)
	}
	if owner := h.Collector(); owner != nil && owner != gc {
		return fmt.Errorf("types: %s belongs to another collector: %w",
			h.Type().Name(), errcode.ObjectUnexpectedGcAttached)
	}
	return nil
}

// release deletes obj if nobody else owns it. Attached objects are left to
// their collector.
func release(obj vm.Object) {
	if obj != nil && !obj.ObjectHeader().Attached() {
		_ = vm.Delete(obj)
	}
}
