package types

import (
	"errors"
	"testing"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/logging"
	"github.com/chazu/esch/vm"
)

// heap is a collector rooted at a vector, plus the detached services it
// was built from.
type heap struct {
	a    *alloc.Counted
	log  *logging.Recorder
	base *config.Config // allocator and logger only
	cfg  *config.Config // base plus the collector
	gc   *vm.Collector
	root *Vector
}

func newHeap(t *testing.T, slots int) *heap {
	t.Helper()
	h := &heap{a: alloc.New(), log: logging.NewRecorder()}
	h.base = config.New(h.a, h.log)

	root, err := NewVector(h.base)
	if err != nil {
		t.Fatalf("NewVector(root): %v", err)
	}
	h.root = root

	gcCfg := h.base.Clone()
	mustSet(t, gcCfg.SetObject(vm.KeyRoot, root))
	mustSet(t, gcCfg.SetInt(config.KeyInitialSlots, slots))
	gc, err := vm.NewCollector(gcCfg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	h.gc = gc
	h.cfg = h.base.Clone()
	mustSet(t, h.cfg.SetObject(vm.KeyCollector, gc))
	return h
}

func (h *heap) close(t *testing.T) {
	t.Helper()
	if err := h.gc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.a.Close(); err != nil {
		t.Fatalf("allocator: %v (stats %+v)", err, h.a.Stats())
	}
}

func (h *heap) recycle(t *testing.T) *vm.RecycleStats {
	t.Helper()
	stats, err := h.gc.Recycle()
	if err != nil {
		t.Fatalf("Recycle: %v", err)
	}
	if err := h.gc.Verify(); err != nil {
		t.Fatalf("Verify after recycle: %v", err)
	}
	return stats
}

// detached returns a configuration without a collector over a fresh
// allocator.
func detached() (*alloc.Counted, *config.Config) {
	a := alloc.New()
	return a, config.New(a, logging.Nop())
}

// limited is detached with an allocator capped at bytes.
func limited(bytes int64) (*alloc.Counted, *config.Config) {
	a := alloc.New(alloc.WithLimit(bytes))
	return a, config.New(a, logging.Nop())
}

func ints(ns ...int64) []vm.Value {
	out := make([]vm.Value, len(ns))
	for i, n := range ns {
		out[i] = vm.FromInt(n)
	}
	return out
}

func str(t *testing.T, obj vm.Object) string {
	t.Helper()
	s, err := vm.ToString(obj)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	return s
}

func mustSet(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
}

func mustDelete(t *testing.T, objs ...vm.Object) {
	t.Helper()
	for _, o := range objs {
		if err := vm.Delete(o); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
}

func balanced(t *testing.T, a *alloc.Counted) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("allocator: %v (stats %+v)", err, a.Stats())
	}
}

func wantCode(t *testing.T, err error, code errcode.Code) {
	t.Helper()
	if !errors.Is(err, code) {
		t.Fatalf("error = %v, want %v", err, code)
	}
}
