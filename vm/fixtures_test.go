package vm

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
	"github.com/chazu/esch/logging"
)

// ---------------------------------------------------------------------------
// Test object types
// ---------------------------------------------------------------------------

// node is a minimal container holding an arbitrary list of values.
type node struct {
	Header
	kids []Value
}

// leaf is a primitive carrying an integer.
type leaf struct {
	Header
	n int64
}

// brittle is a primitive whose destructor always fails.
type brittle struct {
	Header
	n int64
}

// opaque claims to be a container but cannot produce an iterator.
type opaque struct {
	Header
	kids []Value
}

var errBrittle = errors.New("brittle: destructor refused")

var nodeType = MustDefine(TypeSpec{
	Name:   "node",
	Size:   unsafe.Sizeof(node{}),
	New:    func(*config.Config) (Object, error) { return &node{}, nil },
	Delete: func(Object) error { return nil },
	Iterator: func(obj Object) (Iterator, error) {
		return NewSliceIterator(obj.(*node).kids), nil
	},
	Doc: StaticDoc("test container"),
})

var leafType = MustDefine(TypeSpec{
	Name:   "leaf",
	Size:   unsafe.Sizeof(leaf{}),
	New:    func(*config.Config) (Object, error) { return &leaf{}, nil },
	Delete: func(Object) error { return nil },
	ToString: func(obj Object) (string, error) {
		return "leaf", nil
	},
})

var brittleType = MustDefine(TypeSpec{
	Name:   "brittle",
	Size:   unsafe.Sizeof(brittle{}),
	New:    func(*config.Config) (Object, error) { return &brittle{}, nil },
	Delete: func(Object) error { return errBrittle },
})

var opaqueType = MustDefine(TypeSpec{
	Name:   "opaque",
	Size:   unsafe.Sizeof(opaque{}),
	New:    func(*config.Config) (Object, error) { return &opaque{}, nil },
	Delete: func(Object) error { return nil },
	Iterator: func(Object) (Iterator, error) {
		return nil, errcode.NotSupported
	},
})

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

type env struct {
	a    *alloc.Counted
	log  *logging.Recorder
	base *config.Config // allocator and logger only
	cfg  *config.Config // base plus the collector
	gc   *Collector
	root *node
}

type envOptions struct {
	slots    int
	growth   bool
	alloc    *alloc.Counted // nil means unlimited
	observer Observer
}

// newEnv builds a collector with a node root and the given arena settings.
func newEnv(t *testing.T, slots int, growth bool) *env {
	t.Helper()
	return buildEnv(t, envOptions{slots: slots, growth: growth})
}

func buildEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	e := &env{a: opts.alloc, log: logging.NewRecorder()}
	if e.a == nil {
		e.a = alloc.New()
	}
	e.base = config.New(e.a, e.log)
	e.root = mustConstruct(t, nodeType, e.base).(*node)

	gcCfg := e.base.Clone()
	mustSet(t, gcCfg.SetObject(KeyRoot, e.root))
	mustSet(t, gcCfg.SetInt(config.KeyInitialSlots, opts.slots))
	mustSet(t, gcCfg.SetBool(config.KeyGrowth, opts.growth))
	if opts.observer != nil {
		mustSet(t, gcCfg.SetObject(KeyObserver, opts.observer))
	}

	gc, err := NewCollector(gcCfg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	e.gc = gc
	e.cfg = e.base.Clone()
	mustSet(t, e.cfg.SetObject(KeyCollector, gc))
	return e
}

// close tears the collector down and checks the allocator is balanced.
func (e *env) close(t *testing.T) {
	t.Helper()
	if err := e.gc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.a.Close(); err != nil {
		t.Fatalf("allocator: %v (stats %+v)", err, e.a.Stats())
	}
}

func (e *env) node(t *testing.T, kids ...Value) *node {
	t.Helper()
	n := mustConstruct(t, nodeType, e.cfg).(*node)
	n.kids = kids
	return n
}

func (e *env) leaf(t *testing.T, v int64) *leaf {
	t.Helper()
	l := mustConstruct(t, leafType, e.cfg).(*leaf)
	l.n = v
	return l
}

func (e *env) warnings() []string {
	return e.log.Entries(logging.LevelWarning)
}

// keep appends objects to the root's children.
func (e *env) keep(objs ...Object) {
	for _, o := range objs {
		e.root.kids = append(e.root.kids, FromObject(o))
	}
}

// observerLog records every notification it receives.
type observerLog struct {
	recycles []RecycleStats
	grows    [][2]int
}

func (o *observerLog) ObserveRecycle(s RecycleStats) { o.recycles = append(o.recycles, s) }
func (o *observerLog) ObserveGrow(oldCap, newCap int) {
	o.grows = append(o.grows, [2]int{oldCap, newCap})
}

func mustConstruct(t *testing.T, typ *Type, cfg *config.Config) Object {
	t.Helper()
	obj, err := Construct(typ, cfg)
	if err != nil {
		t.Fatalf("Construct(%s): %v", typ.Name(), err)
	}
	return obj
}

func mustSet(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
}

func mustRecycle(t *testing.T, gc *Collector) *RecycleStats {
	t.Helper()
	stats, err := gc.Recycle()
	if err != nil {
		t.Fatalf("Recycle: %v", err)
	}
	if err := gc.Verify(); err != nil {
		t.Fatalf("Verify after recycle: %v", err)
	}
	return stats
}

func wantCode(t *testing.T, err error, want errcode.Code) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %s", err, want)
	}
}
