package vm

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/chazu/esch/alloc"
	"github.com/chazu/esch/config"
	"github.com/chazu/esch/errcode"
)

// ---------------------------------------------------------------------------
// Collector: slot arena with stop-the-world mark-and-sweep
// ---------------------------------------------------------------------------

// DefaultInitialSlots is the arena capacity used when the configuration
// does not set gc:naive:initial_slots.
const DefaultInitialSlots = 4096

// freeEnd terminates the free list.
const freeEnd = -1

// RecycleStats holds statistics from a single recycle pass.
type RecycleStats struct {
	Freed     int // slots reclaimed, including those whose destructor failed
	Failed    int // destructor failures during sweep
	Live      int
	Capacity  int
	Duration  time.Duration
	Timestamp time.Time
}

// Observer is notified after every recycle pass and every arena growth.
type Observer interface {
	ObserveRecycle(stats RecycleStats)
	ObserveGrow(oldCap, newCap int)
}

// cell is one arena slot: it either holds an object or links to the next
// free slot.
type cell struct {
	obj  Object
	next int
}

var (
	cellSize       = int(unsafe.Sizeof(cell{}))
	stackEntrySize = int(unsafe.Sizeof(Object(nil)))
)

// arenaBlocks are the allocator reservations backing the cell array, the
// reach set and the traversal stack.
type arenaBlocks struct {
	cells, reach, stack *alloc.Block
}

// reserveArena reserves storage for n object slots plus the root cell.
func reserveArena(a alloc.Allocator, n int) (arenaBlocks, error) {
	var b arenaBlocks
	var err error
	if b.cells, err = a.Realloc(nil, (n+1)*cellSize); err != nil {
		return arenaBlocks{}, err
	}
	if b.reach, err = a.Realloc(nil, reachBytes(n+1)); err != nil {
		_ = a.Free(b.cells)
		return arenaBlocks{}, err
	}
	if b.stack, err = a.Realloc(nil, (n+1)*stackEntrySize); err != nil {
		_ = a.Free(b.cells)
		_ = a.Free(b.reach)
		return arenaBlocks{}, err
	}
	return b, nil
}

func (b arenaBlocks) release(a alloc.Allocator) error {
	return errors.Join(a.Free(b.cells), a.Free(b.reach), a.Free(b.stack))
}

// Collector owns a set of objects and frees the ones that are no longer
// reachable from its root. It is itself an object of CollectorType.
//
// The root occupies a dedicated cell, slot 0, for the collector's whole
// life; it is not counted in Capacity. Slots 1..Capacity() are either
// occupied or on the free list, so Live()+FreeCount() always equals
// Capacity(). A recycle pass never allocates through the allocator: the
// reach set and a traversal stack of Capacity()+1 entries are reserved up
// front and resized only when Attach grows the arena.
type Collector struct {
	Header

	id       uuid.UUID
	root     Object
	growth   bool
	observer Observer

	cells []cell
	free  int
	nfree int
	reach *ReachSet
	stack []Object
	arena arenaBlocks

	recycling bool
	closed    bool
	recycles  uint64
	last      *RecycleStats
}

// CollectorType is the type of every Collector.
var CollectorType *Type

func init() {
	CollectorType = MustDefine(TypeSpec{
		Name:     "collector",
		Size:     unsafe.Sizeof(Collector{}),
		New:      newCollector,
		Delete:   destroyCollector,
		ToString: collectorToString,
		Doc: StaticDoc("Owns attached objects in a slot arena and frees those " +
			"unreachable from its root on recycle."),
	})
}

// NewCollector constructs a collector from cfg. The root object is read
// from KeyRoot and must be a detached container.
func NewCollector(cfg *config.Config) (*Collector, error) {
	obj, err := Construct(CollectorType, cfg)
	if err != nil {
		return nil, err
	}
	return obj.(*Collector), nil
}

func newCollector(cfg *config.Config) (Object, error) {
	root, ok, err := config.Object[Object](cfg, KeyRoot)
	if err != nil {
		return nil, fmt.Errorf("vm: collector: root: %w", err)
	}
	if !ok || root == nil {
		return nil, fmt.Errorf("vm: collector: %w", errcode.GcRootMissing)
	}
	rh := root.ObjectHeader()
	switch {
	case rh.typ == nil:
		return nil, fmt.Errorf("vm: collector: root was deleted: %w", errcode.InvalidParameter)
	case rh.static():
		return nil, fmt.Errorf("vm: collector: root %q is a static object: %w", rh.typ.name, errcode.InvalidParameter)
	case !rh.typ.container:
		return nil, fmt.Errorf("vm: collector: root type %q: %w", rh.typ.name, errcode.GcRootNotContainer)
	case rh.gc != nil:
		return nil, fmt.Errorf("vm: collector: root already attached to collector %s: %w",
			rh.gc.short(), errcode.ObjectUnexpectedGcAttached)
	}

	n, err := cfg.IntOr(config.KeyInitialSlots, DefaultInitialSlots)
	if err != nil {
		return nil, fmt.Errorf("vm: collector: %w", err)
	}
	if n <= 0 {
		n = DefaultInitialSlots
	}
	growth, err := cfg.BoolOr(config.KeyGrowth, true)
	if err != nil {
		return nil, fmt.Errorf("vm: collector: %w", err)
	}
	observer, _, err := config.Object[Observer](cfg, KeyObserver)
	if err != nil {
		return nil, fmt.Errorf("vm: collector: observer: %w", err)
	}

	a := cfg.Allocator()
	blocks, err := reserveArena(a, n)
	if err != nil {
		return nil, fmt.Errorf("vm: collector: reserve %d slots: %w", n, err)
	}

	c := &Collector{
		id:       uuid.New(),
		root:     root,
		growth:   growth,
		observer: observer,
		cells:    make([]cell, n+1),
		free:     freeEnd,
		reach:    NewReachSet(n + 1),
		stack:    make([]Object, 0, n+1),
		arena:    blocks,
	}
	c.Header.alloc = a
	c.Header.log = cfg.Logger()

	for i := n; i >= 1; i-- {
		c.cells[i].next = c.free
		c.free = i
	}
	c.nfree = n

	c.cells[0] = cell{obj: root, next: freeEnd}
	rh.gc = c
	rh.slot = 0

	c.log.Infof("vm: collector %s: %d slots, growth=%t", c.short(), n, growth)
	return c, nil
}

func destroyCollector(obj Object) error {
	return obj.(*Collector).teardown()
}

func collectorToString(obj Object) (string, error) {
	c := obj.(*Collector)
	return fmt.Sprintf("#<collector %s %d/%d>", c.short(), c.Live(), c.Capacity()), nil
}

// Close tears the collector down: every owned object, the root included,
// is destroyed and the arena is released. Equivalent to Delete(c).
func (c *Collector) Close() error {
	return Delete(c)
}

func (c *Collector) short() string {
	return c.id.String()[:8]
}

func (c *Collector) usable(op string) error {
	if c.closed {
		return fmt.Errorf("vm: collector %s: %s: closed: %w", c.short(), op, errcode.InvalidState)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Attach
// ---------------------------------------------------------------------------

// Attach places obj under this collector's management. Attaching an object
// this collector already owns is a no-op.
func (c *Collector) Attach(obj Object) error {
	if obj == nil {
		return fmt.Errorf("vm: attach: nil object: %w", errcode.InvalidParameter)
	}
	if err := c.usable("attach"); err != nil {
		return err
	}
	h := obj.ObjectHeader()
	if h.typ == nil {
		return fmt.Errorf("vm: attach: deleted object: %w", errcode.InvalidParameter)
	}
	if h.gc == c {
		return nil
	}
	if h.gc != nil {
		return fmt.Errorf("vm: attach %s: owned by collector %s: %w",
			h.typ.name, h.gc.short(), errcode.ObjectUnexpectedGcAttached)
	}
	if _, ok := obj.(*Collector); ok {
		return fmt.Errorf("vm: attach: collector cannot be managed: %w", errcode.ObjectUnexpectedGcAttached)
	}
	if c.recycling {
		return fmt.Errorf("vm: collector %s: attach during recycle: %w", c.short(), errcode.InvalidState)
	}
	if h.static() {
		return fmt.Errorf("vm: attach %s: static object: %w", h.typ.name, errcode.InvalidParameter)
	}

	if c.free == freeEnd {
		if !c.growth {
			return fmt.Errorf("vm: collector %s: %d slots in use: %w", c.short(), c.Capacity(), errcode.ContainerFull)
		}
		if err := c.grow(); err != nil {
			return err
		}
	}

	i := c.free
	c.free = c.cells[i].next
	c.nfree--
	c.cells[i] = cell{obj: obj, next: freeEnd}
	h.gc = c
	h.slot = i
	return nil
}

// grow doubles the arena. The new reservations are made before anything
// is touched, so on failure the collector is unchanged.
func (c *Collector) grow() error {
	old := c.Capacity()
	n := old * 2
	blocks, err := reserveArena(c.alloc, n)
	if err != nil {
		return fmt.Errorf("vm: collector %s: grow %d -> %d slots: %w", c.short(), old, n, err)
	}

	// Chain the new slots old+1..n in ascending order ahead of the
	// current free list.
	cells := make([]cell, n+1)
	copy(cells, c.cells)
	for i := old + 1; i < n; i++ {
		cells[i].next = i + 1
	}
	cells[n].next = c.free
	c.free = old + 1
	c.nfree += n - old
	c.cells = cells

	c.reach.Grow(n + 1)
	c.stack = make([]Object, 0, n+1)

	if err := c.arena.release(c.alloc); err != nil {
		c.log.Warningf("vm: collector %s: releasing old arena: %v", c.short(), err)
	}
	c.arena = blocks

	c.log.Infof("vm: collector %s: grew %d -> %d slots", c.short(), old, n)
	if c.observer != nil {
		c.observer.ObserveGrow(old, n)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Recycle
// ---------------------------------------------------------------------------

// Recycle runs one mark-and-sweep pass and frees every owned object not
// reachable from the root. A failing destructor is logged and counted;
// the sweep carries on with the remaining garbage.
func (c *Collector) Recycle() (*RecycleStats, error) {
	if err := c.usable("recycle"); err != nil {
		return nil, err
	}
	if c.recycling {
		return nil, fmt.Errorf("vm: collector %s: recycle re-entered: %w", c.short(), errcode.InvalidState)
	}
	stats := c.recycle()
	return &stats, nil
}

func (c *Collector) recycle() RecycleStats {
	c.recycling = true
	defer func() { c.recycling = false }()
	start := time.Now()

	c.reach.ClearAll()
	for i := c.free; i != freeEnd; i = c.cells[i].next {
		c.reach.Mark(i)
	}
	if c.root != nil {
		c.mark()
	}

	stats := RecycleStats{Timestamp: start}
	for i := range c.cells {
		obj := c.cells[i].obj
		if obj == nil || c.reach.IsMarked(i) {
			continue
		}
		// The root cell is swept only at teardown and never joins the
		// free list.
		c.cells[i] = cell{next: freeEnd}
		if i != 0 {
			c.cells[i].next = c.free
			c.free = i
			c.nfree++
		}
		stats.Freed++

		obj.ObjectHeader().detach()
		if err := destroy(obj); err != nil {
			stats.Failed++
			c.log.Warningf("vm: collector %s: sweeping slot %d: %v", c.short(), i, err)
		}
	}

	stats.Live = c.Live()
	stats.Capacity = c.Capacity()
	stats.Duration = time.Since(start)

	c.recycles++
	c.last = &stats
	if stats.Freed == 0 {
		c.log.Warningf("vm: collector %s: recycle freed nothing (%d/%d slots live)",
			c.short(), stats.Live, stats.Capacity)
	} else {
		c.log.Debugf("vm: collector %s: freed %d, %d/%d slots live in %s",
			c.short(), stats.Freed, stats.Live, stats.Capacity, stats.Duration)
	}
	if c.observer != nil {
		c.observer.ObserveRecycle(stats)
	}
	return stats
}

// mark walks the graph depth-first from the root. Every pushed object is
// marked first, so each container is expanded at most once and the stack
// never exceeds its reserved capacity.
func (c *Collector) mark() {
	c.reach.Mark(0)
	c.stack = append(c.stack[:0], c.root)

	for len(c.stack) > 0 {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		it, err := GetIterator(top)
		if err != nil {
			c.log.Warningf("vm: collector %s: iterating slot %d: %v",
				c.short(), top.ObjectHeader().slot, err)
			continue
		}
		for v := it.Value(); !v.IsEnd(); v = it.Next() {
			if !v.IsObject() {
				continue
			}
			child := v.Object()
			ch := child.ObjectHeader()
			if ch.gc != c {
				c.log.Warningf("vm: collector %s: slot %d references an object it does not own",
					c.short(), top.ObjectHeader().slot)
				continue
			}
			if c.reach.IsMarked(ch.slot) {
				continue
			}
			c.reach.Mark(ch.slot)
			if ch.typ.container {
				c.stack = append(c.stack, child)
			}
		}
	}
	c.stack = c.stack[:0]
}

// teardown frees everything including the root, then the arena itself.
func (c *Collector) teardown() error {
	if c.closed {
		return nil
	}
	if c.recycling {
		return fmt.Errorf("vm: collector %s: teardown during recycle: %w", c.short(), errcode.InvalidState)
	}
	c.root = nil
	stats := c.recycle()
	if stats.Failed > 0 {
		c.log.Errorf("vm: collector %s: %d destructors failed during teardown", c.short(), stats.Failed)
	}

	err := c.arena.release(c.alloc)
	c.arena = arenaBlocks{}
	c.cells = nil
	c.stack = nil
	c.free = freeEnd
	c.nfree = 0
	c.closed = true
	if err != nil {
		return fmt.Errorf("vm: collector %s: release arena: %w", c.short(), err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// ID returns the collector's unique identifier.
func (c *Collector) ID() uuid.UUID { return c.id }

// Root returns the root object, or nil once closed.
func (c *Collector) Root() Object { return c.root }

// Capacity returns the number of object slots, excluding the root cell.
func (c *Collector) Capacity() int {
	if len(c.cells) == 0 {
		return 0
	}
	return len(c.cells) - 1
}

// Live returns the number of attached objects other than the root.
func (c *Collector) Live() int { return c.Capacity() - c.nfree }

func (c *Collector) FreeCount() int { return c.nfree }
func (c *Collector) Growth() bool { return c.growth }
func (c *Collector) Closed() bool { return c.closed }
func (c *Collector) RecycleCount() uint64 { return c.recycles }

// LastStats returns statistics from the most recent recycle pass, or nil
// if none has run.
func (c *Collector) LastStats() *RecycleStats {
	if c.last == nil {
		return nil
	}
	s := *c.last
	return &s
}

// Lookup returns the object occupying slot, if any.
func (c *Collector) Lookup(slot int) (Object, bool) {
	if slot < 0 || slot >= len(c.cells) {
		return nil, false
	}
	obj := c.cells[slot].obj
	return obj, obj != nil
}

// Verify checks the arena invariants: the free list is acyclic and holds
// only empty cells, occupied and free slots partition the arena, every
// occupant points back at its slot, and the root sits in slot 0.
func (c *Collector) Verify() error {
	if err := c.usable("verify"); err != nil {
		return err
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("vm: collector %s: %s: %w", c.short(), fmt.Sprintf(format, args...), errcode.InvalidState)
	}

	n := len(c.cells)
	walked := 0
	for i := c.free; i != freeEnd; i = c.cells[i].next {
		if i < 0 || i >= n {
			return bad("free list points outside the arena at %d", i)
		}
		if walked++; walked > n {
			return bad("free list has a cycle")
		}
		if c.cells[i].obj != nil {
			return bad("occupied slot %d is on the free list", i)
		}
		if i == 0 {
			return bad("root slot is on the free list")
		}
	}
	if walked != c.nfree {
		return bad("free list holds %d slots, count says %d", walked, c.nfree)
	}

	occupied := 0
	for i := range c.cells {
		obj := c.cells[i].obj
		if obj == nil {
			continue
		}
		occupied++
		h := obj.ObjectHeader()
		if h.gc != c || h.slot != i {
			return bad("slot %d occupant claims slot %d", i, h.slot)
		}
	}
	if occupied+walked != n {
		return bad("%d live + %d free != %d capacity", occupied-1, walked, n-1)
	}
	if c.cells[0].obj != c.root {
		return bad("slot 0 does not hold the root")
	}
	return nil
}
