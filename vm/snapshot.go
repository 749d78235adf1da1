package vm

import "github.com/chazu/esch/vm/dump"

// Snapshot records the current arena: every occupied slot with its type
// and the slots of the children its iterator reports. Children the
// collector does not own are left out, as they are during marking.
func (c *Collector) Snapshot() (*dump.Snapshot, error) {
	if err := c.usable("snapshot"); err != nil {
		return nil, err
	}
	s := &dump.Snapshot{
		Collector: c.id.String(),
		Capacity:  c.Capacity(),
		Live:      c.Live(),
		Free:      c.nfree,
		Growth:    c.growth,
		Nodes:     make([]dump.Node, 0, c.Live()),
	}
	for i, cl := range c.cells {
		if cl.obj == nil {
			continue
		}
		t := cl.obj.ObjectHeader().typ
		n := dump.Node{Slot: i, Type: t.name, Container: t.container}
		if t.container {
			it, err := GetIterator(cl.obj)
			if err != nil {
				c.log.Warningf("vm: collector %s: snapshot of slot %d: %v", c.short(), i, err)
			} else {
				Each(it, func(v Value) bool {
					if v.IsObject() {
						if ch := v.Object().ObjectHeader(); ch.gc == c {
							n.Children = append(n.Children, ch.slot)
						}
					}
					return true
				})
			}
		}
		s.Nodes = append(s.Nodes, n)
	}
	return s, nil
}
