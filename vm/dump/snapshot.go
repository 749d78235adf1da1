// Package dump describes a point-in-time picture of a collector's arena
// and encodes it as canonical CBOR.
//
// A snapshot records, for each occupied slot, the type name and the slots
// of the children the object's iterator reported. It carries no object
// payloads, so it can be compared across runs and fed to offline tools.
package dump

import "sort"

// Node is one occupied arena slot.
type Node struct {
	Slot      int    `cbor:"1,keyasint"`
	Type      string `cbor:"2,keyasint"`
	Container bool   `cbor:"3,keyasint"`
	Children  []int  `cbor:"4,keyasint,omitempty"`
}

// Snapshot is the arena of one collector. Nodes are ordered by slot.
type Snapshot struct {
	Collector string `cbor:"1,keyasint"` // collector UUID
	Capacity  int    `cbor:"2,keyasint"`
	Live      int    `cbor:"3,keyasint"`
	Free      int    `cbor:"4,keyasint"`
	Growth    bool   `cbor:"5,keyasint"`
	Nodes     []Node `cbor:"6,keyasint"`
}

// RootSlot is the slot the root always occupies.
const RootSlot = 0

// Node returns the node for slot, if the slot was occupied.
func (s *Snapshot) Node(slot int) (Node, bool) {
	i := sort.Search(len(s.Nodes), func(i int) bool { return s.Nodes[i].Slot >= slot })
	if i < len(s.Nodes) && s.Nodes[i].Slot == slot {
		return s.Nodes[i], true
	}
	return Node{}, false
}

// Reachable returns the sorted slots reachable from the root over the
// recorded edges. Only containers are expanded.
func (s *Snapshot) Reachable() []int {
	root, ok := s.Node(RootSlot)
	if !ok {
		return nil
	}
	seen := map[int]bool{RootSlot: true}
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.Children {
			if seen[c] {
				continue
			}
			child, ok := s.Node(c)
			if !ok {
				continue
			}
			seen[c] = true
			if child.Container {
				stack = append(stack, child)
			}
		}
	}
	return sortedKeys(seen)
}

// Garbage returns the sorted occupied slots that are not reachable: what
// the next recycle pass would free.
func (s *Snapshot) Garbage() []int {
	live := make(map[int]bool)
	for _, slot := range s.Reachable() {
		live[slot] = true
	}
	var out []int
	for _, n := range s.Nodes {
		if !live[n.Slot] {
			out = append(out, n.Slot)
		}
	}
	return out
}

// TypeCounts returns the number of occupied slots per type name.
func (s *Snapshot) TypeCounts() map[string]int {
	out := make(map[string]int)
	for _, n := range s.Nodes {
		out[n.Type]++
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
