package types

import (
	"strings"

	"github.com/chazu/esch/vm"
)

// printer renders values in external notation. A container that is
// already being printed further up is written as #<cycle>.
type printer struct {
	b    strings.Builder
	path map[vm.Object]bool
}

func render(v vm.Value) string {
	p := &printer{path: make(map[vm.Object]bool)}
	p.value(v)
	return p.b.String()
}

func (p *printer) value(v vm.Value) {
	switch o := v.Object().(type) {
	case *Vector:
		p.vector(o)
	case *Pair:
		p.pair(o)
	default:
		p.b.WriteString(v.String())
	}
}

func (p *printer) enter(obj vm.Object) bool {
	if p.path[obj] {
		p.b.WriteString("#<cycle>")
		return false
	}
	p.path[obj] = true
	return true
}

func (p *printer) vector(v *Vector) {
	if !p.enter(v) {
		return
	}
	defer delete(p.path, v)

	p.b.WriteString("#(")
	for i, e := range v.elems {
		if i > 0 {
			p.b.WriteByte(' ')
		}
		p.value(e)
	}
	p.b.WriteByte(')')
}

// pair prints proper lists as (a b c) and everything else in dotted form.
func (p *printer) pair(head *Pair) {
	if !p.enter(head) {
		return
	}
	entered := []vm.Object{head}
	defer func() {
		for _, o := range entered {
			delete(p.path, o)
		}
	}()

	p.b.WriteByte('(')
	p.value(head.head)
	for cur := head; ; {
		tail := cur.tail
		if tail.IsNil() {
			break
		}
		if next, ok := tail.Object().(*Pair); ok && !p.path[next] {
			p.path[next] = true
			entered = append(entered, next)
			p.b.WriteByte(' ')
			p.value(next.head)
			cur = next
			continue
		}
		p.b.WriteString(" . ")
		p.value(tail)
		break
	}
	p.b.WriteByte(')')
}
