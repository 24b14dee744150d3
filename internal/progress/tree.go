// Package progress models hierarchical task progress: leaf tasks expose
// mutable counters, groups aggregate their children as a weighted sum, and
// every counter mutation propagates synchronously to the attached listener.
package progress

import (
	"fmt"
	"sync"
)

// Node is one entry in the progress tree.
type Node interface {
	Description() string
	Completed() float64
	Total() float64

	setParent(g *Group)
	parentGroup() *Group
}

// Task is a leaf node with mutable completed/total counters. The
// description is fixed at construction; Fail and SetCount only decorate it.
type Task struct {
	mu        sync.Mutex
	desc      string
	completed float64
	total     float64
	failed    bool
	count     int
	hasCount  bool

	parent   *Group
	listener func()
}

func NewTask(desc string) *Task {
	return &Task{desc: desc}
}

func (t *Task) Description() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.desc
	if t.failed {
		s += " ✗"
	}
	if t.hasCount {
		s += fmt.Sprintf(" (%d)", t.count)
	}
	return s
}

func (t *Task) Completed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *Task) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// SetTotal sets the expected amount of work.
func (t *Task) SetTotal(total float64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
	t.notify()
}

// Add increments the completed counter.
func (t *Task) Add(delta float64) {
	t.mu.Lock()
	t.completed += delta
	t.mu.Unlock()
	t.notify()
}

// SetCompleted sets the completed counter.
func (t *Task) SetCompleted(completed float64) {
	t.mu.Lock()
	t.completed = completed
	t.mu.Unlock()
	t.notify()
}

// Done marks the task finished, forcing a sane total for tasks that never
// learned their workload.
func (t *Task) Done() {
	t.mu.Lock()
	if t.total <= 0 {
		t.total = 1
	}
	t.completed = t.total
	t.mu.Unlock()
	t.notify()
}

// Fail decorates the description with a failure mark.
func (t *Task) Fail() {
	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()
	t.notify()
}

// SetCount annotates the description with a result count.
func (t *Task) SetCount(n int) {
	t.mu.Lock()
	t.count = n
	t.hasCount = true
	t.mu.Unlock()
	t.notify()
}

func (t *Task) setParent(g *Group)  { t.parent = g }
func (t *Task) parentGroup() *Group { return t.parent }

func (t *Task) notify() {
	notifyUp(t)
}

// notifyUp walks to the root and fires its listener, if attached.
func notifyUp(n Node) {
	for {
		p := n.parentGroup()
		if p == nil {
			break
		}
		n = p
	}
	if root, ok := n.(*Group); ok {
		root.mu.Lock()
		listener := root.listener
		root.mu.Unlock()
		if listener != nil {
			listener()
		}
	}
}

// Ponderation weighs a child's contribution to its group's aggregate.
type Ponderation func(Node) float64

// Group aggregates its children. Completed and total are derived, never
// stored. The tree structure is fixed at construction; only leaf counters
// move afterwards.
type Group struct {
	mu       sync.Mutex
	desc     string
	children []Node
	ponder   Ponderation
	// calibrate normalizes each child to a 0..1 fraction before applying
	// its weight, so heterogeneous workloads compose into one coherent
	// parent percentage.
	calibrate  bool
	expandable bool

	parent   *Group
	listener func()
}

type GroupOption func(*Group)

// WithPonderation weighs children through a callback.
func WithPonderation(p Ponderation) GroupOption {
	return func(g *Group) { g.ponder = p }
}

// WithWeights weighs the given children explicitly; unlisted children weigh 1.
func WithWeights(weights map[Node]float64) GroupOption {
	return func(g *Group) {
		g.ponder = func(n Node) float64 {
			if w, ok := weights[n]; ok {
				return w
			}
			return 1
		}
	}
}

// Calibrated normalizes each child's contribution to a 0..1 fraction.
func Calibrated() GroupOption {
	return func(g *Group) { g.calibrate = true }
}

// Expandable makes the children share the group's display surface.
func Expandable() GroupOption {
	return func(g *Group) { g.expandable = true }
}

// NewGroup builds a group over already-constructed children. Trees are
// assembled bottom-up and only start reporting once Attach wires a listener
// at the root.
func NewGroup(desc string, children []Node, opts ...GroupOption) *Group {
	g := &Group{desc: desc, children: children}
	for _, opt := range opts {
		opt(g)
	}
	for _, c := range children {
		c.setParent(g)
	}
	return g
}

// Attach wires the update listener; call it once, on the root, after the
// whole tree is built. Every subsequent leaf mutation invokes the listener
// synchronously.
func (g *Group) Attach(listener func()) {
	g.mu.Lock()
	g.listener = listener
	g.mu.Unlock()
	if listener != nil {
		listener()
	}
}

func (g *Group) Description() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.desc
}

// Children returns the group's direct children.
func (g *Group) Children() []Node {
	return g.children
}

// IsExpandable reports whether the children share this group's display surface.
func (g *Group) IsExpandable() bool {
	return g.expandable
}

func (g *Group) Completed() float64 {
	sum := 0.0
	for _, c := range g.children {
		completed := c.Completed()
		if g.calibrate {
			if total := c.Total(); total > 0 {
				completed /= total
			}
		}
		sum += completed * g.weight(c)
	}
	return sum
}

func (g *Group) Total() float64 {
	sum := 0.0
	for _, c := range g.children {
		unit := 1.0
		if !g.calibrate {
			if unit = c.Total(); unit <= 0 {
				unit = 1
			}
		}
		sum += unit * g.weight(c)
	}
	return sum
}

func (g *Group) weight(c Node) float64 {
	if g.ponder == nil {
		return 1
	}
	return g.ponder(c)
}

func (g *Group) setParent(p *Group)  { g.parent = p }
func (g *Group) parentGroup() *Group { return g.parent }
