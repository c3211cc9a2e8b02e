// Package axtest provides an in-memory accessibility tree for tests.
package axtest

import (
	"sync"
	"time"

	"github.com/atinylittleshell/cmdk/internal/ax"
)

// Node is one element of a fake accessibility tree.
type Node struct {
	Attrs    map[string]string
	Children []*Node
	// Refs holds single-element attributes such as AXFocusedWindow.
	Refs map[string]*Node
	// Lists holds element-array attributes other than AXChildren.
	Lists map[string][]*Node
	// ReadErrors fails reads of the named attribute with the given code.
	ReadErrors map[string]ax.Code
	// SetErrors fails writes of the named attribute with the given code.
	SetErrors map[string]ax.Code

	parent *Node
	writes map[string]bool
}

// New returns a node with the given role and children.
func New(role string, children ...*Node) *Node {
	return &Node{
		Attrs:    map[string]string{ax.AttrRole: role},
		Children: children,
	}
}

// WithValue sets AXValue and returns n.
func (n *Node) WithValue(value string) *Node {
	n.Attrs[ax.AttrValue] = value
	return n
}

// WithTitle sets AXTitle and returns n.
func (n *Node) WithTitle(title string) *Node {
	n.Attrs[ax.AttrTitle] = title
	return n
}

// WithRef sets a single-element attribute and returns n.
func (n *Node) WithRef(attr string, target *Node) *Node {
	if n.Refs == nil {
		n.Refs = map[string]*Node{}
	}
	n.Refs[attr] = target
	return n
}

// WithList sets an element-array attribute and returns n.
func (n *Node) WithList(attr string, items ...*Node) *Node {
	if n.Lists == nil {
		n.Lists = map[string][]*Node{}
	}
	n.Lists[attr] = items
	return n
}

// FailRead makes reads of attr fail with code and returns n.
func (n *Node) FailRead(attr string, code ax.Code) *Node {
	if n.ReadErrors == nil {
		n.ReadErrors = map[string]ax.Code{}
	}
	n.ReadErrors[attr] = code
	return n
}

// FailSet makes writes of attr fail with code and returns n.
func (n *Node) FailSet(attr string, code ax.Code) *Node {
	if n.SetErrors == nil {
		n.SetErrors = map[string]ax.Code{}
	}
	n.SetErrors[attr] = code
	return n
}

func (n *Node) link(seen map[*Node]bool) {
	if seen[n] {
		return
	}
	seen[n] = true
	for _, child := range n.Children {
		child.parent = n
		child.link(seen)
	}
	for _, ref := range n.Refs {
		ref.link(seen)
	}
	for _, items := range n.Lists {
		for _, item := range items {
			item.link(seen)
		}
	}
}

// System is a fake ax.System that counts handle opens and releases.
type System struct {
	mu       sync.Mutex
	apps     map[int]*Node
	trusted  bool
	opened   int
	released int
	timeouts []time.Duration
}

func NewSystem() *System {
	return &System{apps: map[int]*Node{}}
}

// AddApp registers root as the application element for pid.
func (s *System) AddApp(pid int, root *Node) {
	root.link(map[*Node]bool{})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[pid] = root
}

func (s *System) SetTrusted(trusted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted = trusted
}

func (s *System) Application(pid int) (ax.Element, error) {
	s.mu.Lock()
	root, ok := s.apps[pid]
	s.mu.Unlock()
	if !ok {
		return nil, &ax.Error{Op: "open", Code: ax.CodeInvalidUIElement}
	}
	return s.newElement(root), nil
}

func (s *System) Trusted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trusted
}

func (s *System) RequestTrust(bool) bool {
	return s.Trusted()
}

// Opened is the number of handles created so far.
func (s *System) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Released is the number of handles closed so far.
func (s *System) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Outstanding is the number of handles not yet closed.
func (s *System) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.released
}

// Timeouts lists every messaging timeout applied to a handle.
func (s *System) Timeouts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.timeouts...)
}

// Written reports the last value written to attr on n.
func (s *System) Written(n *Node, attr string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := n.writes[attr]
	return v, ok
}

func (s *System) newElement(n *Node) *element {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &element{sys: s, node: n}
}

type element struct {
	sys    *System
	node   *Node
	closed bool
}

func (e *element) readError(op, attr string) error {
	if e.closed {
		return ax.ErrReleased
	}
	if code, ok := e.node.ReadErrors[attr]; ok {
		return &ax.Error{Op: op, Attr: attr, Code: code}
	}
	return nil
}

func (e *element) String(attr string) (string, error) {
	if err := e.readError("copy", attr); err != nil {
		return "", err
	}
	value, ok := e.node.Attrs[attr]
	if !ok {
		return "", &ax.Error{Op: "copy", Attr: attr, Code: ax.CodeAttributeUnsupported}
	}
	return value, nil
}

func (e *element) Element(attr string) (ax.Element, error) {
	if err := e.readError("copy", attr); err != nil {
		return nil, err
	}
	var target *Node
	if attr == ax.AttrParent {
		target = e.node.parent
	} else {
		target = e.node.Refs[attr]
	}
	if target == nil {
		return nil, &ax.Error{Op: "copy", Attr: attr, Code: ax.CodeNoValue}
	}
	return e.sys.newElement(target), nil
}

func (e *element) Elements(attr string) ([]ax.Element, error) {
	if err := e.readError("copy", attr); err != nil {
		return nil, err
	}
	var items []*Node
	if attr == ax.AttrChildren {
		items = e.node.Children
	} else {
		var ok bool
		items, ok = e.node.Lists[attr]
		if !ok {
			return nil, &ax.Error{Op: "copy", Attr: attr, Code: ax.CodeAttributeUnsupported}
		}
	}
	out := make([]ax.Element, 0, len(items))
	for _, item := range items {
		out = append(out, e.sys.newElement(item))
	}
	return out, nil
}

func (e *element) SetBool(attr string, value bool) error {
	if e.closed {
		return ax.ErrReleased
	}
	if code, ok := e.node.SetErrors[attr]; ok {
		return &ax.Error{Op: "set", Attr: attr, Code: code}
	}
	e.sys.mu.Lock()
	defer e.sys.mu.Unlock()
	if e.node.writes == nil {
		e.node.writes = map[string]bool{}
	}
	e.node.writes[attr] = value
	return nil
}

func (e *element) SetTimeout(d time.Duration) error {
	if e.closed {
		return ax.ErrReleased
	}
	e.sys.mu.Lock()
	defer e.sys.mu.Unlock()
	e.sys.timeouts = append(e.sys.timeouts, d)
	return nil
}

func (e *element) Retain() ax.Element {
	return e.sys.newElement(e.node)
}

func (e *element) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.sys.mu.Lock()
	defer e.sys.mu.Unlock()
	e.sys.released++
}
