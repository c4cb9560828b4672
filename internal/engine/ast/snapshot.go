package ast

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion changes whenever the node model does. Snapshots of another
// version are rejected, so their files are parsed again.
const SnapshotVersion = 2

// Snapshot is the plain-data form of a compilation unit tree. Parent links
// and builder references are left out and re-established on restore.
type Snapshot struct {
	Version   int         `json:"v,omitempty"`
	Kind      Kind        `json:"kind"`
	ID        string      `json:"id"`
	Image     string      `json:"image,omitempty"`
	Namespace string      `json:"ns,omitempty"`
	Flags     Flags       `json:"flags,omitempty"`
	Position  Position    `json:"pos"`
	Doc       string      `json:"doc,omitempty"`
	Checksum  string      `json:"checksum,omitempty"`
	Counter   int         `json:"counter,omitempty"`
	Children  []*Snapshot `json:"children,omitempty"`
}

// TakeSnapshot captures n and its subtree.
func TakeSnapshot(n Node) *Snapshot {
	s := &Snapshot{
		Kind:     n.Kind(),
		ID:       n.ID(),
		Image:    n.Image(),
		Position: n.Position(),
		Doc:      n.DocComment(),
	}
	switch x := n.(type) {
	case *Element:
		s.Flags = x.flags
	case *CompilationUnit:
		s.Version = SnapshotVersion
		s.Checksum = x.checksum
		s.Counter = x.counter
	case Type:
		s.Namespace = x.NamespaceName()
		s.Flags = x.Modifiers()
	case *Function:
		s.Namespace = x.nsName
		s.Flags = x.flags
	case *Method:
		s.Flags = x.flags
	}
	for _, child := range n.Children() {
		s.Children = append(s.Children, TakeSnapshot(child))
	}
	return s
}

func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Kind != KindCompilationUnit {
		return nil, fmt.Errorf("decode snapshot: root is %s, want %s", s.Kind, KindCompilationUnit)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("decode snapshot: version %d, want %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}

// RestoreUnit rebuilds a compilation unit from its snapshot, re-links parents,
// injects ctx into every node that resolves names and re-registers declared
// types and functions with ctx.
func RestoreUnit(s *Snapshot, ctx Context) (*CompilationUnit, error) {
	root, err := s.build()
	if err != nil {
		return nil, err
	}
	unit, ok := root.(*CompilationUnit)
	if !ok {
		return nil, fmt.Errorf("restore snapshot: root is %s", root.Kind())
	}
	unit.cached = true
	if err := Reattach(unit, ctx); err != nil {
		return nil, err
	}
	return unit, nil
}

// Reattach binds every node below unit to ctx and registers declarations.
func Reattach(unit *CompilationUnit, ctx Context) error {
	var err error
	Inspect(unit, func(n Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *Element:
			x.ctx = ctx
		case *Class:
			x.ctx, x.unit = ctx, unit
			if ctx != nil && !x.IsAnonymous() {
				err = ctx.RestoreClass(x)
			}
		case *Interface:
			x.ctx, x.unit = ctx, unit
			if ctx != nil {
				err = ctx.RestoreInterface(x)
			}
		case *Trait:
			x.ctx, x.unit = ctx, unit
			if ctx != nil {
				err = ctx.RestoreTrait(x)
			}
		case *Function:
			x.ctx, x.unit = ctx, unit
			if ctx != nil {
				err = ctx.RestoreFunction(x)
			}
		}
		return true
	})
	return err
}

func (s *Snapshot) build() (Node, error) {
	var n Node
	switch s.Kind {
	case KindCompilationUnit:
		u := NewCompilationUnit(s.ID, s.Image)
		u.checksum, u.counter = s.Checksum, s.Counter
		n = u
	case KindClass:
		c := NewClass(s.Namespace, s.Image)
		c.modifiers = s.Flags
		n = c
	case KindInterface:
		i := NewInterface(s.Namespace, s.Image)
		i.modifiers = s.Flags
		n = i
	case KindTrait:
		t := NewTrait(s.Namespace, s.Image)
		t.modifiers = s.Flags
		n = t
	case KindFunction:
		f := NewFunction(s.Namespace, s.Image)
		f.flags = s.Flags
		n = f
	case KindMethod:
		m := NewMethod(s.Image)
		m.flags = s.Flags
		n = m
	case KindInvalid:
		return nil, fmt.Errorf("restore snapshot: node %q has no kind", s.ID)
	default:
		e := NewElement(s.Kind, s.Image)
		e.flags = s.Flags
		n = e
	}
	n.SetID(s.ID)
	n.SetPosition(s.Position)
	n.SetDocComment(s.Doc)
	for _, cs := range s.Children {
		child, err := cs.build()
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}
