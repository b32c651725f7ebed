package storage

import (
	"sort"
	"strings"

	"imascore/internal/types"
)

// Struct is one level of a data object tree. Fields are keyed by their path
// relative to the struct ("a/b/c"); nested structures that are not arrays
// are flattened into the key.
type Struct struct {
	Fields map[string]*Node
}

// Node is either a Leaf or an AOS.
type Node struct {
	Leaf *Leaf
	AOS  *AOS
}

// Leaf is a stored data field.
type Leaf struct {
	Data     *types.Buffer
	Timebase string
}

// AOS is an array of structures. A non-empty Timebase makes it time
// dependent: element i then holds the i-th time slice.
type AOS struct {
	Timebase string
	Elements []*Struct
}

func NewStruct() *Struct {
	return &Struct{Fields: make(map[string]*Node)}
}

func (s *Struct) Leaf(path string) (*Leaf, bool) {
	n, ok := s.Fields[path]
	if !ok || n.Leaf == nil {
		return nil, false
	}
	return n.Leaf, true
}

func (s *Struct) SetLeaf(path string, l *Leaf) {
	s.Fields[path] = &Node{Leaf: l}
}

func (s *Struct) AOS(path string) (*AOS, bool) {
	n, ok := s.Fields[path]
	if !ok || n.AOS == nil {
		return nil, false
	}
	return n.AOS, true
}

func (s *Struct) SetAOS(path string, a *AOS) {
	s.Fields[path] = &Node{AOS: a}
}

// Delete removes path and every field below it. An empty path clears the
// struct. It returns the number of removed fields.
func (s *Struct) Delete(path string) int {
	if path == "" {
		n := len(s.Fields)
		s.Fields = make(map[string]*Node)
		return n
	}
	removed := 0
	prefix := path + "/"
	for k := range s.Fields {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(s.Fields, k)
			removed++
		}
	}
	return removed
}

// Paths returns the field keys in sorted order.
func (s *Struct) Paths() []string {
	paths := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

func (s *Struct) Empty() bool { return len(s.Fields) == 0 }

// Clone returns a deep copy.
func (s *Struct) Clone() *Struct {
	c := NewStruct()
	for k, n := range s.Fields {
		switch {
		case n.Leaf != nil:
			c.SetLeaf(k, &Leaf{Data: n.Leaf.Data.Clone(), Timebase: n.Leaf.Timebase})
		case n.AOS != nil:
			c.SetAOS(k, n.AOS.Clone())
		}
	}
	return c
}

func (a *AOS) Clone() *AOS {
	c := &AOS{Timebase: a.Timebase, Elements: make([]*Struct, len(a.Elements))}
	for i, e := range a.Elements {
		if e == nil {
			c.Elements[i] = NewStruct()
			continue
		}
		c.Elements[i] = e.Clone()
	}
	return c
}
