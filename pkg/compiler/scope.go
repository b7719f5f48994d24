package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// GlobalScope is the name of the root scope.
const GlobalScope = "global"

// Scope is one lexical namespace of variable bindings.
type Scope struct {
	Name     string
	Parent   *Scope
	bindings map[string]Value
}

// Declare binds name to v in this scope. It reports whether an existing
// binding was overwritten.
func (s *Scope) Declare(name string, v Value) bool {
	_, existed := s.bindings[name]
	s.bindings[name] = v
	return existed
}

// Lookup finds name in this scope, then in its ancestors if parents is set.
func (s *Scope) Lookup(name string, parents bool) (Value, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.bindings[name]; ok {
			return v, true
		}
		if !parents {
			break
		}
	}
	return Value{}, false
}

func (s *Scope) Exists(name string, parents bool) bool {
	_, ok := s.Lookup(name, parents)
	return ok
}

// Remove drops name from this scope only.
func (s *Scope) Remove(name string) bool {
	if _, ok := s.bindings[name]; !ok {
		return false
	}
	delete(s.bindings, name)
	return true
}

// Names returns the names bound directly in this scope, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScopeTable owns every scope created during a compilation. Scope names are
// unique across the table; scopes are never destroyed.
type ScopeTable struct {
	scopes  map[string]*Scope
	order   []*Scope
	current *Scope
}

func NewScopeTable() *ScopeTable {
	t := &ScopeTable{scopes: make(map[string]*Scope)}
	root, _ := t.OpenChild(GlobalScope, nil)
	t.current = root
	return t
}

// OpenChild creates a scope named name under parent. The name must not be
// used by any other scope in the table.
func (t *ScopeTable) OpenChild(name string, parent *Scope) (*Scope, error) {
	if _, ok := t.scopes[name]; ok {
		return nil, failf(ErrDuplicateScope, name, "scope already exists")
	}
	s := &Scope{Name: name, Parent: parent, bindings: make(map[string]Value)}
	t.scopes[name] = s
	t.order = append(t.order, s)
	return s, nil
}

// ChildName derives the name of the scope opened for a definition inside
// parent.
func ChildName(parent *Scope, name string) string {
	if parent == nil {
		return name
	}
	return parent.Name + "." + name
}

func (t *ScopeTable) Current() *Scope { return t.current }

func (t *ScopeTable) Root() *Scope { return t.scopes[GlobalScope] }

func (t *ScopeTable) SetCurrent(s *Scope) { t.current = s }

// Get returns the scope registered under name.
func (t *ScopeTable) Get(name string) (*Scope, bool) {
	s, ok := t.scopes[name]
	return s, ok
}

func (t *ScopeTable) Len() int { return len(t.order) }

// String returns a deterministically ordered dump of the table.
func (t *ScopeTable) String() string {
	var sb strings.Builder
	for _, s := range t.order {
		parent := "-"
		if s.Parent != nil {
			parent = s.Parent.Name
		}
		marker := ""
		if s == t.current {
			marker = " *"
		}
		fmt.Fprintf(&sb, "Scope %s (parent: %s)%s\n", s.Name, parent, marker)
		names := s.Names()
		if len(names) == 0 {
			sb.WriteString("  (empty)\n")
			continue
		}
		for _, name := range names {
			v := s.bindings[name]
			fmt.Fprintf(&sb, "  %-20s  %-4s %d\n", name, v.Kind, v.Payload)
		}
	}
	return sb.String()
}
