// Package scope builds the lexical scope tree of a Python module: nested
// module, function, lambda, class and comprehension scopes, the bindings
// declared in each, and every name occurrence resolved to the binding it
// refers to.
//
// Scopes, bindings and occurrences live in flat arenas on Tree and refer to
// each other by integer IDs, so the whole tree can be dropped at once when a
// buffer is re-analysed.
package scope

import (
	"fmt"
	"sort"

	"github.com/jward/shade/internal/span"
)

// ScopeID addresses a Scope in Tree.Scopes.
type ScopeID int32

// BindingID addresses a Binding in Tree.Bindings.
type BindingID int32

// OccurrenceID addresses an Occurrence in Tree.Occurrences.
type OccurrenceID int32

const (
	NoScope      ScopeID      = -1
	NoBinding    BindingID    = -1
	NoOccurrence OccurrenceID = -1
)

// Kind is the kind of a scope.
type Kind uint8

const (
	Module Kind = iota
	Function
	Class
	Comprehension
	Lambda
)

var kindNames = [...]string{"module", "function", "class", "comprehension", "lambda"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// IsFunction reports whether k is a function-like scope (def or lambda).
func (k Kind) IsFunction() bool { return k == Function || k == Lambda }

// DeclKind is a bit set of the ways a binding was declared.
type DeclKind uint8

const (
	DeclAssign DeclKind = 1 << iota
	DeclParam
	DeclImport
	DeclDef
	DeclGlobal
	DeclNonlocal
)

func (d DeclKind) Has(k DeclKind) bool { return d&k != 0 }

// Role is the syntactic role of a name occurrence.
type Role uint8

const (
	RoleUse Role = iota
	RoleBind
	RoleParam
	RoleAttribute
	RoleDecl // the name list of a global or nonlocal statement
)

var roleNames = [...]string{"use", "bind", "param", "attr", "decl"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", r)
}

// Scope is a lexical region with its own name-to-binding mapping.
type Scope struct {
	ID       ScopeID
	Kind     Kind
	Name     string // def or class name; empty for module, lambdas and comprehensions
	Parent   ScopeID
	Children []ScopeID
	Range    span.Range

	// Path identifies the scope structurally: the chain of kind:name#n
	// segments from the module down, where n counts earlier siblings with
	// the same kind and name. It survives edits that do not add or remove
	// a sibling scope before this one.
	Path string

	// SelfParam is "self" or "cls" when the scope is a method defined
	// directly in a class body whose first parameter carries that name.
	SelfParam string

	names    map[string]BindingID
	declared map[string]DeclKind
	kids     map[string]int
}

// Binding is the identity of one declared name within one scope.
type Binding struct {
	ID          BindingID
	Name        string // lookup name, after class-private mangling
	Scope       ScopeID
	Kinds       DeclKind
	Occurrences []OccurrenceID // sorted by range

	// Self marks the first parameter of a method named self or cls. This
	// is a naming convention, not type information.
	Self bool

	// Used is set when the binding has an occurrence other than its
	// parameter declaration.
	Used bool
}

// Occurrence is one concrete name token.
type Occurrence struct {
	ID    OccurrenceID
	Name  string // source text
	Key   string // lookup name (mangled inside classes)
	Range span.Range
	Scope ScopeID
	Role  Role

	// Binding is the resolved binding or NoBinding. Attribute occurrences
	// are never resolved.
	Binding BindingID

	// Kind is the declaration kind a bind or param occurrence contributes.
	Kind DeclKind

	// Base is, for attributes, the occurrence of the plain name the
	// attribute is accessed on (the x in x.name), else NoOccurrence.
	Base OccurrenceID

	// Defines is the scope a def or class name opens, else NoScope.
	Defines ScopeID

	// Ordinal counts earlier occurrences, in source order, with the same
	// scope, role and name.
	Ordinal int
}

// Tree is the result of Build.
type Tree struct {
	Scopes      []Scope
	Bindings    []Binding
	Occurrences []Occurrence

	byPos []OccurrenceID
}

// Root returns the module scope.
func (t *Tree) Root() *Scope { return &t.Scopes[0] }

// Scope returns the scope with the given ID.
func (t *Tree) Scope(id ScopeID) *Scope { return &t.Scopes[id] }

// Binding returns the binding with the given ID.
func (t *Tree) Binding(id BindingID) *Binding { return &t.Bindings[id] }

// Occurrence returns the occurrence with the given ID.
func (t *Tree) Occurrence(id OccurrenceID) *Occurrence { return &t.Occurrences[id] }

// Local returns the binding of name declared directly in scope s.
func (t *Tree) Local(s ScopeID, name string) (BindingID, bool) {
	id, ok := t.Scopes[s].names[name]
	return id, ok
}

// Names returns the names bound directly in scope s, sorted.
func (t *Tree) Names(s ScopeID) []string {
	names := make([]string, 0, len(t.Scopes[s].names))
	for name := range t.Scopes[s].names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InSourceOrder returns all occurrence IDs sorted by range.
func (t *Tree) InSourceOrder() []OccurrenceID { return t.byPos }

// OccurrenceAt returns the occurrence whose range contains pos.
func (t *Tree) OccurrenceAt(pos span.Position) (OccurrenceID, bool) {
	i := sort.Search(len(t.byPos), func(i int) bool {
		return pos.Less(t.Occurrences[t.byPos[i]].Range.Start)
	})
	if i == 0 {
		return NoOccurrence, false
	}
	id := t.byPos[i-1]
	if !t.Occurrences[id].Range.Contains(pos) {
		return NoOccurrence, false
	}
	return id, true
}

// EnclosingClass returns the nearest class scope at or above s, or NoScope.
func (t *Tree) EnclosingClass(s ScopeID) ScopeID {
	for ; s != NoScope; s = t.Scopes[s].Parent {
		if t.Scopes[s].Kind == Class {
			return s
		}
	}
	return NoScope
}

// InvariantError reports an inconsistent scope tree. It indicates a bug in
// the builder, never a problem with the analysed source.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "scope: invariant violated: " + e.Message
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// Validate checks the cross references of the arenas.
func (t *Tree) Validate() error {
	nScopes, nBindings, nOccs := len(t.Scopes), len(t.Bindings), len(t.Occurrences)
	if nScopes == 0 || t.Scopes[0].Kind != Module || t.Scopes[0].Parent != NoScope {
		return invariantf("missing module root")
	}
	for i := 1; i < nScopes; i++ {
		p := t.Scopes[i].Parent
		if p < 0 || int(p) >= nScopes || int(p) >= i {
			return invariantf("scope %d has parent %d", i, p)
		}
	}
	for i := range t.Bindings {
		b := &t.Bindings[i]
		if b.Scope < 0 || int(b.Scope) >= nScopes {
			return invariantf("binding %q references scope %d", b.Name, b.Scope)
		}
		for _, o := range b.Occurrences {
			if o < 0 || int(o) >= nOccs || t.Occurrences[o].Binding != b.ID {
				return invariantf("binding %q lists foreign occurrence %d", b.Name, o)
			}
		}
	}
	for i := range t.Occurrences {
		o := &t.Occurrences[i]
		if o.Scope < 0 || int(o.Scope) >= nScopes {
			return invariantf("occurrence %q references scope %d", o.Name, o.Scope)
		}
		if o.Binding != NoBinding && (o.Binding < 0 || int(o.Binding) >= nBindings) {
			return invariantf("occurrence %q references binding %d", o.Name, o.Binding)
		}
		if !o.Range.Valid() {
			return invariantf("occurrence %q has range %s", o.Name, o.Range)
		}
	}
	return nil
}
