// Package classify assigns every name occurrence of a scope tree exactly one
// semantic category and collects the result into a highlight set.
package classify

import (
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/pylang"
	"github.com/jward/shade/internal/scope"
)

// Options configures Classify.
type Options struct {
	// SelfToAttribute merges "self.name" (and "cls.name") inside a method
	// into one Attribute node spanning both tokens. The bare self token is
	// then not emitted on its own.
	SelfToAttribute bool
}

// Classify builds the highlight set of st.
func Classify(st *scope.Tree, opts Options) highlight.Set {
	set := make(highlight.Set, len(st.Occurrences))

	merged := make(map[scope.OccurrenceID]bool)
	if opts.SelfToAttribute {
		for i := range st.Occurrences {
			o := &st.Occurrences[i]
			if o.Role == scope.RoleAttribute && IsSelfAttribute(st, o.ID) {
				merged[o.Base] = true
			}
		}
	}

	for _, id := range st.InSourceOrder() {
		if merged[id] {
			continue
		}
		o := st.Occurrence(id)
		e := highlight.Entry{Category: Of(st, id), Range: o.Range, Name: o.Name}
		if opts.SelfToAttribute && o.Role == scope.RoleAttribute && merged[o.Base] {
			base := st.Occurrence(o.Base)
			e.Range = base.Range.Union(o.Range)
			e.Name = base.Name + "." + o.Name
		}
		set[KeyOf(st, id)] = e
	}
	return set
}

// KeyOf returns the structural identity of an occurrence.
func KeyOf(st *scope.Tree, id scope.OccurrenceID) highlight.Key {
	o := st.Occurrence(id)
	return highlight.Key{
		Scope:   st.Scope(o.Scope).Path,
		Role:    o.Role.String(),
		Name:    o.Name,
		Ordinal: o.Ordinal,
	}
}

// Of returns the category of one occurrence.
//
// Attributes are always Attribute. Other names are classified by where
// their binding lives relative to the occurrence: the same function scope
// gives Parameter, ParameterUnused, Self or Local; an enclosing non-module
// scope gives Free; the module gives Global or Imported. Unbound names are
// Builtin when the builtin namespace has them, else Unresolved. A binding
// always wins over a builtin of the same name.
func Of(st *scope.Tree, id scope.OccurrenceID) highlight.Category {
	o := st.Occurrence(id)
	if o.Role == scope.RoleAttribute {
		return highlight.Attribute
	}
	if o.Binding == scope.NoBinding {
		if pylang.IsBuiltin(o.Name) {
			return highlight.Builtin
		}
		return highlight.Unresolved
	}

	b := st.Binding(o.Binding)
	owner := st.Scope(b.Scope)
	switch {
	case owner.Kind == scope.Module:
		if b.Kinds.Has(scope.DeclImport) {
			return highlight.Imported
		}
		return highlight.Global
	case b.Scope != o.Scope:
		return highlight.Free
	case b.Kinds.Has(scope.DeclImport):
		return highlight.Imported
	case owner.Kind.IsFunction() && b.Kinds.Has(scope.DeclParam):
		switch {
		case b.Self:
			return highlight.Self
		case !b.Used:
			return highlight.ParameterUnused
		}
		return highlight.Parameter
	}
	return highlight.Local
}

// IsSelfAttribute reports whether attribute occurrence id is accessed
// directly on the self or cls parameter of the method it appears in.
func IsSelfAttribute(st *scope.Tree, id scope.OccurrenceID) bool {
	o := st.Occurrence(id)
	if o.Role != scope.RoleAttribute || o.Base == scope.NoOccurrence {
		return false
	}
	base := st.Occurrence(o.Base)
	if base.Binding == scope.NoBinding {
		return false
	}
	b := st.Binding(base.Binding)
	return b.Self && b.Scope == base.Scope
}
