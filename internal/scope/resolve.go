package scope

import (
	"sort"
)

// resolve attaches every occurrence to its binding.
//
// Bindings are created first: a bind or param occurrence binds in its own
// scope, or in the module under a global declaration. Names under a
// nonlocal declaration bind into the nearest enclosing function that binds
// them, which is only known once every plain binding exists. Reads are
// resolved last.
func (b *builder) resolve() {
	t := b.t
	var deferred, reads []OccurrenceID
	for i := range t.Occurrences {
		o := &t.Occurrences[i]
		switch o.Role {
		case RoleBind, RoleParam:
			d := t.Scopes[o.Scope].declared[o.Key]
			switch {
			case d.Has(DeclNonlocal):
				deferred = append(deferred, o.ID)
			case d.Has(DeclGlobal):
				b.attach(o, b.bindingIn(0, o.Key))
			default:
				b.attach(o, b.bindingIn(o.Scope, o.Key))
			}
		case RoleUse, RoleDecl:
			reads = append(reads, o.ID)
		}
	}
	for _, id := range deferred {
		o := &t.Occurrences[id]
		if bid := t.nonlocalTarget(o.Scope, o.Key); bid != NoBinding {
			b.attach(o, bid)
		}
	}
	for _, id := range reads {
		o := &t.Occurrences[id]
		if bid := t.lookup(o.Scope, o.Key); bid != NoBinding {
			b.attach(o, bid)
		}
	}

	byRange := func(ids []OccurrenceID) {
		sort.SliceStable(ids, func(i, j int) bool {
			return t.Occurrences[ids[i]].Range.Compare(t.Occurrences[ids[j]].Range) < 0
		})
	}
	for i := range t.Bindings {
		bd := &t.Bindings[i]
		byRange(bd.Occurrences)
		for _, o := range bd.Occurrences {
			if t.Occurrences[o].Role != RoleParam {
				bd.Used = true
				break
			}
		}
	}

	t.byPos = make([]OccurrenceID, len(t.Occurrences))
	for i := range t.Occurrences {
		t.byPos[i] = OccurrenceID(i)
	}
	byRange(t.byPos)

	type ordKey struct {
		scope ScopeID
		role  Role
		name  string
	}
	seen := make(map[ordKey]int)
	for _, id := range t.byPos {
		o := &t.Occurrences[id]
		k := ordKey{o.Scope, o.Role, o.Name}
		o.Ordinal = seen[k]
		seen[k]++
	}
}

// bindingIn returns the binding of key in scope s, creating it on first
// use.
func (b *builder) bindingIn(s ScopeID, key string) BindingID {
	sc := &b.t.Scopes[s]
	if id, ok := sc.names[key]; ok {
		return id
	}
	id := BindingID(len(b.t.Bindings))
	b.t.Bindings = append(b.t.Bindings, Binding{ID: id, Name: key, Scope: s})
	sc.names[key] = id
	return id
}

func (b *builder) attach(o *Occurrence, bid BindingID) {
	o.Binding = bid
	bd := &b.t.Bindings[bid]
	bd.Occurrences = append(bd.Occurrences, o.ID)
	bd.Kinds |= o.Kind
	if b.selfParams[o.ID] {
		bd.Self = true
	}
}

// lookup resolves a read of key in scope s by lexical scoping: the scope
// itself, then enclosing scopes outward. Class scopes are only visible from
// their own body.
func (t *Tree) lookup(s ScopeID, key string) BindingID {
	if id, done := t.lookupIn(s, key); done {
		return id
	}
	for p := t.Scopes[s].Parent; p != NoScope; p = t.Scopes[p].Parent {
		if t.Scopes[p].Kind == Class {
			continue
		}
		if id, done := t.lookupIn(p, key); done {
			return id
		}
	}
	return NoBinding
}

// lookupIn checks a single scope, honouring its declarations. done reports
// whether the search ends here, possibly without a binding.
func (t *Tree) lookupIn(s ScopeID, key string) (BindingID, bool) {
	sc := &t.Scopes[s]
	d := sc.declared[key]
	switch {
	case d.Has(DeclGlobal):
		if id, ok := t.Scopes[0].names[key]; ok {
			return id, true
		}
		return NoBinding, true
	case d.Has(DeclNonlocal):
		return t.nonlocalTarget(s, key), true
	}
	if id, ok := sc.names[key]; ok {
		return id, true
	}
	return NoBinding, false
}

// nonlocalTarget finds the binding a nonlocal declaration of key in s
// refers to: the nearest enclosing function scope binding it. Class and
// comprehension scopes are skipped and the module never qualifies.
func (t *Tree) nonlocalTarget(s ScopeID, key string) BindingID {
	for p := t.Scopes[s].Parent; p > 0; p = t.Scopes[p].Parent {
		sc := &t.Scopes[p]
		if !sc.Kind.IsFunction() {
			continue
		}
		d := sc.declared[key]
		switch {
		case d.Has(DeclNonlocal):
			return t.nonlocalTarget(p, key)
		case d.Has(DeclGlobal):
			return NoBinding
		}
		if id, ok := sc.names[key]; ok {
			return id
		}
	}
	return NoBinding
}
