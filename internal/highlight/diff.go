package highlight

import (
	"fmt"
	"sort"

	"github.com/jward/shade/internal/span"
)

// DefaultFullThreshold is the operation count above which Diff switches to
// Full mode.
const DefaultFullThreshold = 1000

// Mode tells the renderer how to apply a Result.
type Mode uint8

const (
	// Incremental: apply Ops on top of the previous state.
	Incremental Mode = iota
	// Full: clear every highlight, then apply Ops (all adds).
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// OpKind is Add or Remove.
type OpKind uint8

const (
	Remove OpKind = iota
	Add
)

func (k OpKind) String() string {
	if k == Add {
		return "add"
	}
	return "remove"
}

func (k OpKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Op adds or removes one highlighted node.
type Op struct {
	Kind     OpKind     `json:"op"`
	Key      Key        `json:"key"`
	Category Category   `json:"category"`
	Range    span.Range `json:"range"`
	Name     string     `json:"name"`
}

func (o Op) String() string {
	return fmt.Sprintf("%s %s %s %s", o.Kind, o.Category, o.Range, o.Name)
}

// Options configures Diff.
type Options struct {
	// Excluded categories are dropped from the next set before diffing.
	Excluded []Category

	// FullThreshold switches to Full mode when the incremental operation
	// count exceeds it. Zero means DefaultFullThreshold; negative disables
	// the switch.
	FullThreshold int

	// AlwaysFull bypasses incremental diffing.
	AlwaysFull bool

	// ViewportFirst and ViewportLast (1-based, inclusive) give the visible
	// lines. Operations touching them sort first within their group. Zero
	// means no viewport.
	ViewportFirst, ViewportLast int
}

// Result is the output of Diff.
type Result struct {
	Mode Mode `json:"mode"`
	Ops  []Op `json:"ops"`

	// Extent is the smallest range enclosing every changed entry, old and
	// new ranges alike. It is zero when nothing changed.
	Extent span.Range `json:"extent"`
}

// Empty reports whether applying r is a no-op.
func (r Result) Empty() bool { return r.Mode == Incremental && len(r.Ops) == 0 }

// Counts returns the number of add and remove operations.
func (r Result) Counts() (adds, removes int) {
	for _, op := range r.Ops {
		if op.Kind == Add {
			adds++
		} else {
			removes++
		}
	}
	return adds, removes
}

// Diff computes the operations turning prev into next (minus the excluded
// categories). prev must be the state as rendered, that is, already
// filtered.
//
// Entries are matched by key. A key only in prev is removed, a key only in
// next is added, and a key whose range or category changed is removed and
// re-added.
func Diff(prev, next Set, opts Options) Result {
	next = next.Without(opts.Excluded)
	if opts.AlwaysFull {
		return full(next, opts)
	}

	var removes, adds []Op
	for k, old := range prev {
		cur, ok := next[k]
		if ok && cur == old {
			continue
		}
		removes = append(removes, op(Remove, k, old))
		if ok {
			adds = append(adds, op(Add, k, cur))
		}
	}
	for k, cur := range next {
		if _, ok := prev[k]; !ok {
			adds = append(adds, op(Add, k, cur))
		}
	}

	threshold := opts.FullThreshold
	if threshold == 0 {
		threshold = DefaultFullThreshold
	}
	if threshold > 0 && len(removes)+len(adds) > threshold {
		return full(next, opts)
	}

	sortOps(removes, opts)
	sortOps(adds, opts)
	r := Result{Mode: Incremental, Ops: append(removes, adds...)}
	for _, o := range r.Ops {
		r.Extent = r.Extent.Union(o.Range)
	}
	return r
}

func full(next Set, opts Options) Result {
	r := Result{Mode: Full, Ops: make([]Op, 0, len(next))}
	for k, e := range next {
		r.Ops = append(r.Ops, op(Add, k, e))
		r.Extent = r.Extent.Union(e.Range)
	}
	sortOps(r.Ops, opts)
	return r
}

func op(kind OpKind, k Key, e Entry) Op {
	return Op{Kind: kind, Key: k, Category: e.Category, Range: e.Range, Name: e.Name}
}

func sortOps(ops []Op, opts Options) {
	visible := func(o Op) bool {
		return opts.ViewportFirst > 0 && o.Range.OverlapsLines(opts.ViewportFirst, opts.ViewportLast)
	}
	sort.Slice(ops, func(i, j int) bool {
		if vi, vj := visible(ops[i]), visible(ops[j]); vi != vj {
			return vi
		}
		if c := ops[i].Range.Compare(ops[j].Range); c != 0 {
			return c < 0
		}
		return ops[i].Key.String() < ops[j].Key.String()
	})
}

// Apply is the reference renderer: it applies r to state and returns the
// resulting state. state is not modified.
func Apply(state Set, r Result) Set {
	out := make(Set, len(state))
	if r.Mode == Incremental {
		for k, e := range state {
			out[k] = e
		}
	}
	for _, o := range r.Ops {
		switch o.Kind {
		case Remove:
			delete(out, o.Key)
		case Add:
			out[o.Key] = Entry{Category: o.Category, Range: o.Range, Name: o.Name}
		}
	}
	return out
}
