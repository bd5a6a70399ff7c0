package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/risor-io/risor/object"

	"github.com/jward/shade/internal/analysis"
	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/span"
)

// Handle is the script-side view of an analysis. Scripts pass it back to
// the other host functions; its methods expose the scalar facts.
type Handle struct {
	a *analysis.Analysis
}

// Repaired reports whether the source had to be patched to parse.
func (h *Handle) Repaired() bool { return h.a.Repaired }

// LineCount returns the number of lines of the analysed source.
func (h *Handle) LineCount() int { return h.a.Lines.Count() }

// Source returns the analysed text.
func (h *Handle) Source() string { return string(h.a.Source) }

// SyntaxError returns the message of the recovered syntax error, or "".
func (h *Handle) SyntaxError() string {
	if h.a.Recovered == nil {
		return ""
	}
	return h.a.Recovered.Error()
}

func newHandle(a *analysis.Analysis) object.Object {
	p, err := object.NewProxy(&Handle{a: a})
	if err != nil {
		return object.Errorf("analyze: proxy error: %v", err)
	}
	return p
}

// makeAnalyzeFn creates the "analyze" host function.
//
// analyze(source) → analysis
func makeAnalyzeFn(opts config.Options) *object.Builtin {
	return object.NewBuiltin("analyze", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("analyze", 1, len(args))
		}
		src, err := stringArg(args[0])
		if err != nil {
			return object.Errorf("analyze: source %v", err)
		}
		return analyzeSource(ctx, "analyze", []byte(src), opts)
	})
}

// makeAnalyzeFileFn creates "analyze_file", which reads the source from
// disk.
//
// analyze_file(path) → analysis
func makeAnalyzeFileFn(opts config.Options) *object.Builtin {
	return object.NewBuiltin("analyze_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("analyze_file", 1, len(args))
		}
		path, err := stringArg(args[0])
		if err != nil {
			return object.Errorf("analyze_file: path %v", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("analyze_file: reading %s: %v", path, err)
		}
		return analyzeSource(ctx, "analyze_file", src, opts)
	})
}

func analyzeSource(ctx context.Context, fn string, src []byte, opts config.Options) object.Object {
	a, err := analysis.Analyze(ctx, src, opts)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return newHandle(a)
}

// analysisArg unwraps a Handle passed back by a script.
func analysisArg(fn string, obj object.Object) (*analysis.Analysis, error) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, fmt.Errorf("%s: expected analysis, got %s", fn, obj.Type())
	}
	h, ok := proxy.Interface().(*Handle)
	if !ok || h.a == nil {
		return nil, fmt.Errorf("%s: expected analysis, got %T", fn, proxy.Interface())
	}
	return h.a, nil
}

func stringArg(obj object.Object) (string, error) {
	s, ok := obj.(*object.String)
	if !ok {
		return "", fmt.Errorf("must be a string, not %s", obj.Type())
	}
	return s.Value(), nil
}

// intArg accepts an int, or a float without a fractional part.
func intArg(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		if f := v.Value(); f == math.Trunc(f) {
			return int64(f), nil
		}
	}
	return 0, fmt.Errorf("must be an integer, not %s", obj.Type())
}

func positionArgs(fn string, line, col object.Object) (span.Position, error) {
	l, err := intArg(line)
	if err != nil {
		return span.Position{}, fmt.Errorf("%s: line %v", fn, err)
	}
	c, err := intArg(col)
	if err != nil {
		return span.Position{}, fmt.Errorf("%s: col %v", fn, err)
	}
	return span.Position{Line: int(l), Col: int(c)}, nil
}

// makeNodesFn creates the "nodes" host function: the rendered highlight
// nodes in source order.
//
// nodes(a) → []map{name, category, scope, role, ordinal, line, col, end_line, end_col}
func makeNodesFn() *object.Builtin {
	return object.NewBuiltin("nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("nodes", 1, len(args))
		}
		a, err := analysisArg("nodes", args[0])
		if err != nil {
			return object.NewError(err)
		}
		items := a.Rendered().Sorted()
		results := make([]object.Object, 0, len(items))
		for _, it := range items {
			m := rangeMap(it.Range)
			m["name"] = object.NewString(it.Name)
			m["category"] = object.NewString(it.Category.String())
			m["scope"] = object.NewString(it.Key.Scope)
			m["role"] = object.NewString(it.Key.Role)
			m["ordinal"] = object.NewInt(int64(it.Key.Ordinal))
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// makeScopesFn creates the "scopes" host function.
//
// scopes(a) → []map{kind, name, path, parent, names, line, col, end_line, end_col}
func makeScopesFn() *object.Builtin {
	return object.NewBuiltin("scopes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scopes", 1, len(args))
		}
		a, err := analysisArg("scopes", args[0])
		if err != nil {
			return object.NewError(err)
		}
		st := a.Scopes
		results := make([]object.Object, 0, len(st.Scopes))
		for i := range st.Scopes {
			s := &st.Scopes[i]
			m := rangeMap(s.Range)
			m["kind"] = object.NewString(s.Kind.String())
			m["name"] = object.NewString(s.Name)
			m["path"] = object.NewString(s.Path)
			m["parent"] = object.Nil
			if i > 0 {
				m["parent"] = object.NewString(st.Scope(s.Parent).Path)
			}
			names := st.Names(s.ID)
			nameObjs := make([]object.Object, len(names))
			for j, n := range names {
				nameObjs[j] = object.NewString(n)
			}
			m["names"] = object.NewList(nameObjs)
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// makeMarkFn creates the "mark" host function: the ranges sharing the
// identity of the name at a position.
//
// mark(a, line, col) → []map{line, col, end_line, end_col}
func makeMarkFn() *object.Builtin {
	return object.NewBuiltin("mark", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("mark", 3, len(args))
		}
		a, err := analysisArg("mark", args[0])
		if err != nil {
			return object.NewError(err)
		}
		pos, err := positionArgs("mark", args[1], args[2])
		if err != nil {
			return object.NewError(err)
		}
		opts := a.Options().Navigate()
		opts.MarkOriginal = true
		ranges := navigate.Mark(a.Scopes, pos, opts)
		results := make([]object.Object, len(ranges))
		for i, r := range ranges {
			results[i] = object.NewMap(rangeMap(r))
		}
		return object.NewList(results)
	})
}

// makeRenameFn creates the "rename" host function. It does not modify
// the analysed text.
//
// rename(a, line, col, new_name) → []map{line, col, end_line, end_col, new_text}
func makeRenameFn() *object.Builtin {
	return object.NewBuiltin("rename", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 {
			return object.NewArgsError("rename", 4, len(args))
		}
		a, err := analysisArg("rename", args[0])
		if err != nil {
			return object.NewError(err)
		}
		pos, err := positionArgs("rename", args[1], args[2])
		if err != nil {
			return object.NewError(err)
		}
		name, err := stringArg(args[3])
		if err != nil {
			return object.Errorf("rename: new name %v", err)
		}
		edits, err := navigate.Rename(a.Scopes, pos, name)
		if err != nil {
			return object.Errorf("rename: %v", err)
		}
		results := make([]object.Object, len(edits))
		for i, e := range edits {
			m := rangeMap(e.Range)
			m["new_text"] = object.NewString(e.NewText)
			results[i] = object.NewMap(m)
		}
		return object.NewList(results)
	})
}

// makeDiffFn creates the "diff" host function: the operations that turn
// the rendered highlights of a into those of b.
//
// diff(a, b) → map{mode, ops: []map{op, category, name, line, col, end_line, end_col}}
func makeDiffFn() *object.Builtin {
	return object.NewBuiltin("diff", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("diff", 2, len(args))
		}
		prev, err := analysisArg("diff", args[0])
		if err != nil {
			return object.NewError(err)
		}
		next, err := analysisArg("diff", args[1])
		if err != nil {
			return object.NewError(err)
		}
		res := highlight.Diff(prev.Rendered(), next.Set, next.Options().Diff())
		ops := make([]object.Object, len(res.Ops))
		for i, op := range res.Ops {
			m := rangeMap(op.Range)
			m["op"] = object.NewString(op.Kind.String())
			m["category"] = object.NewString(op.Category.String())
			m["name"] = object.NewString(op.Name)
			ops[i] = object.NewMap(m)
		}
		return object.NewMap(map[string]object.Object{
			"mode": object.NewString(res.Mode.String()),
			"ops":  object.NewList(ops),
		})
	})
}

// makeJumpFn creates the "jump" host function.
//
// jump(a, kind, direction, line, col) → map{line, col} or nil
func makeJumpFn() *object.Builtin {
	return object.NewBuiltin("jump", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 5 {
			return object.NewArgsError("jump", 5, len(args))
		}
		a, err := analysisArg("jump", args[0])
		if err != nil {
			return object.NewError(err)
		}
		kind, err := stringArg(args[1])
		if err != nil {
			return object.Errorf("jump: kind %v", err)
		}
		dirName, err := stringArg(args[2])
		if err != nil {
			return object.Errorf("jump: direction %v", err)
		}
		dir, err := navigate.ParseDirection(dirName)
		if err != nil {
			return object.Errorf("jump: %v", err)
		}
		pos, err := positionArgs("jump", args[3], args[4])
		if err != nil {
			return object.NewError(err)
		}
		to, ok, err := navigate.Goto(a.Scopes, kind, dir, pos)
		if err != nil {
			return object.Errorf("jump: %v", err)
		}
		if !ok {
			return object.Nil
		}
		return object.NewMap(map[string]object.Object{
			"line": object.NewInt(int64(to.Line)),
			"col":  object.NewInt(int64(to.Col)),
		})
	})
}

func rangeMap(r span.Range) map[string]object.Object {
	return map[string]object.Object{
		"line":     object.NewInt(int64(r.Start.Line)),
		"col":      object.NewInt(int64(r.Start.Col)),
		"end_line": object.NewInt(int64(r.End.Line)),
		"end_col":  object.NewInt(int64(r.End.Col)),
	}
}

// logObject provides log.debug/info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) { l.logger.Debug(msg) }
func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }
