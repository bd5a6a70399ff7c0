// Package shade provides semantic, scope-aware highlighting for Python
// source, built on tree-sitter. Where a syntax highlighter colours tokens,
// shade colours names by what they refer to: locals, globals, parameters
// (used or not), free variables, imports, builtins, self, attributes and
// names that resolve to nothing.
//
// # Pipeline
//
// Every run goes through three stages:
//
//  1. Parse: tree-sitter parses the buffer. When the text has a syntax
//     error and tolerate_syntax_errors is on, a few line-level repairs are
//     tried so that highlighting survives half-typed code.
//
//  2. Scope: the tree is walked into a tree of scopes (module, class,
//     function, lambda, comprehension) with the bindings and occurrences of
//     every name, following Python's resolution rules for global,
//     nonlocal and class bodies.
//
//  3. Classify: each occurrence gets a highlight category. The result is a
//     Set keyed by name and position, diffed against what the host has
//     rendered so that only changes are sent.
//
// # Usage
//
// Hosts implement [Buffer] and [Renderer], create an [Engine] and forward
// buffer events to it:
//
//	e := shade.New(renderer, shade.WithOptions(opts))
//	defer e.Shutdown()
//
//	e.Open(id, buf)
//	_, err := e.Dispatch(ctx, id, shade.CmdEnable)
//	...
//	e.TextChanged(id)  // debounced, runs in the background
//	e.CursorMoved(id)  // marks the name under the cursor
//
// Runs for outdated text are cancelled and their results dropped, so the
// renderer always sees results in edit order.
//
// # Offline use
//
// [Analyze] runs the pipeline once. An [Indexer] exports the analyses of a
// whole tree into SQLite, where [Query] answers reference and category
// questions per file.
package shade
