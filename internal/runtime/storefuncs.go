package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/shade/internal/store"
)

// Host functions over an index database. The indexed_* functions return
// rows shaped by the export schema; db_query is for ad-hoc reads.

// makeIndexedFilesFn creates "indexed_files".
//
// indexed_files() → []map{path, lines, repaired, syntax_error}
func makeIndexedFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("indexed_files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("indexed_files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("indexed_files: %v", err)
		}
		out := make([]object.Object, 0, len(files))
		for _, f := range files {
			out = append(out, object.NewMap(map[string]object.Object{
				"path":         object.NewString(f.Path),
				"lines":        object.NewInt(int64(f.LineCount)),
				"repaired":     object.NewBool(f.Repaired),
				"syntax_error": object.NewString(f.SyntaxError),
			}))
		}
		return object.NewList(out)
	})
}

// makeIndexedNodesFn creates "indexed_nodes": the stored occurrences of
// one file in source order. Unindexed paths yield nil.
//
// indexed_nodes(path) → []map{name, category, role, bound, line, col, end_line, end_col}
func makeIndexedNodesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("indexed_nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("indexed_nodes", 1, len(args))
		}
		path, err := stringArg(args[0])
		if err != nil {
			return object.Errorf("indexed_nodes: path %v", err)
		}
		f, err := s.FileByPath(path)
		if err != nil {
			return object.Errorf("indexed_nodes: %v", err)
		}
		if f == nil {
			return object.Nil
		}
		occs, err := s.OccurrencesByFile(f.ID)
		if err != nil {
			return object.Errorf("indexed_nodes: %v", err)
		}
		out := make([]object.Object, 0, len(occs))
		for _, o := range occs {
			m := map[string]object.Object{
				"name":     object.NewString(o.Name),
				"category": object.NewString(o.Category),
				"role":     object.NewString(o.Role),
				"bound":    object.NewBool(o.BindingID != nil),
				"line":     object.NewInt(int64(o.StartLine)),
				"col":      object.NewInt(int64(o.StartCol)),
				"end_line": object.NewInt(int64(o.EndLine)),
				"end_col":  object.NewInt(int64(o.EndCol)),
			}
			out = append(out, object.NewMap(m))
		}
		return object.NewList(out)
	})
}

// makeIndexedSummaryFn creates "indexed_summary".
//
// indexed_summary() → map{category: count}
func makeIndexedSummaryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("indexed_summary", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("indexed_summary", 0, len(args))
		}
		counts, err := s.CategoryCounts()
		if err != nil {
			return object.Errorf("indexed_summary: %v", err)
		}
		m := make(map[string]object.Object, len(counts))
		for cat, n := range counts {
			m[cat] = object.NewInt(int64(n))
		}
		return object.NewMap(m)
	})
}

// makeDBQueryFn creates "db_query", which runs one read-only statement
// with positional parameters.
//
// db_query(sql, args...) → []map
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		query, err := stringArg(args[0])
		if err != nil {
			return object.Errorf("db_query: sql %v", err)
		}
		if err := checkReadOnly(query); err != nil {
			return object.Errorf("db_query: %v", err)
		}
		params, err := queryParams(args[1:])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		rows, err := s.DB().QueryContext(ctx, query, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		out, err := rowMaps(rows)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(out)
	})
}

// checkReadOnly accepts a single SELECT or WITH statement.
func checkReadOnly(query string) error {
	q := strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return fmt.Errorf("empty statement")
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
	default:
		return fmt.Errorf("only SELECT or WITH statements are allowed, got %s", fields[0])
	}
	if strings.Contains(q, ";") {
		return fmt.Errorf("only one statement is allowed")
	}
	return nil
}

func queryParams(args []object.Object) ([]any, error) {
	params := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *object.Int:
			params[i] = v.Value()
		case *object.Float:
			params[i] = v.Value()
		case *object.String:
			params[i] = v.Value()
		case *object.Bool:
			params[i] = v.Value()
		case *object.NilType:
			params[i] = nil
		default:
			return nil, fmt.Errorf("parameter %d: unsupported type %s", i+1, arg.Type())
		}
	}
	return params, nil
}

// rowMaps converts every row to a map keyed by column name.
func rowMaps(rows *sql.Rows) ([]object.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []object.Object{}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m := make(map[string]object.Object, len(cols))
		for i, col := range cols {
			m[col] = columnValue(values[i])
		}
		out = append(out, object.NewMap(m))
	}
	return out, rows.Err()
}

// columnValue maps the types go-sqlite3 scans into Risor objects.
// Timestamps become RFC 3339 strings.
func columnValue(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case string:
		return object.NewString(val)
	case []byte:
		return object.NewString(string(val))
	case time.Time:
		return object.NewString(val.Format(time.RFC3339))
	}
	return object.NewString(fmt.Sprint(v))
}
