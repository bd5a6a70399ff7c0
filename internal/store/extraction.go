package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// --- File operations ---

const fileCols = "id, path, hash, line_count, repaired, syntax_error, last_indexed"

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, line_count, repaired, syntax_error, last_indexed) VALUES (?, ?, ?, ?, ?, ?)",
		f.Path, f.Hash, f.LineCount, f.Repaired, f.SyntaxError, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFileStatus records the outcome of a file's latest analysis.
func (s *Store) UpdateFileStatus(fileID int64, repaired bool, syntaxError string) error {
	_, err := s.db.Exec("UPDATE files SET repaired = ?, syntax_error = ? WHERE id = ?", repaired, syntaxError, fileID)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return nil
}

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Hash, &f.LineCount, &f.Repaired, &f.SyntaxError, &f.LastIndexed)
	return f, err
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Scope operations ---

const scopeCols = "id, file_id, kind, name, path, start_line, start_col, end_line, end_col, parent_scope_id"

func (s *Store) InsertScope(scope *Scope) (int64, error) {
	id, err := insertScope(s.db, scope)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	scope.ID = id
	return id, nil
}

func insertScope(db execer, scope *Scope) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO scopes (file_id, kind, name, path, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.FileID, scope.Kind, scope.Name, scope.Path,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol, scope.ParentScopeID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc := &Scope{}
		if err := rows.Scan(&sc.ID, &sc.FileID, &sc.Kind, &sc.Name, &sc.Path,
			&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// --- Binding operations ---

func (s *Store) InsertBinding(b *Binding) (int64, error) {
	id, err := insertBinding(s.db, b)
	if err != nil {
		return 0, fmt.Errorf("insert binding: %w", err)
	}
	b.ID = id
	return id, nil
}

func insertBinding(db execer, b *Binding) (int64, error) {
	res, err := db.Exec(
		"INSERT INTO bindings (file_id, scope_id, name, kinds, is_self, used) VALUES (?, ?, ?, ?, ?, ?)",
		b.FileID, b.ScopeID, b.Name, b.Kinds, b.IsSelf, b.Used,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) BindingsByFile(fileID int64) ([]*Binding, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, scope_id, name, kinds, is_self, used FROM bindings WHERE file_id = ? ORDER BY id", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("bindings by file: %w", err)
	}
	defer rows.Close()
	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.FileID, &b.ScopeID, &b.Name, &b.Kinds, &b.IsSelf, &b.Used); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// --- Occurrence operations ---

const occurrenceCols = `id, file_id, scope_id, binding_id, name, role, category,
	start_line, start_col, end_line, end_col, ordinal`

func (s *Store) InsertOccurrence(o *Occurrence) (int64, error) {
	id, err := insertOccurrence(s.db, o)
	if err != nil {
		return 0, fmt.Errorf("insert occurrence: %w", err)
	}
	o.ID = id
	return id, nil
}

func insertOccurrence(db execer, o *Occurrence) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO occurrences (file_id, scope_id, binding_id, name, role, category,
			start_line, start_col, end_line, end_col, ordinal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.FileID, o.ScopeID, o.BindingID, o.Name, o.Role, o.Category,
		o.StartLine, o.StartCol, o.EndLine, o.EndCol, o.Ordinal,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) queryOccurrences(query string, args ...any) ([]*Occurrence, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var occs []*Occurrence
	for rows.Next() {
		o := &Occurrence{}
		if err := rows.Scan(&o.ID, &o.FileID, &o.ScopeID, &o.BindingID, &o.Name, &o.Role, &o.Category,
			&o.StartLine, &o.StartCol, &o.EndLine, &o.EndCol, &o.Ordinal); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}

const occurrenceOrder = " ORDER BY file_id, start_line, start_col"

func (s *Store) OccurrencesByFile(fileID int64) ([]*Occurrence, error) {
	return s.queryOccurrences("SELECT "+occurrenceCols+" FROM occurrences WHERE file_id = ?"+occurrenceOrder, fileID)
}

func (s *Store) OccurrencesByBinding(bindingID int64) ([]*Occurrence, error) {
	return s.queryOccurrences("SELECT "+occurrenceCols+" FROM occurrences WHERE binding_id = ?"+occurrenceOrder, bindingID)
}

// OccurrencesByCategory returns the occurrences of one category across all
// files.
func (s *Store) OccurrencesByCategory(category string) ([]*Occurrence, error) {
	return s.queryOccurrences("SELECT "+occurrenceCols+" FROM occurrences WHERE category = ?"+occurrenceOrder, category)
}

// UnboundByName returns the unresolved or builtin occurrences of name in a
// file, excluding attributes.
func (s *Store) UnboundByName(fileID int64, name string) ([]*Occurrence, error) {
	return s.queryOccurrences(
		"SELECT "+occurrenceCols+` FROM occurrences
		 WHERE file_id = ? AND name = ? AND binding_id IS NULL AND role != 'attr'`+occurrenceOrder,
		fileID, name,
	)
}

// OccurrencesAt returns the occurrences of a file whose half-open range
// contains (line, col).
func (s *Store) OccurrencesAt(fileID int64, line, col int) ([]*Occurrence, error) {
	return s.queryOccurrences(
		"SELECT "+occurrenceCols+` FROM occurrences
		 WHERE file_id = ? AND start_line <= ? AND end_line >= ?
		   AND (start_line < ? OR start_col <= ?)
		   AND (end_line > ? OR end_col > ?)`+occurrenceOrder,
		fileID, line, line,
		line, col,
		line, col,
	)
}

// CategoryCounts returns the number of occurrences per category across all
// files.
func (s *Store) CategoryCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT category, COUNT(*) FROM occurrences GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}
