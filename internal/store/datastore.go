package store

// DataStore is the interface for export-phase writes. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for parallel indexing)
// implement it.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertScope(scope *Scope) (int64, error)
	InsertBinding(b *Binding) (int64, error)
	InsertOccurrence(o *Occurrence) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
