package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive) IDs, and all FK references within the batch are rewritten
// using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Scopes (depend on file_id and parent_scope_id; parents come first)
//  2. Bindings (depend on scope_id)
//  3. Occurrences (depend on scope_id and binding_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("fake id %d not committed yet", id)
		}
		return realID, nil
	}

	// 1. Scopes
	for _, scope := range batch.Scopes {
		if scope.ParentScopeID != nil {
			realID, err := remap(*scope.ParentScopeID)
			if err != nil {
				return fmt.Errorf("commit batch: scope %q parent: %w", scope.Path, err)
			}
			scope.ParentScopeID = &realID
		}
		realID, err := insertScope(tx, &scope)
		if err != nil {
			return fmt.Errorf("commit batch: scope %q: %w", scope.Path, err)
		}
		fakeToReal[scope.ID] = realID
	}

	// 2. Bindings
	for _, b := range batch.Bindings {
		if b.ScopeID, err = remap(b.ScopeID); err != nil {
			return fmt.Errorf("commit batch: binding %q: %w", b.Name, err)
		}
		realID, err := insertBinding(tx, &b)
		if err != nil {
			return fmt.Errorf("commit batch: binding %q: %w", b.Name, err)
		}
		fakeToReal[b.ID] = realID
	}

	// 3. Occurrences
	for _, o := range batch.Occurrences {
		if o.ScopeID, err = remap(o.ScopeID); err != nil {
			return fmt.Errorf("commit batch: occurrence %q: %w", o.Name, err)
		}
		if o.BindingID != nil {
			realID, err := remap(*o.BindingID)
			if err != nil {
				return fmt.Errorf("commit batch: occurrence %q binding: %w", o.Name, err)
			}
			o.BindingID = &realID
		}
		realID, err := insertOccurrence(tx, &o)
		if err != nil {
			return fmt.Errorf("commit batch: occurrence %q: %w", o.Name, err)
		}
		fakeToReal[o.ID] = realID
	}

	return tx.Commit()
}
