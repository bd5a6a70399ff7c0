package store

import "sync"

// BatchedStore buffers export inserts in memory using fake (negative) IDs,
// so that files can be analysed on worker goroutines while a single writer
// commits to SQLite.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	mu sync.Mutex

	Scopes      []Scope
	Bindings    []Binding
	Occurrences []Occurrence

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertScope(scope *Scope) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	scope.ID = fakeID
	b.Scopes = append(b.Scopes, *scope)
	return fakeID, nil
}

func (b *BatchedStore) InsertBinding(bind *Binding) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	bind.ID = fakeID
	b.Bindings = append(b.Bindings, *bind)
	return fakeID, nil
}

func (b *BatchedStore) InsertOccurrence(o *Occurrence) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	o.ID = fakeID
	b.Occurrences = append(b.Occurrences, *o)
	return fakeID, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Scopes) + len(b.Bindings) + len(b.Occurrences)
}
