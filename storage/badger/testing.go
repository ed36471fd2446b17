package badger

// NewMemoryStore creates an in-memory document store for tests.
// The returned cleanup function closes the backing database.
func NewMemoryStore() (*Store, func(), error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	store := NewStore(backend)
	return store, func() { _ = backend.Close() }, nil
}
