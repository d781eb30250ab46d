package storage

// Tuple is a single key/value pair produced by a scan.
type Tuple struct {
	Key   string
	Value []byte
}

// Backend is implemented by the foreign store.
type Backend interface {
	// CreateCollection returns the collection with the given name,
	// creating it when it does not exist yet.
	CreateCollection(name string) (BackendCollection, error)
}

// BackendCollection is one named key/value namespace in the foreign store.
type BackendCollection interface {
	// Get reports found=false with a nil error for absent keys.
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Iterate returns tuples whose key starts with prefix, in ascending key
	// order, or descending when reverse is set.
	Iterate(reverse bool, prefix string) BackendIterator
}

// BackendIterator yields tuples until ok is false.
// An error ends the iteration.
type BackendIterator interface {
	Next() (t Tuple, ok bool, err error)
}

// Closer is optionally implemented by iterators holding resources.
type Closer interface {
	Close() error
}
