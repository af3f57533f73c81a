package storage

import "fmt"

// NewStore builds an uninitialized store; callers must Init it. An empty kind
// selects DefaultStoreKind.
func NewStore(kind, sqlitePath string) (Store, error) {
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
