package store

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

var ErrUnknownKind = errors.New("unknown store kind")

// OpenPersister builds the persister named by kind. key separates the
// blobs of different environments sharing one database.
func OpenPersister(kind, path, dsn, key string) (Persister, error) {
	switch strings.ToLower(kind) {
	case KindFile, "":
		return NewFile(path), nil
	case KindSQLite:
		return NewSQLite(path, key)
	case KindPostgres:
		return NewPostgres(dsn, key)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
