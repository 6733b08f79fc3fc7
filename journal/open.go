package journal

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownType = errors.New("unknown journal type")

// Open builds the journal named by kind: none, csv or sqlite.
func Open(kind, tradesFile, equityFile, dbPath string) (Journal, error) {
	switch strings.ToLower(kind) {
	case "none", "":
		return Nop{}, nil
	case "csv":
		return NewCSV(tradesFile, equityFile)
	case "sqlite":
		return NewSQLite(dbPath)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
}
