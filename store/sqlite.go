package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLitePersister stores the blob as a single row keyed by environment.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

func NewSQLite(path, key string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLitePersister{db: db, key: key}, nil
}

func (p *SQLitePersister) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM state WHERE key = ?`, p.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

func (p *SQLitePersister) Save(ctx context.Context, data []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO state (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.key, data, time.Now().UTC(),
	)
	return err
}

func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
