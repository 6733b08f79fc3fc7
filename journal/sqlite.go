package journal

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	query, args, err := j.sq.
		Insert("trades").
		Columns("trade_id", "instrument", "side", "quantity", "price", "notional",
			"fee", "realized", "position", "time", "reason").
		Values(t.TradeID, t.Instrument, t.Side, t.Quantity, t.Price, t.Notional,
			t.Fee, t.Realized, t.Position, t.Time.UTC(), t.Reason).
		ToSql()
	if err != nil {
		return fmt.Errorf("build trade insert: %w", err)
	}

	_, err = j.db.Exec(query, args...)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	query, args, err := j.sq.
		Insert("equity").
		Columns("time", "cash", "equity", "realized", "unrealized", "fees", "open").
		Values(e.Time.UTC(), e.Cash, e.Equity, e.Realized, e.Unrealized, e.Fees, e.Open).
		ToSql()
	if err != nil {
		return fmt.Errorf("build equity insert: %w", err)
	}

	_, err = j.db.Exec(query, args...)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
