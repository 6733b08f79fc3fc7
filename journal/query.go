package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

var ErrTradeNotFound = errors.New("trade not found")

var tradeColumns = []string{
	"trade_id", "instrument", "side", "quantity", "price", "notional",
	"fee", "realized", "position", "time", "reason",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Instrument,
		&rec.Side,
		&rec.Quantity,
		&rec.Price,
		&rec.Notional,
		&rec.Fee,
		&rec.Realized,
		&rec.Position,
		&rec.Time,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	query, args, err := j.sq.
		Select(tradeColumns...).
		From("trades").
		Where(squirrel.Eq{"trade_id": tradeID}).
		ToSql()
	if err != nil {
		return TradeRecord{}, err
	}

	rec, err := scanTrade(j.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("%w: %q", ErrTradeNotFound, tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// TradeFilter narrows ListTrades. Zero fields match everything.
type TradeFilter struct {
	Instrument string
	Start      time.Time // inclusive
	End        time.Time // exclusive
	Limit      uint64    // newest first when set
}

// ListTrades returns matching trades in time order.
func (j *SQLite) ListTrades(f TradeFilter) ([]TradeRecord, error) {
	b := j.sq.Select(tradeColumns...).From("trades")
	if f.Instrument != "" {
		b = b.Where(squirrel.Eq{"instrument": f.Instrument})
	}
	if !f.Start.IsZero() {
		b = b.Where(squirrel.GtOrEq{"time": f.Start.UTC()})
	}
	if !f.End.IsZero() {
		b = b.Where(squirrel.Lt{"time": f.End.UTC()})
	}
	if f.Limit > 0 {
		b = b.OrderBy("time DESC", "trade_id DESC").Limit(f.Limit)
	} else {
		b = b.OrderBy("time ASC", "trade_id ASC")
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if f.Limit > 0 {
		for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
	}
	return out, nil
}

// ListEquityBetween returns snapshots within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	query, args, err := j.sq.
		Select("time", "cash", "equity", "realized", "unrealized", "fees", "open").
		From("equity").
		Where(squirrel.GtOrEq{"time": start.UTC()}).
		Where(squirrel.Lt{"time": end.UTC()}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Cash, &e.Equity, &e.Realized, &e.Unrealized, &e.Fees, &e.Open); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary aggregates the trade log.
type Summary struct {
	Trades      int
	GrossProfit float64
	GrossLoss   float64
	Fees        float64
}

// ProfitFactor is gross profit over gross loss, zero without losses.
func (s Summary) ProfitFactor() float64 {
	if s.GrossLoss == 0 {
		return 0
	}
	return s.GrossProfit / s.GrossLoss
}

// Summarize aggregates trades for instrument, or all when empty.
func (j *SQLite) Summarize(instrument string) (Summary, error) {
	b := j.sq.
		Select(
			"COUNT(*)",
			"COALESCE(SUM(CASE WHEN realized > 0 THEN realized ELSE 0 END), 0)",
			"COALESCE(-SUM(CASE WHEN realized < 0 THEN realized ELSE 0 END), 0)",
			"COALESCE(SUM(fee), 0)",
		).
		From("trades")
	if instrument != "" {
		b = b.Where(squirrel.Eq{"instrument": instrument})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	err = j.db.QueryRow(query, args...).Scan(&s.Trades, &s.GrossProfit, &s.GrossLoss, &s.Fees)
	return s, err
}
