package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader  = []string{"trade_id", "instrument", "side", "quantity", "price", "notional", "fee", "realized", "position", "time", "reason"}
	equityHeader = []string{"time", "cash", "equity", "realized", "unrealized", "fees", "open"}
)

// CSVJournal appends to a trades file and an equity file. Headers are only
// written to new files so restarts keep appending.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, tw, err := openCSV(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openCSV(equityPath, equityHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	return &CSVJournal{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Instrument,
		t.Side,
		f(t.Quantity),
		f(t.Price),
		f(t.Notional),
		f(t.Fee),
		f(t.Realized),
		f(t.Position),
		t.Time.UTC().Format(time.RFC3339Nano),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.Realized),
		f(e.Unrealized),
		f(e.Fees),
		strconv.Itoa(e.Open),
	})
	if err != nil {
		return err
	}

	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	if err := j.ef.Close(); err != nil {
		return err
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 8, 64)
}
