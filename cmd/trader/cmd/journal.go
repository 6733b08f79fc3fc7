package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query fills and equity snapshots recorded by a sqlite journal.

Subcommands:
  trade  - Show one fill by id
  today  - List today's fills
  day    - List fills on a specific day
  list   - List the newest fills

Examples:
  trader journal trade 01J8Z...
  trader journal day 2024-01-15 -i BTCUSDT
  trader journal list -n 20`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Show one fill",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List today's fills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDay(cmd, time.Now().Format("2006-01-02"))
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List fills on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDay(cmd, args[0])
	},
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest fills",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var (
	journalDBPath     string
	journalInstrument string
	journalLimit      uint64
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd, journalTodayCmd, journalDayCmd, journalListCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./journal.sqlite", "path to SQLite journal DB")
	journalCmd.PersistentFlags().StringVarP(&journalInstrument, "instrument", "i", "", "only this instrument handle")
	journalListCmd.Flags().Uint64VarP(&journalLimit, "limit", "n", 20, "number of fills")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	printTrades(cmd.OutOrStdout(), []journal.TradeRecord{rec})
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	return queryTrades(cmd, journal.TradeFilter{Instrument: journalInstrument, Limit: journalLimit})
}

func listDay(cmd *cobra.Command, day string) error {
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return queryTrades(cmd, journal.TradeFilter{Instrument: journalInstrument, Start: start, End: end})
}

func queryTrades(cmd *cobra.Command, f journal.TradeFilter) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTrades(f)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func printTrades(out io.Writer, recs []journal.TradeRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no trades")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tID\tINSTRUMENT\tSIDE\tQTY\tPRICE\tFEE\tREALIZED\tPOSITION\tREASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.8g\t%.8g\t%.4f\t%.2f\t%.8g\t%s\n",
			r.Time.Local().Format("2006-01-02 15:04:05"), r.TradeID, r.Instrument, r.Side,
			r.Quantity, r.Price, r.Fee, r.Realized, r.Position, r.Reason)
	}
	w.Flush()
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
