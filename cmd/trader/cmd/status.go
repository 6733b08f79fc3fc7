package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted positions and account totals",
	Long: `Print the books persisted for the configured environment without
contacting any venue. Positions are valued at their last cached mark.

Example:
  trader status -f trader.yaml`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusConfigPath string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusConfigPath, "file", "f", "", "path to config file (required)")
	statusCmd.MarkFlagRequired("file")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(statusConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cmd.Context(), cfg, "", false, logger.NewNop())
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	meta := st.Meta()
	fmt.Fprintf(out, "Environment: %s (session %s, created %s)\n\n",
		meta.Environment, meta.SessionID, meta.CreatedAt.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTRUMENT\tPOSITION\tENTRY\tMARK\tREALIZED\tUNREALIZED\tFEES\tTRADES")
	for _, name := range st.Instruments() {
		b := st.Book(name)
		fmt.Fprintf(w, "%s\t%.8g\t%.8g\t%.8g\t%.2f\t%.2f\t%.2f\t%d\n",
			name, b.Position, b.EntryPrice, b.LastMark, b.RealizedPnL, b.Unrealized(), b.FeesPaid, len(b.Trades))
	}
	w.Flush()

	tot := st.Totals()
	fmt.Fprintf(out, "\nDeposit:  %12.2f\n", tot.Deposit)
	fmt.Fprintf(out, "Cash:     %12.2f\n", tot.Cash)
	fmt.Fprintf(out, "Equity:   %12.2f\n", tot.Equity)
	fmt.Fprintf(out, "PnL:      %12.2f (realized %.2f, unrealized %.2f, fees %.2f)\n",
		tot.Equity-tot.Deposit, tot.Realized, tot.Unrealized, tot.Fees)

	if cfg.Journal.Type == "sqlite" {
		return printJournalSummary(out, cfg.Journal.DBPath)
	}
	return nil
}

func printJournalSummary(out io.Writer, path string) error {
	j, err := journal.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	s, err := j.Summarize("")
	if err != nil {
		return fmt.Errorf("summarize journal: %w", err)
	}
	fmt.Fprintf(out, "\nJournal: %d trades, gross profit %.2f, gross loss %.2f, fees %.2f, profit factor %.2f\n",
		s.Trades, s.GrossProfit, s.GrossLoss, s.Fees, s.ProfitFactor())
	return nil
}
