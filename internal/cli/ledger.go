package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-post-trader/internal/config"
	"github.com/kjannette/trahn-post-trader/internal/ledger"
	"github.com/kjannette/trahn-post-trader/internal/models"
)

func newLedgerCmd() *cobra.Command {
	var dataDir, day string
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print recorded trades and totals from the CSV ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dataDir = cfg.DataDir
			}
			l := ledger.NewCSVLedger(dataDir)
			ctx := cmd.Context()

			var (
				records []models.LedgerRecord
				err     error
			)
			if day != "" {
				records, err = l.GetByDay(ctx, day)
			} else {
				records, err = l.GetAll(ctx, limit)
			}
			if err != nil {
				return err
			}
			stats, err := l.GetStats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s\n\n", l.Path())
			printRecords(out, records)
			printStats(out, stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the ledger (default $DATA_DIR)")
	cmd.Flags().StringVar(&day, "day", "", "only trades of this trading day (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent trades")
	return cmd
}

func printRecords(w io.Writer, records []models.LedgerRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no trades recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILLED (UTC)\tSIDE\tTICKER\tQTY\tPRICE\tUSD\tFEE\tPOST")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
			r.FilledAt.UTC().Format(ledger.DateLayout), r.Side, r.Ticker,
			r.Quantity, r.Price, r.USDValue.StringFixed(2),
			r.Commission, r.CommissionAsset, r.PostID)
	}
	tw.Flush()
}

func printStats(w io.Writer, s *models.TradeStats) {
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Trades: %d (buys %d, sells %d)\n", s.TotalTrades, s.BuyCount, s.SellCount)
	fmt.Fprintf(w, "Volume: $%s\n", s.TotalVolume.StringFixed(2))
	if s.FirstTrade != nil && s.LastTrade != nil {
		fmt.Fprintf(w, "Range: %s .. %s\n",
			s.FirstTrade.UTC().Format(ledger.DateLayout), s.LastTrade.UTC().Format(ledger.DateLayout))
	}
}
