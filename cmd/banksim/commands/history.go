package commands

import (
	"banksim/internal/models"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	historyMode  string
	historyLimit int
)

var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored simulation results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return errors.Errorf("--limit must be a positive integer, got %d", historyLimit)
		}
		if historyMode != "" && !models.Mode(historyMode).Valid() {
			return errors.Errorf("unknown mode %q (want single or multi)", historyMode)
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(historyMode, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs stored")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tMODE\tCUSTOMERS\tSERVED\tDROPPED\tTOTAL WAIT\tAVG WAIT\tID")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.5f\t%.5f\t%s\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.Mode, run.Customers,
				run.Processed, run.Dropped, run.WaitTotal, run.WaitAverage, run.ID)
		}
		return w.Flush()
	},
}

func init() {
	HistoryCmd.Flags().StringVar(&historyMode, "mode", "", "only show runs of this mode")
	HistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
}
