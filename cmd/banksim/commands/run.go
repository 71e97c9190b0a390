package commands

import (
	"banksim/internal/config"
	"banksim/internal/dataset"
	"banksim/internal/models"
	"banksim/internal/simulation"
	"banksim/internal/state"
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runMode string

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discipline and print its results",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := models.Mode(runMode)
		if !mode.Valid() {
			return errors.Errorf("unknown mode %q (want single or multi)", runMode)
		}
		return simulate(cmd.Context(), cmd.OutOrStdout(), mode)
	},
}

var CompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the single-queue bank, then the multi-queue bank, on the same dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simulate(cmd.Context(), cmd.OutOrStdout(), models.ModeSingle, models.ModeMulti)
	},
}

func init() {
	RunCmd.Flags().StringVar(&runMode, "mode", string(models.ModeSingle), "queueing discipline: single or multi")
}

func simulate(ctx context.Context, out io.Writer, modes ...models.Mode) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	data, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}

	runner := simulation.NewRunner(state.New(), simulation.Options{Log: logger})
	results, err := runner.Run(ctx, simConfig(cfg, data), modes...)
	if err != nil {
		return err
	}

	for _, run := range results {
		printResult(out, run)
	}

	if cfg.Store {
		return storeResults(cfg, logger, results)
	}
	return nil
}

func simConfig(cfg *config.Config, data *dataset.Dataset) simulation.Config {
	return simulation.Config{
		Customers:     cfg.Customers,
		Acceleration:  cfg.Acceleration,
		QueueCapacity: cfg.QueueCapacity,
		ArrivalDelays: data.ArrivalDelays,
		ServiceDelays: data.ServiceDelays,
	}
}

func storeResults(cfg *config.Config, log logrus.FieldLogger, results []*models.RunResult) error {
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, run := range results {
		if err := db.InsertRun(run); err != nil {
			return err
		}
		log.Infof("[STORE] Saved run %s", run.ID)
	}
	return nil
}

// printResult writes the results block of one run
func printResult(out io.Writer, run *models.RunResult) {
	title := "Single-Queue"
	if run.Mode == models.ModeMulti {
		title = "Multi-Queue"
	}
	const rule = "----------------------------------------"

	fmt.Fprintln(out)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Bank Simulation %s Results:\n", title)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Total customers served  : %d\n", run.Processed)
	fmt.Fprintf(out, "Total customer wait time: %.5f\n", run.WaitTotal)
	fmt.Fprintf(out, "Average queue wait time : %.5f\n", run.WaitAverage)
	fmt.Fprintf(out, "Longest single wait     : %.5f\n", run.WaitMax)
	fmt.Fprintf(out, "Dropped arrivals        : %d\n", run.Dropped)
	if run.Interrupted {
		fmt.Fprintln(out, "Run was interrupted before completion")
	}
	fmt.Fprintln(out, rule)
}
