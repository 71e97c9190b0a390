package commands

import (
	"banksim/internal/dataset"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var datasetOut string

var DatasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage timing datasets",
}

var datasetGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a reproducible timing dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		d, err := dataset.Generate(cfg.Customers, cfg.MinDelay, cfg.MaxDelay, seed)
		if err != nil {
			return err
		}
		if err := d.Save(datasetOut); err != nil {
			return err
		}

		logger.Infof("[DATASET] Wrote %d customers to %s", d.Len(), datasetOut)
		fmt.Fprintf(cmd.OutOrStdout(), "seed: %d\n", seed)
		return nil
	},
}

func init() {
	datasetGenerateCmd.Flags().StringVarP(&datasetOut, "out", "o", "dataset.yaml", "output file")
	DatasetCmd.AddCommand(datasetGenerateCmd)
}
