package commands

import (
	"banksim/internal/config"
	"banksim/internal/database"
	"banksim/internal/dataset"
	"banksim/internal/logging"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

var RootCmd = &cobra.Command{
	Use:   "banksim",
	Short: "Bank queue simulation - single vs multi-line queues",
	Long: `banksim simulates a bank where a reception admits customers and three
tellers serve them, either from one shared line or from three lines with
arrivals routed to the shortest one. Both disciplines run against the same
timing dataset so their wait times can be compared.`,
	SilenceUsage: true,
}

// flagKeys maps persistent flag names to configuration keys
var flagKeys = map[string]string{
	"customers":      "customers",
	"acceleration":   "acceleration",
	"min-delay":      "min_delay",
	"max-delay":      "max_delay",
	"seed":           "seed",
	"queue-capacity": "queue_capacity",
	"dataset":        "dataset",
	"store":          "store",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"db-driver":      "db.driver",
	"db-dsn":         "db.dsn",
}

func init() {
	f := RootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (YAML)")
	f.Int("customers", 100, "total number of customers the bank will serve")
	f.Int("acceleration", 1, "time acceleration factor (one delay unit lasts 1000/acceleration ms)")
	f.Int("min-delay", dataset.DefaultMinDelay, "smallest generated delay, in units")
	f.Int("max-delay", dataset.DefaultMaxDelay, "largest generated delay, in units")
	f.Int64("seed", 0, "dataset seed (0 picks one from the clock)")
	f.Int("queue-capacity", 0, "capacity of each queue (0 means one slot per customer)")
	f.String("dataset", "", "YAML dataset file to use instead of generating one")
	f.Bool("store", false, "store results in the run history database")
	f.String("log-level", "info", "log level (debug shows every customer)")
	f.String("log-format", "text", "log format: text or json")
	f.String("db-driver", "sqlite3", "history database driver: sqlite3 or pgx")
	f.String("db-dsn", "banksim.db", "history database data source name")

	for name, key := range flagKeys {
		v.BindPFlag(key, f.Lookup(name))
	}

	RootCmd.AddCommand(RunCmd)
	RootCmd.AddCommand(CompareCmd)
	RootCmd.AddCommand(DatasetCmd)
	RootCmd.AddCommand(HistoryCmd)
	RootCmd.AddCommand(ServeCmd)
}

// setup resolves configuration and builds the logger
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadDataset reads the configured dataset file or generates a fresh one
func loadDataset(cfg *config.Config, log logrus.FieldLogger) (*dataset.Dataset, error) {
	if cfg.Dataset != "" {
		d, err := dataset.Load(cfg.Dataset)
		if err != nil {
			return nil, err
		}
		if d.Len() < cfg.Customers {
			return nil, errors.Errorf("dataset %q paces %d customers, need %d", cfg.Dataset, d.Len(), cfg.Customers)
		}
		log.Infof("[INIT] Loaded dataset %s (seed %d)", cfg.Dataset, d.Seed)
		return d, nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d, err := dataset.Generate(cfg.Customers, cfg.MinDelay, cfg.MaxDelay, seed)
	if err != nil {
		return nil, err
	}
	log.Infof("[INIT] Generated dataset for %d customers (seed %d)", cfg.Customers, seed)
	return d, nil
}

// openStore opens the run history database and ensures its schema
func openStore(cfg *config.Config, log logrus.FieldLogger) (*database.DB, error) {
	db, err := database.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("[INIT] Run history database ready (%s)", cfg.DB.Driver)
	return db, nil
}
