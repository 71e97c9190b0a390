package commands

import (
	"banksim/internal/api"
	"banksim/internal/simulation"
	"banksim/internal/state"
	"banksim/internal/websocket"
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and live websocket feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		wsManager := websocket.New(db, logger)
		runner := simulation.NewRunner(state.New(), simulation.Options{
			Log:     logger,
			OnEvent: wsManager.Broadcast,
		})

		ctx := cmd.Context()
		apiServer := api.NewServer(ctx, db, runner, wsManager, cfg.HTTP.RatePerMin, logger)

		mux := http.NewServeMux()
		apiServer.SetupRoutes(mux)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("[SHUTDOWN] Server shutdown failed: %v", err)
			}
		}()

		logger.Infof("[INIT] Server starting on http://localhost%s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		logger.Info("[SHUTDOWN] Server stopped")
		return nil
	},
}

func init() {
	f := ServeCmd.Flags()
	f.String("addr", ":8080", "HTTP listen address")
	f.Int("rate-per-min", 10, "simulation launches allowed per client per minute")
	v.BindPFlag("http.addr", f.Lookup("addr"))
	v.BindPFlag("http.rate_per_min", f.Lookup("rate-per-min"))
}
