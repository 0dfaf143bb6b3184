package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chahine-tech/edgeproxy/internal/listener"
	"github.com/chahine-tech/edgeproxy/internal/logging"
	"github.com/chahine-tech/edgeproxy/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy: client listener, admin endpoint, health prober, and config watcher",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.New(logLevel, logPretty)

	reg := prometheus.NewRegistry()
	sup, err := supervisor.New(configPath, log, reg)
	if err != nil {
		return err
	}
	defer sup.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap := sup.Dispatcher().Snapshot()

	if snap.AdminAddr != "" {
		adminSrv := &http.Server{Addr: snap.AdminAddr, Handler: sup.AdminHandler()}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), listener.DrainTimeout)
			defer cancel()
			_ = adminSrv.Shutdown(shutdownCtx)
		}()
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("admin listener stopped")
			}
		}()
	}

	log.Info().Str("listen_addr", snap.ListenAddr).Msg("edgeproxy starting")
	return listener.Run(ctx, snap, sup.Dispatcher(), log)
}
