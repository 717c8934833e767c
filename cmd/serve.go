package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the HTTP compile API",
	Long:         `Serve /api/compile, /api/compileDDC, /health and /metrics until interrupted.`,
	RunE:         runServe,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (default :8080)")
	serveCmd.Flags().Bool("warmup", false, "Initialize framework support in the background at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if warmup, _ := cmd.Flags().GetBool("warmup"); warmup {
		go func() {
			state := a.compiler.Warmup(ctx)
			a.log.Info("Warm-up finished", zap.Stringer("state", state))
		}()
	}

	opts := []server.Option{
		server.WithLogger(a.log),
		server.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
	}

	if a.cfg.CompileTimeout > 0 {
		opts = append(opts, server.WithWriteTimeout(a.cfg.CompileTimeout+30*time.Second))
	}

	srv := server.NewServer(a.cfg.Listen, a.compiler, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil

	case <-ctx.Done():
		a.log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}
