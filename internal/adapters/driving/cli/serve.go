package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/remotesync/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled sync",
	Long: `Serves the HTTP API, runs the periodic remote sync and reloads the config
file when it changes. Stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

var serveAddr string

// serveListen is replaced in tests to bind an ephemeral port.
var serveListen = func(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to listen_addr setting)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if apiHandler == nil {
		return errors.New("http api not configured")
	}
	addr := serveAddr
	if addr == "" {
		addr = listenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := serveListen(addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           apiHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Serving HTTP API on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if scheduler != nil {
		g.Go(func() error {
			err := scheduler.Start(ctx)
			if stopErr := scheduler.Stop(); stopErr != nil {
				logger.Warn("scheduler stop: %v", stopErr)
			}
			return err
		})
	}
	if watchConfig != nil {
		g.Go(func() error {
			if err := watchConfig(ctx); err != nil {
				logger.Warn("config watcher stopped: %v", err)
			}
			return nil
		})
	}

	return g.Wait()
}
