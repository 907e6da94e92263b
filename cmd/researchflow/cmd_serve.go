package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/researchflow/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	addr    string
	timeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTML form, JSON API, and metrics over HTTP",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default LISTEN_ADDR or :8080)")
	f.DurationVar(&serveFlags.timeout, "request-timeout", 5*time.Minute, "Upper bound on one research run")
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := slog.Default()
	a, err := buildApp(s, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveFlags.addr
	if addr == "" {
		addr = s.ListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := server.New(a.workflow,
		server.WithLogger(logger),
		server.WithRequestTimeout(serveFlags.timeout),
		server.WithDefaultQuery(defaultQuery),
	)
	return serveUntilDone(cmd.Context(), ln, srv.Handler(), logger)
}

// serveUntilDone serves h on ln until ctx is cancelled, then shuts down
// gracefully.
func serveUntilDone(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
