package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sentinel/internal/api"
	"github.com/ppiankov/sentinel/internal/server"
)

var (
	servePort int
	serveHTTP string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gRPC listen port (default from config, 50051)")
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "HTTP listen address, empty string in config disables (default from config, :8080)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC and HTTP servers",
	Long: "Runs sentinel as a central service. Agents check actions over gRPC;\n" +
		"the HTTP API serves assessments, review transitions and /metrics.\n" +
		"The constraint file is hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: true, metrics: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	port := cfg.Server.GRPCPort
	if servePort != 0 {
		port = servePort
	}
	httpAddr := cfg.Server.HTTPAddr
	if serveHTTP != "" {
		httpAddr = serveHTTP
	}

	srv := server.New(rt.svc, server.Config{
		Port:            port,
		ConstraintsPath: cfg.Constraints,
		Logger:          logger.Named("grpc"),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reloader, err := server.NewReloader(srv, cfg.Constraints, logger.Named("reload"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	} else {
		go reloader.Run(ctx)
	}

	var httpSrv *http.Server
	if httpAddr != "" {
		handler := api.New(rt.svc, api.WithLogger(logger.Named("http")), api.WithMetrics(rt.metrics)).Handler()
		httpSrv = &http.Server{Addr: httpAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
				cancel()
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down sentinel server...")
		case <-ctx.Done():
		}
		cancel()
		if httpSrv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpSrv.Shutdown(shutdownCtx)
		}
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "sentinel gRPC server listening on :%d\n", port)
	if httpAddr != "" {
		fmt.Fprintf(os.Stderr, "HTTP API on %s\n", httpAddr)
	}
	fmt.Fprintf(os.Stderr, "Constraints: %s (%s, hot-reload enabled)\n", cfg.Constraints, rt.svc.Constraints().Hash())
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
