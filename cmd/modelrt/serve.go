package main

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

	"modelrt/internal/config"
	"modelrt/internal/httpapi"
	"modelrt/internal/worker"
)

const (
	shutdownTimeout = 5 * time.Second
	cleanupTimeout  = 10 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var embedded bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the HTTP API. Requests become worker calls on the configured broker.\n" +
			"With the memory broker a worker always runs in this process.",
		Example: "  modelrt serve --config modelrt.yaml\n  MODELRT_BROKER=redis modelrt serve --embedded-worker=false",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, embedded || a.cfg.Broker == config.BrokerMemory)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (overrides config)")
	cmd.Flags().BoolVar(&embedded, "embedded-worker", true, "Run a worker in this process")
	return cmd
}

func (a *app) serve(ctx context.Context, embedded bool) error {
	broker, closeBroker, err := newBroker(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeBroker() }()

	var (
		st         *stack
		workerDone = make(chan error, 1)
	)
	wctx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if embedded {
		if st, err = buildStack(a.cfg, a.log); err != nil {
			return err
		}
		if err := st.svc.Initialize(ctx); err != nil {
			return err
		}
		w := worker.New(st.svc, broker, a.log.With().Str("component", "worker").Logger())
		go func() { workerDone <- w.Run(wctx) }()
	}

	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetRequestLogLevel(a.cfg.RequestLog)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(a.cfg.RequestTimeout.Std())
	httpapi.SetCORSOptions(a.cfg.CORSEnabled, a.cfg.CORSOrigins, a.cfg.CORSMethods, a.cfg.CORSHeaders)
	httpapi.SetBaseContext(ctx)

	client := worker.NewClient(broker, a.log.With().Str("component", "client").Logger())
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(client),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Str("broker", a.cfg.Broker).Bool("embedded_worker", embedded).Msg("modelrt listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case runErr = <-errCh:
	case err := <-workerDone:
		runErr = fmt.Errorf("worker stopped: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	stopWorker()
	if st != nil {
		cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := st.svc.Cleanup(cctx); err != nil {
			a.log.Warn().Err(err).Msg("cleanup error")
		}
	}
	return runErr
}
