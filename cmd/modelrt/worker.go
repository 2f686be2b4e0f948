package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelrt/internal/config"
	"modelrt/internal/worker"
)

var errWorkerNeedsRedis = errors.New("worker command needs broker=redis (set MODELRT_BROKER=redis)")

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "worker",
		Short:   "Run a worker that serves calls from the Redis queue",
		Example: "  MODELRT_BROKER=redis MODELRT_REDIS_ADDR=localhost:6379 modelrt worker",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Broker != config.BrokerRedis {
				return errWorkerNeedsRedis
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWorker(ctx)
		},
	}
}

func (a *app) runWorker(ctx context.Context) error {
	broker, closeBroker, err := newBroker(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeBroker() }()
	st, err := buildStack(a.cfg, a.log)
	if err != nil {
		return err
	}
	if err := st.svc.Initialize(ctx); err != nil {
		return err
	}
	err = worker.New(st.svc, broker, a.log.With().Str("component", "worker").Logger()).Run(ctx)
	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if cerr := st.svc.Cleanup(cctx); cerr != nil {
		a.log.Warn().Err(cerr).Msg("cleanup error")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
