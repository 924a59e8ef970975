package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gaiaeq/host/device"
	"gaiaeq/host/metrics"
)

func runCommand(a *app) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect, synchronize and serve metrics and MQTT until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, !noSync)
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip the initial full read of the equalizer")
	return cmd
}

func (a *app) run(ctx context.Context, sync bool) error {
	dev, m, err := a.openDevice()
	if err != nil {
		return err
	}
	defer dev.Shutdown()

	if sync {
		if err := dev.Sync(syncTimeout(a.settings.Session.RequestTimeout)); err != nil {
			a.logger.Warn("initial sync incomplete", "error", err)
		}
	}

	return a.serve(ctx, dev, m)
}

// serve runs the metrics endpoint and the MQTT bridge until ctx is done or
// one of them fails. Services already started are stopped before it returns.
func (a *app) serve(ctx context.Context, dev *device.Device, m *metrics.Metrics) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if err := a.startServices(gctx, g, dev, m); err != nil {
		cancel()
		if werr := g.Wait(); werr != nil {
			a.logger.Debug("service stopped", "error", werr)
		}
		return err
	}

	a.logger.Info("running", "device", a.settings.Serial.Device)
	<-gctx.Done()
	return g.Wait()
}
