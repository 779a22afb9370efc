package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doeshing/liftlog/internal/app"
	"github.com/doeshing/liftlog/internal/infrastructure/cli/helpers"
	"github.com/doeshing/liftlog/internal/infrastructure/proxy"
)

// NewServeCommand creates the serve command
func NewServeCommand(container *app.Container) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the offline caching proxy and background sync",
		Long: "Serve the app shell through the resource cache on a local address. " +
			"Queued offline edits are pushed whenever the remote store becomes reachable.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = container.Config.Proxy.Listen
			}
			return runServe(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), container, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	return cmd
}

// runServe installs the shell, starts connectivity monitoring and serves until ctx ends
func runServe(ctx context.Context, out, errOut io.Writer, container *app.Container, listen string) error {
	log := container.Logger

	if err := container.Worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to prepare resource cache: %w", err)
	}
	if err := container.Tally.Initialize(ctx); err != nil {
		log.Warn("session counts not initialized", map[string]interface{}{"error": err.Error()})
	}

	monitor := container.NewMonitor()
	monitor.Start(ctx)
	defer monitor.Stop()

	drainer := container.NewDrainer(monitor, helpers.StatusPrinter(errOut))
	stopDrain := drainer.Watch(ctx)
	defer stopDrain()

	server := &proxy.Server{
		Addr:    listen,
		Handler: proxy.NewHandler(container.Worker, container.Worker.Generations.Origin, http.DefaultTransport, log.With("component", "proxy")),
		Logger:  log.With("component", "proxy"),
	}

	var group errgroup.Group
	if monitor.Online() {
		group.Go(func() error {
			drainer.Drain(ctx)
			return nil
		})
	}
	group.Go(func() error {
		return server.Run(ctx, func(addr string) {
			fmt.Fprintf(out, "Serving %s on http://%s\n", container.Config.App.Origin, addr)
		})
	})
	return group.Wait()
}
