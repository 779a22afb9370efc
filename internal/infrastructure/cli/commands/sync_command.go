package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/infrastructure/cli/helpers"
)

// NewSyncCommand creates the sync command
func NewSyncCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued offline edits to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncDirtyPartitions(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), container)
		},
	}
}

// NewStatusCommand creates the status command
func NewStatusCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local cache and sync state per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSyncStatus(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// syncDirtyPartitions reconciles every dirty partition once
func syncDirtyPartitions(ctx context.Context, out, errOut io.Writer, container *app.Container) error {
	if len(container.Local.DirtyPartitions()) == 0 {
		fmt.Fprintln(out, MsgNothingToSync)
		return nil
	}

	conn := container.ProbeOnce(ctx)
	if !conn.Online() {
		fmt.Fprintln(out, MsgOfflineSkipped)
		return nil
	}

	spinner := helpers.NewSpinner(errOut, "syncing")
	spinner.Start()
	results := container.NewDrainer(conn, nil).Drain(ctx)
	spinner.Stop()

	failed := 0
	for _, p := range domain.Partitions() {
		result, ok := results[p]
		if !ok {
			continue
		}
		if result == domain.ReconcileFailed {
			failed++
		}
		fmt.Fprintf(out, "%s: %s\n", p, result)
	}
	if failed > 0 {
		return fmt.Errorf("failed to sync %d day(s); edits stay queued", failed)
	}
	return nil
}

// showSyncStatus prints cached record counts and dirty flags
func showSyncStatus(ctx context.Context, out io.Writer, container *app.Container) error {
	conn := container.ProbeOnce(ctx)
	state := "offline"
	if conn.Online() {
		state = "online"
	}
	fmt.Fprintf(out, "Remote: %s (%s)\n", container.Remote.Endpoint(), state)

	for _, p := range domain.Partitions() {
		records, cached := container.Local.Read(p)
		line := fmt.Sprintf("  %-10s ", p)
		if cached {
			line += fmt.Sprintf("%d exercise(s)", len(records))
		} else {
			line += "not cached"
		}
		if container.Local.IsDirty(p) {
			line += " [unsynced]"
		}
		fmt.Fprintln(out, line)
	}

	if container.Tally != nil && container.Tally.Completed() {
		fmt.Fprintln(out, "Today's session: done")
	}
	return nil
}
