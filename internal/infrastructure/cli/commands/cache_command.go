package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or manage the app shell resource cache",
	}

	cacheCmd.AddCommand(
		newCacheListCommand(container),
		newCacheInstallCommand(container),
		newCacheActivateCommand(container),
		newCacheClearCommand(container),
	)

	return cacheCmd
}

// newCacheListCommand creates the 'cache list' subcommand
func newCacheListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cache generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCacheGenerations(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// newCacheInstallCommand creates the 'cache install' subcommand
func newCacheInstallCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Precache the app shell for the configured version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return installCacheGeneration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// newCacheActivateCommand creates the 'cache activate' subcommand
func newCacheActivateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Remove caches of other versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return activateCacheGeneration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// newCacheClearCommand creates the 'cache clear' subcommand
func newCacheClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cache, including runtime entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCaches(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// listCacheGenerations prints one line per named cache
func listCacheGenerations(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Worker == nil {
		return fmt.Errorf(ErrResourceStoreUnavailable)
	}

	gens, err := container.Worker.Generations.List(ctx, container.Worker.Version)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}
	if len(gens) == 0 {
		fmt.Fprintln(out, MsgNoCaches)
		return nil
	}

	for _, g := range gens {
		marker := " "
		if g.Active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s | %d entries | %s\n", marker, g.Name, g.Entries, humanize.Bytes(uint64(g.Bytes)))
	}
	return nil
}

// installCacheGeneration runs the install hook for the configured version
func installCacheGeneration(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Worker == nil {
		return fmt.Errorf(ErrResourceStoreUnavailable)
	}

	if err := container.Worker.OnInstall(ctx); err != nil {
		return fmt.Errorf("failed to install cache: %w", err)
	}
	fmt.Fprintf(out, "Installed %s\n", container.Worker.Generations.Name(container.Worker.Version))
	return nil
}

// activateCacheGeneration removes caches that are neither current nor runtime
func activateCacheGeneration(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Worker == nil {
		return fmt.Errorf(ErrResourceStoreUnavailable)
	}

	removed, err := container.Worker.Generations.Activate(ctx, container.Worker.Version)
	for _, name := range removed {
		fmt.Fprintf(out, "Removed %s\n", name)
	}
	if err != nil {
		return fmt.Errorf("failed to activate cache: %w", err)
	}
	if len(removed) == 0 {
		fmt.Fprintln(out, "No stale caches.")
	}
	return nil
}

// clearCaches drops every named cache
func clearCaches(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Worker == nil {
		return fmt.Errorf(ErrResourceStoreUnavailable)
	}

	if err := container.Worker.Generations.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear caches: %w", err)
	}
	fmt.Fprintln(out, MsgCachesCleared)
	return nil
}
