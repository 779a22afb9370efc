package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
	"github.com/doeshing/liftlog/internal/version"
)

// NewVersionCommand creates the version command. container may be nil, in
// which case only build metadata is printed.
func NewVersionCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show liftlog and app shell versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayVersionInformation(cmd.OutOrStdout(), container)
		},
	}
}

// displayVersionInformation prints build metadata and the cache generation in use
func displayVersionInformation(out io.Writer, container *app.Container) error {
	fmt.Fprintf(out, "liftlog %s (%s)\n", version.Version, runtime.Version())
	if version.Commit != "" || version.BuildDate != "" {
		fmt.Fprintf(out, "Build: %s %s\n", orUnknown(version.Commit), orUnknown(version.BuildDate))
	}

	if container != nil {
		shell := container.Config.App
		fmt.Fprintf(out, "App shell: %s (runtime cache %s)\n", shell.StaticCacheName(), shell.RuntimeCacheName())
		fmt.Fprintf(out, "Local cache schema: %s\n", version.LocalCacheSchema())
	}
	return nil
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
