package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/doeshing/liftlog/internal/app"
	"github.com/doeshing/liftlog/internal/infrastructure/cli/commands"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// OptionsFromArgs reads the global flags ahead of cobra so the container can
// be built before the command tree exists. LIFTLOG_DEBUG enables verbose
// logging as well.
func OptionsFromArgs(args []string) Options {
	fs := pflag.NewFlagSet("liftlog", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	var opts Options
	fs.StringVar(&opts.ConfigPath, flagConfig, "", "")
	fs.BoolVar(&opts.Verbose, flagDebug, false, "")
	_ = fs.Parse(args)

	if debug := os.Getenv("LIFTLOG_DEBUG"); strings.EqualFold(debug, "1") || strings.EqualFold(debug, "true") {
		opts.Verbose = true
	}
	return opts
}

// NewRootCmd wires the cobra root command. The returned container must be
// closed by the caller.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, *app.Container, error) {
	container, err := app.BuildContainer(ctx, app.Options{ConfigPath: opts.ConfigPath, Verbose: opts.Verbose})
	if err != nil {
		return nil, nil, err
	}

	root := &cobra.Command{
		Use:   "liftlog",
		Short: "liftlog - offline-first workout log",
		Long: "liftlog keeps a weekly workout schedule in a remote store, " +
			"edits it offline and pushes queued changes when the store is reachable again.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(flagConfig, opts.ConfigPath, "Config file (default ~/.liftlog/config.yaml)")
	root.PersistentFlags().Bool(flagDebug, opts.Verbose, "Enable verbose logging")

	root.AddCommand(
		commands.NewServeCommand(container),
		commands.NewShowCommand(container),
		commands.NewSetCommand(container),
		commands.NewClearCommand(container),
		commands.NewAddCommand(container),
		commands.NewRemoveCommand(container),
		commands.NewMoveCommand(container),
		commands.NewSyncCommand(container),
		commands.NewStatusCommand(container),
		commands.NewCacheCommand(container),
		commands.NewDoneCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewConfigCommand(container),
		commands.NewVersionCommand(container),
	)
	return root, container, nil
}
