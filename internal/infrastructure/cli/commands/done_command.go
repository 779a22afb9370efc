package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
)

// NewDoneCommand creates the done command
func NewDoneCommand(container *app.Container) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "done",
		Short: "Toggle today's session as completed",
		Long:  "Toggle today's session as completed. Marking it done adds one to this year's count; unmarking removes it again.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if show {
				return showSessionCount(cmd.Context(), cmd.OutOrStdout(), container)
			}
			return toggleSessionDone(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Only print this year's session count")
	return cmd
}

// showSessionCount prints the current yearly count
func showSessionCount(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Tally == nil {
		return fmt.Errorf(ErrTallyUnavailable)
	}

	count, err := container.Tally.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session count: %w", err)
	}
	state := "open"
	if container.Tally.Completed() {
		state = "done"
	}
	fmt.Fprintf(out, "%d sessions in %d (today: %s)\n", count, container.Tally.Year(), state)
	return nil
}

// toggleSessionDone flips today's completion flag
func toggleSessionDone(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Tally == nil {
		return fmt.Errorf(ErrTallyUnavailable)
	}

	done, count, err := container.Tally.Toggle(ctx)
	if err != nil {
		return fmt.Errorf("failed to update session count: %w", err)
	}
	if done {
		fmt.Fprintf(out, "Session marked done. %d sessions in %d.\n", count, container.Tally.Year())
	} else {
		fmt.Fprintf(out, "Session unmarked. %d sessions in %d.\n", count, container.Tally.Year())
	}
	return nil
}
