package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/liftlog/internal/app"
	"github.com/doeshing/liftlog/internal/application/workout"
	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/infrastructure/cli/helpers"
)

// NewShowCommand creates the show command
func NewShowCommand(container *app.Container) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the exercises of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, result, err := openDay(cmd, container, day)
			if err != nil {
				return err
			}
			defer session.Close()

			helpers.RenderLoad(cmd.ErrOrStderr(), result)
			helpers.RenderRecords(cmd.OutOrStdout(), session.Partition(), session.Records())
			return nil
		},
	}

	addDayFlag(cmd, &day)
	return cmd
}

// NewSetCommand creates the set command
func NewSetCommand(container *app.Container) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "set POSITION FIELD [VALUE...]",
		Short: "Edit one field of an exercise",
		Long:  "Edit one field of an exercise. An empty VALUE clears the field.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := helpers.ParseFieldArg(args[1])
			if err != nil {
				return err
			}
			return withRecord(cmd, container, day, args[0], func(ctx context.Context, session *workout.Session, id string) error {
				if err := session.Set(id, field, strings.Join(args[2:], " ")); err != nil {
					return fmt.Errorf("failed to set %s: %w", field, err)
				}
				return session.Blur(id)
			})
		},
	}

	addDayFlag(cmd, &day)
	return cmd
}

// NewClearCommand creates the clear command
func NewClearCommand(container *app.Container) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "clear POSITION FIELD",
		Short: "Clear one field of an exercise",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := helpers.ParseFieldArg(args[1])
			if err != nil {
				return err
			}
			return withRecord(cmd, container, day, args[0], func(ctx context.Context, session *workout.Session, id string) error {
				if err := session.Clear(ctx, id, field); err != nil {
					return fmt.Errorf("failed to clear %s: %w", field, err)
				}
				return nil
			})
		},
	}

	addDayFlag(cmd, &day)
	return cmd
}

// NewAddCommand creates the add command
func NewAddCommand(container *app.Container) *cobra.Command {
	var (
		day  string
		name string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an exercise to a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := openDay(cmd, container, day)
			if err != nil {
				return err
			}
			defer session.Close()

			ctx := cmd.Context()
			id, result := session.Add(ctx)
			renderReconcile(cmd.ErrOrStderr(), result)
			if name != "" {
				if err := session.Set(id, domain.FieldName, name); err != nil {
					return fmt.Errorf("failed to name exercise: %w", err)
				}
				if err := session.Blur(id); err != nil {
					return err
				}
			}
			helpers.RenderRecords(cmd.OutOrStdout(), session.Partition(), session.Records())
			return nil
		},
	}

	addDayFlag(cmd, &day)
	cmd.Flags().StringVar(&name, "name", "", "Exercise name")
	return cmd
}

// NewRemoveCommand creates the rm command
func NewRemoveCommand(container *app.Container) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:     "rm POSITION",
		Aliases: []string{"delete"},
		Short:   "Delete an exercise and renumber the rest",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecord(cmd, container, day, args[0], func(ctx context.Context, session *workout.Session, id string) error {
				result, err := session.Delete(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to delete exercise: %w", err)
				}
				renderReconcile(cmd.ErrOrStderr(), result)
				return nil
			})
		},
	}

	addDayFlag(cmd, &day)
	return cmd
}

// NewMoveCommand creates the mv command
func NewMoveCommand(container *app.Container) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "mv POSITION TARGET",
		Short: "Move an exercise to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := helpers.ParsePosition(args[1])
			if err != nil {
				return err
			}
			return withRecord(cmd, container, day, args[0], func(ctx context.Context, session *workout.Session, id string) error {
				result, err := session.Move(ctx, id, target)
				if err != nil {
					return fmt.Errorf("failed to move exercise: %w", err)
				}
				renderReconcile(cmd.ErrOrStderr(), result)
				return nil
			})
		},
	}

	addDayFlag(cmd, &day)
	return cmd
}

// openDay resolves the day, probes connectivity once and loads the session.
func openDay(cmd *cobra.Command, container *app.Container, day string) (*workout.Session, domain.LoadResult, error) {
	partition, err := helpers.ResolveDay(day, time.Now())
	if err != nil {
		return nil, domain.LoadResult{}, err
	}
	ctx := cmd.Context()
	conn := container.ProbeOnce(ctx)
	session := container.OpenSession(ctx, partition, conn, helpers.StatusPrinter(cmd.ErrOrStderr()))
	return session, session.Load(ctx), nil
}

// withRecord opens the day, resolves the positional argument to a record and
// runs fn. The session is flushed and closed before the day is printed.
func withRecord(cmd *cobra.Command, container *app.Container, day, positionArg string, fn func(context.Context, *workout.Session, string) error) error {
	position, err := helpers.ParsePosition(positionArg)
	if err != nil {
		return err
	}
	session, _, err := openDay(cmd, container, day)
	if err != nil {
		return err
	}

	id, ok := session.IDAt(position)
	if !ok {
		session.Close()
		return fmt.Errorf("no exercise at position %d on %s", position, session.Partition())
	}
	if err := fn(cmd.Context(), session, id); err != nil {
		session.Close()
		return err
	}
	session.Close()

	helpers.RenderRecords(cmd.OutOrStdout(), session.Partition(), session.Records())
	return nil
}

func renderReconcile(out io.Writer, result domain.ReconcileResult) {
	switch result {
	case domain.ReconcileOK:
		return
	case domain.ReconcileOffline:
		fmt.Fprintln(out, MsgOfflineSkipped)
	default:
		fmt.Fprintf(out, "sync: %s\n", result)
	}
}

func addDayFlag(cmd *cobra.Command, day *string) {
	cmd.Flags().StringVarP(day, FlagDay, "d", DefaultDay, "Day to edit (maandag..zondag or vandaag)")
}
