package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"timecapsule/internal/capsule"
	"timecapsule/internal/config"
	"timecapsule/internal/db"
	"timecapsule/internal/errors"
	"timecapsule/internal/filestore"
	"timecapsule/internal/ops"
	"timecapsule/internal/scheduler"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(dir string, database *sql.DB, cfg *config.Config, files *filestore.Store, log *slog.Logger) *cli.App {
	notifier := &scheduler.LogNotifier{Log: log}
	app := &cli.App{
		Name:    "capsuled",
		Usage:   "Local time-capsule store",
		Version: Version,
		Commands: []*cli.Command{
			createCmd(database, files, notifier),
			getCmd(database, files),
			listCmd(database, files),
			openCmd(database, files),
			deleteCmd(database, files, notifier),
			reconcileCmd(database),
			watchCmd(database, cfg, log),
			resetCmd(dir, database, files),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// createCmd creates the create command.
func createCmd(database *sql.DB, files *filestore.Store, notifier scheduler.Notifier) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a locked capsule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "Capsule type: emotion|goal|memory|decision"},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Required: true, Usage: "Message text"},
			&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "Reflection question (required unless type is memory)"},
			&cli.StringFlag{Name: "unlock", Usage: "Unlock time, RFC3339"},
			&cli.DurationFlag{Name: "in", Usage: "Unlock after a duration from now (e.g. 192h)"},
			&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Usage: "Image source file (repeatable, up to 3)"},
		},
		Action: func(c *cli.Context) error {
			unlockAt, err := parseUnlock(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.CreateInput{
				Type:       capsule.Type(c.String("type")),
				Content:    c.String("content"),
				UnlockAt:   unlockAt,
				ImagePaths: c.StringSlice("image"),
			}
			if q := c.String("question"); q != "" {
				input.ReflectionQuestion = &q
			}

			view, err := ops.Create(c.Context, database, files, input)
			if err != nil {
				return outputError(err)
			}

			// Best-effort: a notifier failure never fails the create
			if unlockTime, err := time.Parse(time.RFC3339, view.UnlockAt); err == nil {
				_ = notifier.Schedule(c.Context, capsule.Capsule{ID: view.ID, UnlockAt: unlockTime.UnixMilli()})
			}
			return outputJSON(view)
		},
	}
}

// parseUnlock resolves --unlock/--in into an unlock time.
func parseUnlock(c *cli.Context) (time.Time, error) {
	hasUnlock := c.String("unlock") != ""
	hasIn := c.Duration("in") != 0
	if hasUnlock == hasIn {
		return time.Time{}, errors.NewValidation("Specify exactly one of --unlock or --in")
	}
	if hasIn {
		return time.Now().Add(c.Duration("in")), nil
	}
	t, err := time.Parse(time.RFC3339, c.String("unlock"))
	if err != nil {
		return time.Time{}, errors.NewValidation(fmt.Sprintf("Invalid --unlock time: %v", err))
	}
	return t, nil
}

// getCmd creates the get command.
func getCmd(database *sql.DB, files *filestore.Store) *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Fetch a capsule by id",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "Capsule id"},
		},
		Action: func(c *cli.Context) error {
			view, err := ops.Get(c.Context, database, files, c.String("id"))
			if err != nil {
				return outputError(err)
			}
			if view == nil {
				return outputError(errors.NewNotFound(c.String("id")))
			}
			return outputJSON(view)
		},
	}
}

// listCmd creates the list command.
func listCmd(database *sql.DB, files *filestore.Store) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List upcoming (default) or opened capsules",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "opened", Usage: "List opened capsules instead of upcoming"},
		},
		Action: func(c *cli.Context) error {
			var (
				views []*ops.CapsuleView
				err   error
			)
			if c.Bool("opened") {
				views, err = ops.ListOpened(c.Context, database, files)
			} else {
				views, err = ops.ListUpcoming(c.Context, database, files, ops.DefaultUpcomingLimit)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"capsules": views, "count": len(views)})
		},
	}
}

// openCmd creates the open command.
func openCmd(database *sql.DB, files *filestore.Store) *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Open a ready capsule (answer required unless type is memory)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "Capsule id"},
			&cli.StringFlag{Name: "answer", Aliases: []string{"a"}, Usage: "Reflection answer (yes/no or 1-5)"},
		},
		Action: func(c *cli.Context) error {
			var (
				view *ops.CapsuleView
				err  error
			)
			if answer := c.String("answer"); answer != "" {
				view, err = ops.SubmitAnswer(c.Context, database, files, c.String("id"), answer)
			} else {
				view, err = ops.MarkOpened(c.Context, database, files, c.String("id"))
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(view)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(database *sql.DB, files *filestore.Store, notifier scheduler.Notifier) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete an opened capsule and its images",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "Capsule id"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, database, files, c.String("id"))
			if err != nil {
				return outputError(err)
			}

			// Best-effort: cancel any pending alert for the deleted capsule
			_ = notifier.Cancel(c.Context, output.ID)
			return outputJSON(output)
		},
	}
}

// reconcileCmd creates the reconcile command: one bulk promotion pass.
func reconcileCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Promote locked capsules whose unlock time has passed",
		Action: func(c *cli.Context) error {
			count, err := ops.UpdatePending(c.Context, database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"promoted": count})
		},
	}
}

// watchCmd runs both reconciliation drivers until interrupted.
func watchCmd(database *sql.DB, cfg *config.Config, log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run foreground and background reconciliation until interrupted",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(database, &scheduler.LogNotifier{Log: log}, log,
				time.Duration(cfg.ForegroundIntervalMS)*time.Millisecond, cfg.BackgroundCron)
			if err := sched.StartBackground(ctx); err != nil {
				return outputError(err)
			}
			defer sched.Stop()

			log.Info("watching", "interval_ms", cfg.ForegroundIntervalMS, "cron", cfg.BackgroundCron)
			sched.RunForeground(ctx)
			return nil
		},
	}
}

// resetCmd creates the reset command: destructive dev-tool wipe.
func resetCmd(dir string, database *sql.DB, files *filestore.Store) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Destructively wipe the database and all image files (dev tooling)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the wipe"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewValidation("Pass --yes to confirm the wipe"))
			}
			if err := database.Close(); err != nil {
				return outputError(errors.NewStorageUnavailable(err))
			}
			if err := db.Reset(dir); err != nil {
				return outputError(err)
			}
			if err := files.DeleteRoot(); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"reset": true})
		},
	}
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// outputError writes a structured error as JSON to stderr and returns it so
// the process exits non-zero.
func outputError(err error) error {
	cErr, ok := err.(*errors.CapsuleError)
	if !ok {
		cErr = errors.NewStorageUnavailable(err)
	}
	payload := map[string]any{
		"error":   cErr.Code,
		"message": cErr.Message,
	}
	if len(cErr.Details) > 0 {
		payload["details"] = cErr.Details
	}
	data, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Fprintln(os.Stderr, string(data))
	return err
}
