package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/dukex/area/pkg/editor"
	"github.com/dukex/area/pkg/oauth"
	cli "github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 5 * time.Minute

func NewApplyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Create or update an area from a workflow file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Workflow YAML file",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "area-id",
				Usage: "Update this existing area instead of creating one",
			},
			&cli.DurationFlag{
				Name:  "auth-timeout",
				Usage: "How long to wait for each external authorization",
				Value: defaultAuthTimeout,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			workflow, err := LoadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			e, err := newEnv(ctx, command)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.requireSession(); err != nil {
				return err
			}

			cat, err := e.catalog(command)
			if err != nil {
				return err
			}

			bus := oauth.NewBus(e.logger)
			defer func() {
				if err := bus.Close(); err != nil {
					e.logger.ErrorContext(ctx, "Failed to close OAuth bus", "error", err)
				}
			}()

			completions, err := bus.Subscribe(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to OAuth completions: %w", err)
			}

			server := oauth.NewCallbackServer(command.String("callback-addr"), bus, e.logger)

			go func() {
				if err := server.Start(); err != nil {
					e.logger.ErrorContext(ctx, "OAuth callback server stopped", "error", err)
				}
			}()
			defer func() {
				if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
					e.logger.ErrorContext(ctx, "Failed to stop OAuth callback server", "error", err)
				}
			}()

			ed := editor.New(editor.Config{
				Backend:  editor.BackendFromAPI(e.api),
				Catalog:  cat,
				Tracker:  oauth.NewTracker(command.String("app-url"), 0),
				Opener:   terminalOpener{out: os.Stdout, callback: server.URL()},
				Notifier: terminalNotifier(os.Stderr),
				Logger:   e.logger,
				Options:  editor.DefaultOptions(),
			})

			a := &applier{
				editor:      ed,
				completions: completions,
				authTimeout: command.Duration("auth-timeout"),
				logger:      e.logger,
			}

			return a.apply(ctx, workflow, command.Int64("area-id"))
		},
	}
}

// applier walks a workflow through the editor the way a user would.
type applier struct {
	editor      *editor.Editor
	completions <-chan oauth.Completion
	authTimeout time.Duration
	logger      *slog.Logger
}

func (a *applier) apply(ctx context.Context, workflow *Workflow, areaID int64) error {
	if areaID != 0 {
		if err := a.editor.Load(ctx, areaID); err != nil {
			return err
		}
	} else {
		if _, err := a.editor.CreateArea(ctx, editor.CreateAreaInput{Name: workflow.Name, Description: workflow.Description}); err != nil {
			return err
		}

		if _, err := a.editor.AddTrigger(); err != nil {
			return err
		}
	}

	specs := workflow.Steps()

	for i, spec := range specs {
		steps := a.editor.Steps()

		var id string

		if i < len(steps) {
			id = steps[i].ID
		} else {
			step, err := a.editor.AddAction()
			if err != nil {
				return err
			}

			id = step.ID
		}

		if err := a.configure(ctx, id, spec); err != nil {
			return fmt.Errorf("step %d (%s/%s): %w", i+1, spec.Service, spec.Event, err)
		}
	}

	steps := a.editor.Steps()
	for _, surplus := range steps[min(len(specs), len(steps)):] {
		if err := a.editor.RemoveStep(ctx, surplus.ID); err != nil {
			return err
		}
	}

	area := a.editor.Area()
	fmt.Printf("Area %d %q saved with %d steps\n", area.ID, area.Name, len(specs))

	if !workflow.Activate {
		return nil
	}

	area, err := a.editor.Activate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Area %d is %s\n", area.ID, area.Status)

	return nil
}

// configure brings one step to the validated phase.
func (a *applier) configure(ctx context.Context, id string, spec StepSpec) error {
	step, _ := a.editor.Step(id)

	if step.Service != spec.Service || !step.IsConnected {
		if err := a.editor.SelectService(ctx, id, spec.Service); err != nil {
			return err
		}

		phase, err := a.editor.ConfirmConsent(ctx, id)
		if err != nil {
			return err
		}

		if phase == editor.PhaseAwaitingExternalAuth {
			if err := a.waitForAuth(ctx, id); err != nil {
				return err
			}
		}
	}

	step, _ = a.editor.Step(id)
	values := make(map[string]any, len(spec.Config))
	maps.Copy(values, spec.Config)

	if step.Event != spec.Event {
		if err := a.editor.SelectEvent(ctx, id, spec.Event); err != nil {
			return err
		}
	} else {
		for key := range step.Config {
			if _, ok := spec.Config[key]; !ok {
				values[key] = nil
			}
		}
	}

	if len(values) > 0 {
		if err := a.editor.SetConfigValues(id, values); err != nil {
			return err
		}
	}

	if err := a.editor.ValidateStep(ctx, id); err != nil {
		return err
	}

	step, _ = a.editor.Step(id)
	if step.PendingAuth {
		return a.waitForAuth(ctx, id)
	}

	return nil
}

var errAuthTimeout = errors.New("timed out waiting for the external authorization")

// waitForAuth applies OAuth completions until the step stops waiting.
func (a *applier) waitForAuth(ctx context.Context, id string) error {
	timer := time.NewTimer(a.authTimeout)
	defer timer.Stop()

	for {
		step, ok := a.editor.Step(id)
		if !ok {
			return editor.ErrStepNotFound
		}

		if !step.PendingAuth {
			if step.CreateError != "" {
				return errors.New(step.CreateError)
			}

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errAuthTimeout
		case completion, ok := <-a.completions:
			if !ok {
				return errAuthTimeout
			}

			if err := a.editor.HandleOAuthCompletion(ctx, completion); err != nil {
				a.logger.WarnContext(ctx, "OAuth completion not applied", "error", err)
			}
		}
	}
}

// terminalOpener prints URLs for the user to open.
type terminalOpener struct {
	out      io.Writer
	callback string
}

func (o terminalOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintf(o.out, "\nOpen this URL in your browser to continue:\n  %s\nCompletion is reported to %s\n\n", url, o.callback)

	return err
}

func terminalNotifier(w io.Writer) editor.Notifier {
	return editor.NotifierFunc(func(_ context.Context, level editor.Level, message string) {
		fmt.Fprintf(w, "[%s] %s\n", level, message)
	})
}
