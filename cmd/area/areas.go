package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dukex/area/pkg/manager"
	"github.com/dukex/area/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewAreasCommand() *cli.Command {
	return &cli.Command{
		Name:  "areas",
		Usage: "List and manage areas",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List areas",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Only areas with this status (draft, configured, active, disabled)"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match name or description"},
					&cli.StringFlag{Name: "sort", Usage: "Sort by name, created_at, updated_at or runs"},
					&cli.StringFlag{Name: "order", Usage: "asc or desc"},
				},
				Action: withManager(func(ctx context.Context, command *cli.Command, m *manager.Manager) error {
					areas, err := m.List(ctx,
						manager.Filter{Status: models.AreaStatus(command.String("status")), Query: command.String("query")},
						manager.Sort{By: manager.SortBy(command.String("sort")), Order: manager.Order(command.String("order"))},
					)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tSTATUS\tRUNS\tLAST RUN")

					for _, area := range areas {
						fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", area.ID, area.Name, area.Status, area.RunCount, lastRun(area.LastRunAt))
					}

					return w.Flush()
				}),
			},
			{
				Name:  "summary",
				Usage: "Count areas per status and total runs",
				Action: withManager(func(ctx context.Context, _ *cli.Command, m *manager.Manager) error {
					summary, err := m.Summary(ctx)
					if err != nil {
						return err
					}

					fmt.Printf("Areas: %d\n", summary.Total)

					for _, status := range []models.AreaStatus{models.AreaStatusActive, models.AreaStatusConfigured, models.AreaStatusDraft, models.AreaStatusDisabled} {
						fmt.Printf("  %-10s %d\n", status, summary.ByStatus[status])
					}

					fmt.Printf("Runs: %d\n", summary.Runs)

					return nil
				}),
			},
			{
				Name:      "toggle",
				Usage:     "Activate a disabled area or disable an active one",
				ArgsUsage: "<area-id>",
				Action: withManager(func(ctx context.Context, command *cli.Command, m *manager.Manager) error {
					id, err := idArg(command, 0, "area id")
					if err != nil {
						return err
					}

					areas, err := m.List(ctx, manager.Filter{}, manager.Sort{})
					if err != nil {
						return err
					}

					for _, area := range areas {
						if area.ID != id {
							continue
						}

						updated, err := m.ToggleStatus(ctx, area)
						if err != nil {
							return err
						}

						fmt.Printf("Area %d is now %s\n", id, updated.Status)

						return nil
					}

					return fmt.Errorf("area %d not found", id)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete an area",
				ArgsUsage: "<area-id>",
				Action: withManager(func(ctx context.Context, command *cli.Command, m *manager.Manager) error {
					id, err := idArg(command, 0, "area id")
					if err != nil {
						return err
					}

					if err := m.Delete(ctx, id); err != nil {
						return err
					}

					fmt.Printf("Area %d deleted\n", id)

					return nil
				}),
			},
			{
				Name:      "runs",
				Usage:     "List the runs of an area",
				ArgsUsage: "<area-id>",
				Action: withManager(func(ctx context.Context, command *cli.Command, m *manager.Manager) error {
					id, err := idArg(command, 0, "area id")
					if err != nil {
						return err
					}

					runs, err := m.Runs(ctx, id)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tERROR")

					for _, run := range runs {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339), run.Error)
					}

					return w.Flush()
				}),
			},
		},
	}
}

type managerAction func(ctx context.Context, command *cli.Command, m *manager.Manager) error

// withManager runs action with a signed in manager.
func withManager(action managerAction) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		e, err := newEnv(ctx, command)
		if err != nil {
			return err
		}
		defer e.close(ctx)

		if err := e.requireSession(); err != nil {
			return err
		}

		return action(ctx, command, manager.New(manager.BackendFromAPI(e.api), e.logger))
	}
}

func lastRun(at *time.Time) string {
	if at == nil {
		return "never"
	}

	return at.Format(time.RFC3339)
}
