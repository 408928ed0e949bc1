package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dukex/area/pkg/manager"
	cli "github.com/urfave/cli/v3"
)

func NewServicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "services",
		Usage: "Show and disconnect external services",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List services and their connection status",
				Action: withManager(func(ctx context.Context, _ *cli.Command, m *manager.Manager) error {
					statuses, err := m.Services(ctx)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "SERVICE\tNAME\tCONNECTED\tACCOUNTS")

					for _, status := range statuses {
						accounts := make([]string, 0, len(status.Accounts))
						for _, account := range status.Accounts {
							accounts = append(accounts, fmt.Sprintf("%d:%s", account.ID, account.AccountName))
						}

						fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", status.Service.Slug, status.Service.Name, status.Connected, strings.Join(accounts, ", "))
					}

					return w.Flush()
				}),
			},
			{
				Name:      "disconnect",
				Usage:     "Remove a service account",
				ArgsUsage: "<account-id>",
				Action: withManager(func(ctx context.Context, command *cli.Command, m *manager.Manager) error {
					id, err := idArg(command, 0, "account id")
					if err != nil {
						return err
					}

					if err := m.Disconnect(ctx, id); err != nil {
						return err
					}

					fmt.Printf("Account %d disconnected\n", id)

					return nil
				}),
			},
		},
	}
}

func NewWebhooksCommand() *cli.Command {
	return &cli.Command{
		Name:  "webhooks",
		Usage: "Inspect registered webhooks",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List webhooks",
				Action: func(ctx context.Context, command *cli.Command) error {
					e, err := newEnv(ctx, command)
					if err != nil {
						return err
					}
					defer e.close(ctx)

					if err := e.requireSession(); err != nil {
						return err
					}

					webhooks, err := e.api.Webhooks.List(ctx)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tSERVICE\tURL\tEVENTS\tACTIVE")

					for _, webhook := range webhooks {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", webhook.ID, webhook.Service, webhook.URL, strings.Join(webhook.Events, ","), webhook.IsActive)
					}

					return w.Flush()
				},
			},
		},
	}
}
