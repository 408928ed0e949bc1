package main

import (
	"context"
	"fmt"

	"github.com/dukex/area/pkg/fieldoptions"
	"github.com/dukex/area/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewOptionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "options",
		Usage:     "Show the choices offered for a step configuration field",
		ArgsUsage: "<trigger|reaction> <service> <field>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "event",
				Usage: "Event slug, used to describe the fallback input",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 3 {
				return fmt.Errorf("expected <trigger|reaction> <service> <field>")
			}

			kind := models.StepKind(command.Args().Get(0))
			if kind != models.StepKindTrigger && kind != models.StepKindReaction {
				return fmt.Errorf("unknown step kind %q", kind)
			}

			key := fieldoptions.Key{Kind: kind, Service: command.Args().Get(1), Field: command.Args().Get(2)}

			e, err := newEnv(ctx, command)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.requireSession(); err != nil {
				return err
			}

			var field *models.Field

			if event := command.String("event"); event != "" {
				cat, err := e.catalog(command)
				if err != nil {
					return err
				}

				fields, err := cat.Fields(ctx, kind, key.Service, event)
				if err != nil {
					return err
				}

				for _, f := range fields {
					if f.Key == key.Field {
						field = f
					}
				}
			}

			resolver := fieldoptions.NewResolver(fieldoptions.DefaultRegistry(), e.client, e.logger)
			input := resolver.Resolve(ctx, key, field)

			if input.Dynamic {
				fmt.Printf("%s options for %s/%s:\n", key.Kind, key.Service, key.Field)
			} else {
				fmt.Printf("No dynamic source for %s/%s, input: %s\n", key.Service, key.Field, input.Kind)
			}

			for _, option := range input.Options {
				fmt.Printf("  %s\t%s\n", option.Value, option.Label)
			}

			return nil
		},
	}
}
