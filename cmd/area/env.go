package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/catalog"
	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/cmd"
	"github.com/dukex/area/pkg/log"
	"github.com/dukex/area/pkg/session"
	cli "github.com/urfave/cli/v3"
)

// env holds what every command needs to talk to the backend.
type env struct {
	logger  *slog.Logger
	session *session.Session
	api     *api.API
	client  *client.Client
	closers []func(context.Context) error
}

func newEnv(ctx context.Context, command *cli.Command) (*env, error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("area-cli")

	shutdown, err := cmd.NewTracing(ctx, command.Bool("tracing"), "area-cli")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	sess, err := cmd.NewSession(command.String("session-file"), logger)
	if err != nil {
		return nil, err
	}

	a, c, err := cmd.NewAPI(command.String("api-url"), sess, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		logger:  logger,
		session: sess,
		api:     a,
		client:  c,
		closers: []func(context.Context) error{shutdown},
	}, nil
}

// catalog opens the definition cache selected by --cache-url.
func (e *env) catalog(command *cli.Command) (*catalog.Catalog, error) {
	cache, closeCache, err := cmd.NewDefinitionCache(command.String("cache-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to open definition cache: %w", err)
	}

	e.closers = append(e.closers, func(context.Context) error { return closeCache() })

	return catalog.New(e.api.CatalogSource(), cache, e.logger), nil
}

func (e *env) close(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			e.logger.ErrorContext(ctx, "Failed to release resource", "error", err)
		}
	}
}

func (e *env) requireSession() error {
	if !e.session.SignedIn() {
		return fmt.Errorf("not signed in, run `area login` first")
	}

	return nil
}

// idArg parses the positional argument at i as a backend id.
func idArg(command *cli.Command, i int, name string) (int64, error) {
	raw := command.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing %s argument", name)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return id, nil
}
