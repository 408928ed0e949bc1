// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/otelhelper"
	"github.com/dukex/area/pkg/session"
)

// NewSession opens the session stored at path, or at the default location
// when path is empty.
func NewSession(path string, logger *slog.Logger) (*session.Session, error) {
	if path == "" {
		path = session.DefaultPath()
	}

	sess, err := session.New(session.NewFileStore(path), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", path, err)
	}

	return sess, nil
}

// NewAPI builds the REST accessors for apiURL on top of sess and installs
// the token refresher on the session.
func NewAPI(apiURL string, sess *session.Session, logger *slog.Logger) (*api.API, *client.Client, error) {
	c, err := client.New(apiURL, sess,
		client.WithLogger(logger),
		client.WithTracer(otelhelper.Tracer("area.client")),
		client.WithUnauthorizedHandler(func(ctx context.Context) {
			logger.WarnContext(ctx, "Session expired, run `area login` to sign in again")
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	a := api.New(c)
	sess.SetRefresher(a.Auth)

	return a, c, nil
}
