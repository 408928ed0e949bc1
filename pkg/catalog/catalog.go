// Package catalog fetches service definitions and event field schemas once
// and keeps them for the editing session.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/area/pkg/models"
)

var ErrEventNotFound = errors.New("event not found in service definition")

// Source is the backend side of the catalog.
type Source interface {
	Definitions(ctx context.Context, slug string) (*models.ServiceDefinition, error)
	TriggerConfig(ctx context.Context, slug string) (*models.EventConfig, error)
	ActionConfig(ctx context.Context, slug string) (*models.EventConfig, error)
}

// Cache stores definitions by service slug.
type Cache interface {
	Get(ctx context.Context, slug string) (*models.ServiceDefinition, bool, error)
	Set(ctx context.Context, slug string, definition *models.ServiceDefinition) error
}

type Catalog struct {
	source Source
	cache  Cache
	logger *slog.Logger
}

func New(source Source, cache Cache, logger *slog.Logger) *Catalog {
	return &Catalog{
		source: source,
		cache:  cache,
		logger: logger.With("module", "catalog"),
	}
}

// Definitions returns the definition of a service, fetching it on first use.
// Cache failures are logged and bypassed.
func (c *Catalog) Definitions(ctx context.Context, slug string) (*models.ServiceDefinition, error) {
	definition, ok, err := c.cache.Get(ctx, slug)
	if err != nil {
		c.logger.WarnContext(ctx, "Definition cache read failed", "service", slug, "error", err)
	}

	if ok {
		return definition, nil
	}

	definition, err = c.source.Definitions(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions of %s: %w", slug, err)
	}

	if err := c.cache.Set(ctx, slug, definition); err != nil {
		c.logger.WarnContext(ctx, "Definition cache write failed", "service", slug, "error", err)
	}

	return definition, nil
}

// Fields returns the configuration fields of an event. Fields embedded in the
// service definition win; otherwise the dedicated config endpoint is used.
func (c *Catalog) Fields(ctx context.Context, kind models.StepKind, service, event string) ([]*models.Field, error) {
	definition, err := c.Definitions(ctx, service)
	if err != nil {
		return nil, err
	}

	eventDefinition, ok := definition.Event(kind, event)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrEventNotFound, service, event)
	}

	if eventDefinition.Fields != nil {
		return eventDefinition.Fields, nil
	}

	var config *models.EventConfig
	if kind == models.StepKindTrigger {
		config, err = c.source.TriggerConfig(ctx, event)
	} else {
		config, err = c.source.ActionConfig(ctx, event)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load config of %s: %w", event, err)
	}

	return config.Fields, nil
}

// Events lists the triggers or actions a service offers.
func (c *Catalog) Events(ctx context.Context, kind models.StepKind, service string) ([]*models.EventDefinition, error) {
	definition, err := c.Definitions(ctx, service)
	if err != nil {
		return nil, err
	}

	if kind == models.StepKindTrigger {
		return definition.Triggers, nil
	}

	return definition.Actions, nil
}
