package api

import (
	"context"

	"github.com/dukex/area/pkg/models"
)

// CatalogSource serves service definitions and event configs to the catalog.
type CatalogSource struct {
	api *API
}

func (a *API) CatalogSource() *CatalogSource {
	return &CatalogSource{api: a}
}

func (s *CatalogSource) Definitions(ctx context.Context, slug string) (*models.ServiceDefinition, error) {
	return s.api.Services.Definitions(ctx, slug)
}

func (s *CatalogSource) TriggerConfig(ctx context.Context, slug string) (*models.EventConfig, error) {
	return s.api.Triggers.Config(ctx, slug)
}

func (s *CatalogSource) ActionConfig(ctx context.Context, slug string) (*models.EventConfig, error) {
	return s.api.Actions.Config(ctx, slug)
}
