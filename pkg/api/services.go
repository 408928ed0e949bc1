package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/models"
)

type Services struct {
	doer Doer
}

// External lists the services AREA integrates with.
func (s *Services) External(ctx context.Context) ([]*models.ExternalService, error) {
	var services []*models.ExternalService

	err := s.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: "external-services/"}, &services)
	if err != nil {
		return nil, err
	}

	return services, nil
}

func (s *Services) Definitions(ctx context.Context, slug string) (*models.ServiceDefinition, error) {
	var definition models.ServiceDefinition

	err := s.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: slugPath("services/", slug, "/definitions/")}, &definition)
	if err != nil {
		return nil, err
	}

	if definition.Service == "" {
		definition.Service = slug
	}

	return &definition, nil
}

type Consent struct {
	doer Doer
}

func (c *Consent) Check(ctx context.Context, slug string) (*models.ConsentStatus, error) {
	var status models.ConsentStatus

	err := c.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: slugPath("consent/", slug, "/")}, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// Request asks the backend for the URL where the user grants consent. state
// is echoed back by the provider once the user is done.
func (c *Consent) Request(ctx context.Context, slug string, state string) (*models.ConsentRequest, error) {
	var consent models.ConsentRequest

	body := map[string]string{}
	if state != "" {
		body["state"] = state
	}

	err := c.doer.Do(ctx, client.Request{Method: http.MethodPost, Path: slugPath("consent/", slug, "/"), Body: body}, &consent)
	if err != nil {
		return nil, err
	}

	return &consent, nil
}

type ServiceAccounts struct {
	doer Doer
}

func (s *ServiceAccounts) List(ctx context.Context) ([]*models.ServiceAccount, error) {
	var accounts []*models.ServiceAccount

	err := s.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: "service-accounts/"}, &accounts)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (s *ServiceAccounts) Disconnect(ctx context.Context, id int64) error {
	return s.doer.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath("service-accounts", id)}, nil)
}

type Runs struct {
	doer Doer
}

// List returns the runs of an area, most recent first.
func (r *Runs) List(ctx context.Context, areaID int64) ([]*models.Run, error) {
	var runs []*models.Run

	err := r.doer.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "runs/",
		Query:  url.Values{"area": {strconv.FormatInt(areaID, 10)}},
	}, &runs)
	if err != nil {
		return nil, err
	}

	return runs, nil
}

type Webhooks struct {
	doer Doer
}

func (w *Webhooks) List(ctx context.Context) ([]*models.Webhook, error) {
	var webhooks []*models.Webhook

	err := w.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: "webhooks/"}, &webhooks)
	if err != nil {
		return nil, err
	}

	return webhooks, nil
}

func (w *Webhooks) Create(ctx context.Context, webhook *models.Webhook) (*models.Webhook, error) {
	var created models.Webhook

	err := w.doer.Do(ctx, client.Request{Method: http.MethodPost, Path: "webhooks/", Body: webhook}, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (w *Webhooks) Delete(ctx context.Context, id int64) error {
	return w.doer.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath("webhooks", id)}, nil)
}
