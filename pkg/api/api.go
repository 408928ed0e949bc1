// Package api maps every AREA backend resource to typed request/response
// functions. Accessors are stateless; all of them may fail with a transport
// error or a *client.APIError.
package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dukex/area/pkg/client"
)

// Doer is the part of *client.Client the accessors need.
type Doer interface {
	Do(ctx context.Context, req client.Request, out any) error
}

// API groups the accessors of every resource.
type API struct {
	Auth            *Auth
	Areas           *Areas
	Triggers        *Triggers
	Actions         *Actions
	Runs            *Runs
	Services        *Services
	Consent         *Consent
	ServiceAccounts *ServiceAccounts
	Webhooks        *Webhooks
}

func New(doer Doer) *API {
	return &API{
		Auth:            &Auth{doer: doer},
		Areas:           &Areas{doer: doer},
		Triggers:        &Triggers{doer: doer},
		Actions:         &Actions{doer: doer},
		Runs:            &Runs{doer: doer},
		Services:        &Services{doer: doer},
		Consent:         &Consent{doer: doer},
		ServiceAccounts: &ServiceAccounts{doer: doer},
		Webhooks:        &Webhooks{doer: doer},
	}
}

func itemPath(collection string, id int64) string {
	return fmt.Sprintf("%s/%d/", collection, id)
}

func actionPath(collection string, id int64, action string) string {
	return fmt.Sprintf("%s/%d/%s/", collection, id, action)
}

func slugPath(prefix, slug, suffix string) string {
	return prefix + url.PathEscape(slug) + suffix
}
