package models

import "time"

// ExternalService is a platform AREA integrates with (github, slack, ...).
type ExternalService struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	RequiresAuth bool   `json:"requires_auth"`
	IconURL      string `json:"icon_url,omitempty"`
}

// ServiceDefinition is the static catalog of triggers and actions of a
// service. The client never mutates it.
type ServiceDefinition struct {
	Service  string             `json:"service"`
	Triggers []*EventDefinition `json:"triggers"`
	Actions  []*EventDefinition `json:"actions"`
}

// Event returns the trigger or action definition with the given slug.
func (d *ServiceDefinition) Event(kind StepKind, slug string) (*EventDefinition, bool) {
	events := d.Actions
	if kind == StepKindTrigger {
		events = d.Triggers
	}

	for _, event := range events {
		if event.Slug == slug {
			return event, true
		}
	}

	return nil, false
}

// EventDefinition describes one trigger type or action type. Fields is nil
// when the schema must be fetched from the dedicated config endpoint.
type EventDefinition struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Fields      []*Field `json:"fields,omitempty"`
}

// EventConfig is the payload of the area-triggers/config and
// area-actions/config endpoints.
type EventConfig struct {
	Slug   string   `json:"slug"`
	Fields []*Field `json:"fields"`
}

// ServiceAccount is an OAuth credential a user linked to a service.
type ServiceAccount struct {
	ID          int64     `json:"id"`
	Service     string    `json:"service"`
	AccountName string    `json:"account_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConsentStatus tells whether the user already consented to a service and
// whether OAuth authorization is still needed.
type ConsentStatus struct {
	HasConsent         bool `json:"has_consent"`
	NeedsAuthorization bool `json:"needs_authorization"`
}

type ConsentRequest struct {
	ConsentURL string `json:"consent_url"`
}

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}
