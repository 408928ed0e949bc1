// Package models defines the AREA resources exchanged with the backend REST API.
package models

import (
	"slices"
	"time"
)

// AreaStatus represents the lifecycle state of an area.
type AreaStatus string

const (
	AreaStatusDraft      AreaStatus = "draft"      // Named, steps still being authored
	AreaStatusConfigured AreaStatus = "configured" // Steps persisted, not running
	AreaStatusActive     AreaStatus = "active"     // Accepted by the validate endpoint, running
	AreaStatusDisabled   AreaStatus = "disabled"   // Paused by the user
)

var areaStatuses = []AreaStatus{
	AreaStatusDraft,
	AreaStatusConfigured,
	AreaStatusActive,
	AreaStatusDisabled,
}

func (s AreaStatus) Valid() bool {
	return slices.Contains(areaStatuses, s)
}

// StepKind distinguishes the trigger of an area from its actions.
type StepKind string

const (
	StepKindTrigger  StepKind = "trigger"
	StepKindReaction StepKind = "reaction"
)

// Area is a user-defined workflow: one trigger and one or more actions.
type Area struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"                  validate:"required,min=1,max=255"`
	Description string         `json:"description"`
	Status      AreaStatus     `json:"status"`
	Triggers    []*AreaTrigger `json:"triggers,omitempty"`
	Actions     []*AreaAction  `json:"actions,omitempty"`
	RunCount    int            `json:"run_count"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AreaTrigger is the persisted form of a trigger step.
type AreaTrigger struct {
	ID           int64          `json:"id,omitempty"`
	Area         int64          `json:"area"          validate:"required"`
	Service      string         `json:"service"       validate:"required"`
	TriggerType  string         `json:"trigger_type"  validate:"required"`
	Config       map[string]any `json:"config"`
	IsAuthorized bool           `json:"is_authorized,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// AreaAction is the persisted form of an action step. Actions run in
// OrderIndex order.
type AreaAction struct {
	ID           int64          `json:"id,omitempty"`
	Area         int64          `json:"area"          validate:"required"`
	Service      string         `json:"service"       validate:"required"`
	ActionType   string         `json:"action_type"   validate:"required"`
	Config       map[string]any `json:"config"`
	OrderIndex   int            `json:"order_index"`
	IsAuthorized bool           `json:"is_authorized,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// SortedActions returns the actions ordered by OrderIndex without touching
// the receiver.
func (a *Area) SortedActions() []*AreaAction {
	actions := slices.Clone(a.Actions)
	slices.SortStableFunc(actions, func(x, y *AreaAction) int {
		return x.OrderIndex - y.OrderIndex
	})

	return actions
}

// AuthorizeResult is the answer of the trigger/action authorize endpoints.
type AuthorizeResult struct {
	Authorized       bool   `json:"authorized"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Detail           string `json:"detail,omitempty"`
}

// ValidateResult is the answer of the area validate endpoint.
type ValidateResult struct {
	Status AreaStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}
