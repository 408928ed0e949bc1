// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/area/pkg/models"
)

// CreateTestArea creates a test Area with default values that can be overridden.
func CreateTestArea(overrides ...func(*models.Area)) *models.Area {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	area := &models.Area{
		ID:        1,
		Name:      "Test Area",
		Status:    models.AreaStatusDraft,
		CreatedAt: created,
		UpdatedAt: created,
	}

	for _, override := range overrides {
		override(area)
	}

	return area
}

func WithAreaID(id int64) func(*models.Area) {
	return func(a *models.Area) {
		a.ID = id
	}
}

func WithName(name, description string) func(*models.Area) {
	return func(a *models.Area) {
		a.Name = name
		a.Description = description
	}
}

func WithStatus(status models.AreaStatus) func(*models.Area) {
	return func(a *models.Area) {
		a.Status = status
	}
}

// WithRuns sets the run counter and the last run time.
func WithRuns(count int, last time.Time) func(*models.Area) {
	return func(a *models.Area) {
		a.RunCount = count
		a.LastRunAt = &last
	}
}

// WithTimestamps sets creation and update times relative to the default
// creation time.
func WithTimestamps(created, updated time.Duration) func(*models.Area) {
	return func(a *models.Area) {
		a.CreatedAt = a.CreatedAt.Add(created)
		a.UpdatedAt = a.CreatedAt.Add(updated)
	}
}

// WithTrigger attaches a persisted trigger.
func WithTrigger(id int64, service, triggerType string, config map[string]any) func(*models.Area) {
	return func(a *models.Area) {
		a.Triggers = append(a.Triggers, &models.AreaTrigger{
			ID:          id,
			Area:        a.ID,
			Service:     service,
			TriggerType: triggerType,
			Config:      config,
		})
	}
}

// WithAction attaches a persisted action at order.
func WithAction(id int64, service, actionType string, order int, config map[string]any) func(*models.Area) {
	return func(a *models.Area) {
		a.Actions = append(a.Actions, &models.AreaAction{
			ID:         id,
			Area:       a.ID,
			Service:    service,
			ActionType: actionType,
			OrderIndex: order,
			Config:     config,
		})
	}
}

// CreateTestDefinition creates a service definition whose events embed the
// given fields.
func CreateTestDefinition(service string, triggers, actions map[string][]*models.Field) *models.ServiceDefinition {
	definition := &models.ServiceDefinition{Service: service}

	for slug, fields := range triggers {
		definition.Triggers = append(definition.Triggers, &models.EventDefinition{Slug: slug, Fields: fields})
	}

	for slug, fields := range actions {
		definition.Actions = append(definition.Actions, &models.EventDefinition{Slug: slug, Fields: fields})
	}

	return definition
}

// RequiredText is a required free text field.
func RequiredText(key string) *models.Field {
	return &models.Field{Key: key, Label: key, Type: models.FieldTypeText, Required: true}
}
