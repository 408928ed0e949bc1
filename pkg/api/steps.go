package api

import (
	"context"
	"net/http"

	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/models"
)

const (
	triggersPath = "area-triggers"
	actionsPath  = "area-actions"

	// IdempotencyHeader carries a key that is stable across retries of the
	// same create.
	IdempotencyHeader = "Idempotency-Key"
)

// StepPatch is a trigger or action update. Empty Service and Type are left
// unchanged; Config is always sent.
type StepPatch struct {
	Service string
	Type    string
	Config  map[string]any
}

type Triggers struct {
	doer Doer
}

func (t *Triggers) Create(ctx context.Context, trigger *models.AreaTrigger, idempotencyKey string) (*models.AreaTrigger, error) {
	var created models.AreaTrigger

	err := t.doer.Do(ctx, client.Request{
		Method:  http.MethodPost,
		Path:    triggersPath + "/",
		Body:    trigger,
		Headers: idempotency(idempotencyKey),
	}, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (t *Triggers) Patch(ctx context.Context, id int64, patch StepPatch) (*models.AreaTrigger, error) {
	body := map[string]any{"config": patch.Config}
	if patch.Service != "" {
		body["service"] = patch.Service
	}

	if patch.Type != "" {
		body["trigger_type"] = patch.Type
	}

	var updated models.AreaTrigger

	err := t.doer.Do(ctx, client.Request{Method: http.MethodPatch, Path: itemPath(triggersPath, id), Body: body}, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (t *Triggers) Delete(ctx context.Context, id int64) error {
	return t.doer.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(triggersPath, id)}, nil)
}

// Authorize checks the OAuth grant of a trigger. state is embedded by the
// backend in any authorization URL it returns.
func (t *Triggers) Authorize(ctx context.Context, id int64, state string) (*models.AuthorizeResult, error) {
	return authorize(ctx, t.doer, actionPath(triggersPath, id, "authorize"), state)
}

// Config fetches the field schema of a trigger type.
func (t *Triggers) Config(ctx context.Context, slug string) (*models.EventConfig, error) {
	return eventConfig(ctx, t.doer, slugPath(triggersPath+"/config/", slug, "/"))
}

type Actions struct {
	doer Doer
}

func (a *Actions) Create(ctx context.Context, action *models.AreaAction, idempotencyKey string) (*models.AreaAction, error) {
	var created models.AreaAction

	err := a.doer.Do(ctx, client.Request{
		Method:  http.MethodPost,
		Path:    actionsPath + "/",
		Body:    action,
		Headers: idempotency(idempotencyKey),
	}, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (a *Actions) Patch(ctx context.Context, id int64, patch StepPatch) (*models.AreaAction, error) {
	body := map[string]any{"config": patch.Config}
	if patch.Service != "" {
		body["service"] = patch.Service
	}

	if patch.Type != "" {
		body["action_type"] = patch.Type
	}

	var updated models.AreaAction

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPatch, Path: itemPath(actionsPath, id), Body: body}, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (a *Actions) Delete(ctx context.Context, id int64) error {
	return a.doer.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(actionsPath, id)}, nil)
}

func (a *Actions) Authorize(ctx context.Context, id int64, state string) (*models.AuthorizeResult, error) {
	return authorize(ctx, a.doer, actionPath(actionsPath, id, "authorize"), state)
}

func (a *Actions) Config(ctx context.Context, slug string) (*models.EventConfig, error) {
	return eventConfig(ctx, a.doer, slugPath(actionsPath+"/config/", slug, "/"))
}

// Reorder sets the execution order of the actions of an area.
func (a *Actions) Reorder(ctx context.Context, areaID int64, actionIDs []int64) error {
	return a.doer.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   actionsPath + "/reorder/",
		Body: map[string]any{
			"area":    areaID,
			"actions": actionIDs,
		},
	}, nil)
}

func authorize(ctx context.Context, doer Doer, path string, state string) (*models.AuthorizeResult, error) {
	var result models.AuthorizeResult

	body := map[string]string{}
	if state != "" {
		body["state"] = state
	}

	err := doer.Do(ctx, client.Request{Method: http.MethodPost, Path: path, Body: body}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func eventConfig(ctx context.Context, doer Doer, path string) (*models.EventConfig, error) {
	var config models.EventConfig

	err := doer.Do(ctx, client.Request{Method: http.MethodGet, Path: path}, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func idempotency(key string) map[string]string {
	if key == "" {
		return nil
	}

	return map[string]string{IdempotencyHeader: key}
}
