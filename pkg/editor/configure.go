package editor

import (
	"context"
	"fmt"
	"maps"

	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/otelhelper"
	"github.com/dukex/area/pkg/schema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SelectEvent picks the trigger or action type of a connected step and
// loads its configuration fields. Config restarts from the field defaults.
func (e *Editor) SelectEvent(ctx context.Context, id, event string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.select_event",
		attribute.String(otelhelper.StepIDKey, id), attribute.String(otelhelper.EventKey, event))
	defer span.End()

	e.mu.Lock()
	step := e.find(id)

	var err error

	switch {
	case step == nil:
		err = ErrStepNotFound
	case event == "":
		err = ErrEventRequired
	case step.Busy():
		err = ErrStepBusy
	case !step.IsConnected || step.ConsentPending:
		err = ErrServiceNotConnected
	}

	if err != nil {
		e.mu.Unlock()

		return e.fail(ctx, span, "select_event", id, err)
	}

	kind, service := step.Kind, step.Service
	e.mu.Unlock()

	fields, err := e.catalog.Fields(ctx, kind, service, event)
	if err != nil {
		return e.fail(ctx, span, "select_event", id, err)
	}

	e.mu.Lock()
	step = e.find(id)
	if step == nil || step.Service != service || step.Busy() {
		e.mu.Unlock()

		return e.fail(ctx, span, "select_event", id, ErrStepChanged)
	}

	e.tracker.Cancel(id)

	step.Event = event
	step.Fields = fields
	step.Config = defaultConfig(fields)
	step.invalidate()
	e.mu.Unlock()

	return nil
}

// SetConfig sets one configuration value. Any edit clears validation.
func (e *Editor) SetConfig(id, key string, value any) error {
	return e.SetConfigValues(id, map[string]any{key: value})
}

// SetConfigValues sets several configuration values at once. A nil value
// removes the key.
func (e *Editor) SetConfigValues(id string, values map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.find(id)

	switch {
	case step == nil:
		return &Error{Op: "set_config", StepID: id, Err: ErrStepNotFound}
	case step.Event == "":
		return &Error{Op: "set_config", StepID: id, Err: ErrEventRequired}
	case step.Busy():
		return &Error{Op: "set_config", StepID: id, Err: ErrStepBusy}
	}

	config := maps.Clone(step.Config)
	if config == nil {
		config = map[string]any{}
	}

	for key, value := range values {
		if value == nil {
			delete(config, key)

			continue
		}

		normalized, ok := configValue(value)
		if !ok {
			return &Error{Op: "set_config", StepID: id, Err: fmt.Errorf("%w: %s is %T", ErrInvalidValue, key, value)}
		}

		config[key] = normalized
	}

	e.tracker.Cancel(id)

	step.Config = config
	step.invalidate()

	return nil
}

// ValidateStep checks the step config locally, persists the step (create on
// first validation, patch afterwards) and asks the backend to authorize it.
// A step is validated only once authorization succeeds or an authorization
// URL was handed to the user.
func (e *Editor) ValidateStep(ctx context.Context, id string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.validate_step",
		attribute.String(otelhelper.StepIDKey, id))
	defer span.End()

	e.mu.Lock()
	step := e.find(id)

	var err error

	switch {
	case step == nil:
		err = ErrStepNotFound
	case e.area == nil:
		err = ErrNoArea
	case step.Busy():
		err = ErrStepBusy
	case step.Service == "":
		err = ErrServiceRequired
	case step.Event == "":
		err = ErrEventRequired
	case !step.IsConnected:
		err = ErrServiceNotConnected
	}

	if err == nil {
		err = schema.Validate(step.Event, step.Fields, step.Config)
		if err != nil {
			step.CreateError = err.Error()
		}
	}

	if err != nil {
		e.mu.Unlock()

		return e.fail(ctx, span, "validate_step", id, err)
	}

	if step.CreatedID == 0 && step.createKey == "" {
		step.createKey = uuid.NewString()
	}

	areaID := e.area.ID
	orderIndex := e.actionIndexLocked(id)
	snap := step.clone()
	step.IsValidating = true
	step.IsCreating = step.CreatedID == 0
	step.CreateError = ""
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Int64(otelhelper.AreaIDKey, areaID),
		attribute.String(otelhelper.StepKindKey, string(snap.Kind)),
		attribute.String(otelhelper.ServiceKey, snap.Service),
		attribute.String(otelhelper.EventKey, snap.Event),
	)

	saved, err := e.backend.persist(ctx, areaID, snap, orderIndex)
	if err != nil {
		return e.validationFailed(ctx, id, err)
	}

	span.SetAttributes(attribute.Int64(otelhelper.CreatedIDKey, saved.id))

	e.mu.Lock()
	step = e.find(id)
	if step == nil {
		e.mu.Unlock()
		e.orphaned(ctx, snap.Kind, saved.id, snap.CreatedID == 0)

		return &Error{Op: "validate_step", StepID: id, Err: ErrStepNotFound}
	}

	step.CreatedID = saved.id
	step.IsCreating = false
	e.mu.Unlock()

	attempt := e.tracker.Begin(id, snap.Service)

	result, err := saved.authorize(ctx, attempt.ID)
	if err != nil {
		e.tracker.Forget(attempt.ID)

		return e.validationFailed(ctx, id, err)
	}

	e.mu.Lock()
	step = e.find(id)
	if step == nil {
		e.mu.Unlock()
		e.tracker.Forget(attempt.ID)

		return &Error{Op: "validate_step", StepID: id, Err: ErrStepNotFound}
	}

	step.IsValidating = false

	switch {
	case result.Authorized:
		step.IsValidated = true
		step.IsConnected = true
		step.PendingAuth = false
		step.ConsentMessage = ""
		e.mu.Unlock()
		e.tracker.Forget(attempt.ID)

		e.logger.InfoContext(ctx, "Step validated", "step_id", id, "created_id", saved.id)
		e.notifier.Notify(ctx, LevelSuccess, fmt.Sprintf("%s step validated.", stepLabel(snap.Kind)))

		return nil
	case result.AuthorizationURL != "":
		step.IsValidated = true
		step.PendingAuth = true
		step.ConsentMessage = fmt.Sprintf("Authorize %s in the opened window to finish this step.", snap.Service)
		e.mu.Unlock()

		e.logger.InfoContext(ctx, "Step awaiting external authorization", "step_id", id, "state", attempt.ID)
		e.open(ctx, result.AuthorizationURL, snap.Service)

		return nil
	default:
		e.mu.Unlock()
		e.tracker.Forget(attempt.ID)

		detail := result.Detail
		if detail == "" {
			detail = "the service did not grant access"
		}

		return e.validationFailed(ctx, id, fmt.Errorf("%w: %s", ErrAuthorizationFailed, detail))
	}
}

// validationFailed ends an in-flight validation. IsValidated is left as it
// was.
func (e *Editor) validationFailed(ctx context.Context, id string, cause error) error {
	e.mu.Lock()
	if step := e.find(id); step != nil {
		step.IsValidating = false
		step.IsCreating = false
		step.CreateError = message(cause)
	}
	e.mu.Unlock()

	return e.fail(ctx, trace.SpanFromContext(ctx), "validate_step", id, cause)
}

// orphaned deletes a resource created for a step removed while its
// validation was in flight.
func (e *Editor) orphaned(ctx context.Context, kind models.StepKind, id int64, created bool) {
	if !created {
		return
	}

	if err := e.backend.remove(ctx, kind, id); err != nil {
		e.logger.ErrorContext(ctx, "Failed to delete resource of removed step", "kind", kind, "created_id", id, "error", err)

		e.mu.Lock()
		e.dangling = append(e.dangling, Dangling{Kind: kind, CreatedID: id, Err: err})
		e.mu.Unlock()
	}
}

func stepLabel(kind models.StepKind) string {
	if kind == models.StepKindTrigger {
		return "Trigger"
	}

	return "Action"
}
