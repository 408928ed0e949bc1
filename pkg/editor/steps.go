package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// AddTrigger adds the trigger step. An area has exactly one, always first.
func (e *Editor) AddTrigger() (Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, step := range e.steps {
		if step.Kind == models.StepKindTrigger {
			return Step{}, &Error{Op: "add_trigger", Err: ErrTriggerExists}
		}
	}

	step := &Step{ID: e.nextID(models.StepKindTrigger), Kind: models.StepKindTrigger, Config: map[string]any{}}
	e.steps = slices.Insert(e.steps, 0, step)

	return step.clone(), nil
}

// AddAction appends an action. The previous step must be validated with its
// service and event set, and no step may have an operation in flight.
func (e *Editor) AddAction() (Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.steps) == 0 {
		return Step{}, &Error{Op: "add_action", Err: ErrNoTrigger}
	}

	for _, step := range e.steps {
		if step.Busy() {
			return Step{}, &Error{Op: "add_action", StepID: step.ID, Err: ErrOperationInFlight}
		}
	}

	last := e.steps[len(e.steps)-1]
	if !last.IsValidated || last.Service == "" || last.Event == "" {
		return Step{}, &Error{Op: "add_action", StepID: last.ID, Err: ErrPreviousStepIncomplete}
	}

	step := &Step{ID: e.nextID(models.StepKindReaction), Kind: models.StepKindReaction, Config: map[string]any{}}
	e.steps = append(e.steps, step)

	return step.clone(), nil
}

// RemoveStep drops a step from the editor first, then deletes its backend
// resource if it has one. A failed delete is kept as Dangling and reported;
// the step stays removed.
func (e *Editor) RemoveStep(ctx context.Context, id string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.remove_step",
		attribute.String(otelhelper.StepIDKey, id))
	defer span.End()

	e.mu.Lock()
	i := e.index(id)
	if i < 0 {
		e.mu.Unlock()

		return e.fail(ctx, span, "remove_step", id, ErrStepNotFound)
	}

	step := e.steps[i]

	var err error

	switch {
	case step.Kind == models.StepKindTrigger && e.countLocked(models.StepKindTrigger) == 1:
		err = ErrLastTrigger
	case step.Busy():
		err = ErrStepBusy
	}

	if err != nil {
		e.mu.Unlock()

		return e.fail(ctx, span, "remove_step", id, err)
	}

	e.steps = slices.Delete(e.steps, i, i+1)
	e.tracker.Cancel(id)
	kind, createdID := step.Kind, step.CreatedID
	e.mu.Unlock()

	if createdID == 0 {
		return nil
	}

	span.SetAttributes(attribute.Int64(otelhelper.CreatedIDKey, createdID))

	if err := e.backend.remove(ctx, kind, createdID); err != nil {
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Backend delete failed, resource left dangling",
			"step_id", id, "kind", kind, "created_id", createdID, "error", err)

		e.mu.Lock()
		e.dangling = append(e.dangling, Dangling{StepID: id, Kind: kind, CreatedID: createdID, Err: err})
		e.mu.Unlock()

		e.notifier.Notify(ctx, LevelError,
			fmt.Sprintf("Step removed, but the server copy (%s %d) could not be deleted: %s", kind, createdID, message(err)))

		return nil
	}

	e.logger.InfoContext(ctx, "Step removed", "step_id", id, "created_id", createdID)

	return nil
}

// MoveAction moves an action to position among the actions. When every
// action is persisted the new order is sent to the backend.
func (e *Editor) MoveAction(ctx context.Context, id string, position int) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.move_action",
		attribute.String(otelhelper.StepIDKey, id))
	defer span.End()

	e.mu.Lock()
	i := e.index(id)
	if i < 0 || e.steps[i].Kind != models.StepKindReaction {
		e.mu.Unlock()

		return e.fail(ctx, span, "move_action", id, ErrStepNotFound)
	}

	triggers := e.countLocked(models.StepKindTrigger)
	target := triggers + position

	if position < 0 || target >= len(e.steps) {
		e.mu.Unlock()

		return e.fail(ctx, span, "move_action", id, ErrInvalidIndex)
	}

	step := e.steps[i]
	e.steps = slices.Delete(e.steps, i, i+1)
	e.steps = slices.Insert(e.steps, target, step)

	ids := make([]int64, 0, len(e.steps))
	for _, s := range e.steps {
		if s.Kind != models.StepKindReaction {
			continue
		}

		if s.CreatedID == 0 {
			ids = nil

			break
		}

		ids = append(ids, s.CreatedID)
	}

	var areaID int64
	if e.area != nil {
		areaID = e.area.ID
	}
	e.mu.Unlock()

	if len(ids) == 0 || areaID == 0 {
		return nil
	}

	if err := e.backend.Actions.Reorder(ctx, areaID, ids); err != nil {
		return e.fail(ctx, span, "move_action", id, err)
	}

	return nil
}

func (e *Editor) countLocked(kind models.StepKind) int {
	n := 0

	for _, step := range e.steps {
		if step.Kind == kind {
			n++
		}
	}

	return n
}

// actionIndexLocked is the position of step among the actions.
func (e *Editor) actionIndexLocked(id string) int {
	n := 0

	for _, step := range e.steps {
		if step.ID == id {
			return n
		}

		if step.Kind == models.StepKindReaction {
			n++
		}
	}

	return n
}
