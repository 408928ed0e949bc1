package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukex/area/pkg/oauth"
	"github.com/dukex/area/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SelectService picks the service of a step. Event, config and validation are
// reset and the step waits for the user to confirm consent.
func (e *Editor) SelectService(ctx context.Context, id, service string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.select_service",
		attribute.String(otelhelper.StepIDKey, id), attribute.String(otelhelper.ServiceKey, service))
	defer span.End()

	e.mu.Lock()
	step := e.find(id)

	var err error

	switch {
	case step == nil:
		err = ErrStepNotFound
	case service == "":
		err = ErrServiceRequired
	case step.Busy():
		err = ErrStepBusy
	}

	if err != nil {
		e.mu.Unlock()

		return e.fail(ctx, span, "select_service", id, err)
	}

	e.tracker.Cancel(id)

	step.Service = service
	step.Event = ""
	step.Config = map[string]any{}
	step.Fields = nil
	step.IsConnected = false
	step.ConsentPending = true
	step.invalidate()
	e.mu.Unlock()

	return nil
}

// CancelConsent dismisses the consent prompt and clears the service.
func (e *Editor) CancelConsent(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.find(id)
	if step == nil {
		return &Error{Op: "cancel_consent", StepID: id, Err: ErrStepNotFound}
	}

	if !step.ConsentPending {
		return &Error{Op: "cancel_consent", StepID: id, Err: ErrNoConsentPending}
	}

	step.Service = ""
	step.ConsentPending = false

	return nil
}

// ConfirmConsent checks whether the selected service is usable. A service
// that needs an authorization the user has not granted gets a consent URL
// opened and the step waits for the external flow; otherwise the service
// definitions are loaded.
func (e *Editor) ConfirmConsent(ctx context.Context, id string) (Phase, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.confirm_consent",
		attribute.String(otelhelper.StepIDKey, id))
	defer span.End()

	e.mu.Lock()
	step := e.find(id)

	var err error

	switch {
	case step == nil:
		err = ErrStepNotFound
	case step.Busy():
		err = ErrStepBusy
	case !step.ConsentPending:
		err = ErrNoConsentPending
	}

	if err != nil {
		e.mu.Unlock()

		return "", e.fail(ctx, span, "confirm_consent", id, err)
	}

	service := step.Service
	step.ConsentPending = false
	step.IsCheckingAuth = true
	e.mu.Unlock()

	span.SetAttributes(attribute.String(otelhelper.ServiceKey, service))

	if !slices.Contains(e.opts.SkipConsent, service) {
		status, err := e.backend.Consent.Check(ctx, service)
		if err != nil {
			return e.consentFailed(ctx, span, id, service, err)
		}

		if status.NeedsAuthorization && !status.HasConsent {
			return e.requestConsent(ctx, span, id, service)
		}
	}

	return e.connect(ctx, span, id, service)
}

func (e *Editor) requestConsent(ctx context.Context, span trace.Span, id, service string) (Phase, error) {
	attempt := e.tracker.Begin(id, service)
	span.SetAttributes(attribute.String(otelhelper.CorrelationKey, attempt.ID))

	request, err := e.backend.Consent.Request(ctx, service, attempt.ID)
	if err != nil {
		e.tracker.Forget(attempt.ID)

		return e.consentFailed(ctx, span, id, service, err)
	}

	target := request.ConsentURL
	if target == "" {
		target = attempt.InitiateURL
	}

	e.mu.Lock()
	step := e.find(id)
	if step == nil || step.Service != service {
		e.mu.Unlock()
		e.tracker.Forget(attempt.ID)

		return "", e.fail(ctx, span, "confirm_consent", id, ErrStepChanged)
	}

	step.IsCheckingAuth = false
	step.PendingAuth = true
	step.ConsentMessage = fmt.Sprintf("Authorize %s in the opened window, then come back to continue.", service)
	phase := step.Phase()
	e.mu.Unlock()

	e.open(ctx, target, service)

	return phase, nil
}

func (e *Editor) consentFailed(ctx context.Context, span trace.Span, id, service string, cause error) (Phase, error) {
	e.mu.Lock()
	if step := e.find(id); step != nil && step.Service == service {
		step.IsCheckingAuth = false
		step.ConsentPending = true
		step.CreateError = message(cause)
	}
	e.mu.Unlock()

	return "", e.fail(ctx, span, "confirm_consent", id, cause)
}

// connect marks the step's service connected and loads its definitions.
func (e *Editor) connect(ctx context.Context, span trace.Span, id, service string) (Phase, error) {
	_, err := e.catalog.Definitions(ctx, service)

	e.mu.Lock()
	step := e.find(id)
	if step == nil || step.Service != service {
		e.mu.Unlock()

		return "", e.fail(ctx, span, "confirm_consent", id, ErrStepChanged)
	}

	step.IsCheckingAuth = false
	step.PendingAuth = false
	step.ConsentMessage = ""

	if err != nil {
		step.IsConnected = false
		step.ConsentPending = true
		step.CreateError = message(err)
		e.mu.Unlock()

		return "", e.fail(ctx, span, "confirm_consent", id, err)
	}

	step.IsConnected = true
	step.CreateError = ""
	phase := step.Phase()
	e.mu.Unlock()

	return phase, nil
}

func (e *Editor) open(ctx context.Context, target, service string) {
	if e.opener == nil {
		e.notifier.Notify(ctx, LevelInfo, fmt.Sprintf("Open %s to authorize %s.", target, service))

		return
	}

	if err := e.opener.Open(ctx, target); err != nil {
		e.logger.WarnContext(ctx, "Failed to open authorization page", "url", target, "error", err)
		e.notifier.Notify(ctx, LevelInfo, fmt.Sprintf("Open %s to authorize %s.", target, service))

		return
	}

	e.notifier.Notify(ctx, LevelInfo, fmt.Sprintf("Complete the %s authorization in the opened window.", service))
}

// HandleOAuthCompletion applies the result of an external authorization to
// the step that started it. Completions that match no pending attempt, or
// whose step no longer awaits authorization, are ignored with an error and
// touch no step.
func (e *Editor) HandleOAuthCompletion(ctx context.Context, completion oauth.Completion) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.oauth_completion",
		attribute.String(otelhelper.CorrelationKey, completion.CorrelationID))
	defer span.End()

	attempt, err := e.tracker.Resolve(completion)
	if err != nil {
		otelhelper.SetError(span, err)
		e.logger.WarnContext(ctx, "Ignoring OAuth completion", "state", completion.CorrelationID, "error", err)

		return &Error{Op: "oauth_completion", Err: err}
	}

	span.SetAttributes(attribute.String(otelhelper.StepIDKey, attempt.StepID))

	e.mu.Lock()
	step := e.find(attempt.StepID)
	if step == nil || step.Service != attempt.Provider || !step.PendingAuth || step.Busy() {
		e.mu.Unlock()
		e.logger.WarnContext(ctx, "OAuth completion for a step that changed", "step_id", attempt.StepID)

		return &Error{Op: "oauth_completion", StepID: attempt.StepID, Err: ErrStepChanged}
	}

	step.PendingAuth = false
	step.ConsentMessage = ""

	if !completion.Succeeded() {
		cause := completion.Error
		if cause == "" {
			cause = "authorization was not granted"
		}

		step.IsValidated = false
		if step.CreatedID == 0 || step.Event == "" {
			step.ConsentPending = true
		}

		step.CreateError = fmt.Sprintf("%s authorization failed: %s", attempt.Provider, cause)
		msg := step.CreateError
		e.mu.Unlock()

		err := fmt.Errorf("%w: %s", ErrAuthorizationFailed, cause)
		otelhelper.SetError(span, err)
		e.notifier.Notify(ctx, LevelError, msg)

		return &Error{Op: "oauth_completion", StepID: attempt.StepID, Err: err}
	}

	if step.CreatedID != 0 && step.Event != "" {
		step.IsConnected = true
		step.IsValidated = true
		step.CreateError = ""
		e.mu.Unlock()

		e.notifier.Notify(ctx, LevelSuccess, fmt.Sprintf("%s connected.", attempt.Provider))

		return nil
	}

	step.IsCheckingAuth = true
	e.mu.Unlock()

	if _, err := e.connect(ctx, span, attempt.StepID, attempt.Provider); err != nil {
		return err
	}

	e.notifier.Notify(ctx, LevelSuccess, fmt.Sprintf("%s connected.", attempt.Provider))

	return nil
}
