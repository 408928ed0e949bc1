// Package editor holds the state machine behind the area editor: an ordered
// list of steps, one trigger followed by actions, each walking through
// service selection, consent, event selection, configuration and validation
// against the backend.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/oauth"
	"github.com/dukex/area/pkg/otelhelper"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// alreadyActive is the error text the backend answers when validating an
// area that is already active.
const alreadyActive = "AREA is already active"

// Options tune editor policies.
type Options struct {
	// SkipConsent lists services whose consent check is skipped.
	SkipConsent []string
	// BlockActivationOnPendingAuth refuses Activate while an external
	// authorization is pending.
	BlockActivationOnPendingAuth bool
}

// DefaultOptions skips consent for google, whose authorization happens at
// sign in.
func DefaultOptions() Options {
	return Options{SkipConsent: []string{"google"}}
}

// Dangling is a backend resource whose delete failed after the step was
// removed locally.
type Dangling struct {
	StepID    string
	Kind      models.StepKind
	CreatedID int64
	Err       error
}

// Editor is safe for concurrent use. Backend calls run without holding the
// lock; their continuations look the step up again by id and drop their
// result when the step is gone.
type Editor struct {
	backend  Backend
	catalog  Catalog
	tracker  *oauth.Tracker
	opener   Opener
	notifier Notifier
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger
	opts     Options

	mu       sync.Mutex
	area     *models.Area
	steps    []*Step
	seq      int
	dangling []Dangling
}

// Config carries the editor collaborators. Tracker, Opener, Notifier, Tracer
// and Logger are optional.
type Config struct {
	Backend  Backend
	Catalog  Catalog
	Tracker  *oauth.Tracker
	Opener   Opener
	Notifier Notifier
	Tracer   trace.Tracer
	Logger   *slog.Logger
	Options  Options
}

func New(cfg Config) *Editor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("module", "editor")

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier(logger)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otelhelper.Tracer("area.editor")
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = oauth.NewTracker("", 0)
	}

	return &Editor{
		backend:  cfg.Backend,
		catalog:  cfg.Catalog,
		tracker:  tracker,
		opener:   cfg.Opener,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   tracer,
		logger:   logger,
		opts:     cfg.Options,
	}
}

// Area returns a copy of the area being edited, or nil.
func (e *Editor) Area() *models.Area {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.area == nil {
		return nil
	}

	area := *e.area

	return &area
}

// Steps returns a snapshot of the steps in order.
func (e *Editor) Steps() []Step {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Step, 0, len(e.steps))
	for _, step := range e.steps {
		out = append(out, step.clone())
	}

	return out
}

func (e *Editor) Step(id string) (Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.find(id)
	if step == nil {
		return Step{}, false
	}

	return step.clone(), true
}

// Dangling lists backend resources left behind by failed deletes.
func (e *Editor) Dangling() []Dangling {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.dangling)
}

// CreateAreaInput is the first form of the editor.
type CreateAreaInput struct {
	Name        string `validate:"required,min=1,max=255"`
	Description string `validate:"max=2000"`
}

// CreateArea persists a draft area. Steps can only be persisted once it
// exists.
func (e *Editor) CreateArea(ctx context.Context, input CreateAreaInput) (*models.Area, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.create_area",
		attribute.String(otelhelper.AreaNameKey, input.Name))
	defer span.End()

	if err := e.validate.Struct(input); err != nil {
		return nil, e.fail(ctx, span, "create_area", "", fmt.Errorf("invalid area: %w", err))
	}

	e.mu.Lock()
	exists := e.area != nil
	e.mu.Unlock()

	if exists {
		return nil, e.fail(ctx, span, "create_area", "", ErrAreaExists)
	}

	area, err := e.backend.Areas.Create(ctx, api.CreateAreaRequest{
		Name:        input.Name,
		Description: input.Description,
		Status:      models.AreaStatusDraft,
	})
	if err != nil {
		return nil, e.fail(ctx, span, "create_area", "", err)
	}

	e.mu.Lock()
	e.area = area
	e.mu.Unlock()

	span.SetAttributes(attribute.Int64(otelhelper.AreaIDKey, area.ID))
	e.logger.InfoContext(ctx, "Area created", "area_id", area.ID, "name", area.Name)

	return e.Area(), nil
}

// Load replaces the editor state with an existing area. Every persisted step
// comes back connected and validated; actions follow their order index.
// Loading is refused while an operation on a step is in flight, and loaded
// steps never reuse the ids of the steps they replace.
func (e *Editor) Load(ctx context.Context, areaID int64) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.load",
		attribute.Int64(otelhelper.AreaIDKey, areaID))
	defer span.End()

	e.mu.Lock()
	busy := e.busyLocked()
	e.mu.Unlock()

	if busy {
		return e.fail(ctx, span, "load", "", ErrOperationInFlight)
	}

	area, err := e.backend.Areas.Get(ctx, areaID)
	if err != nil {
		return e.fail(ctx, span, "load", "", err)
	}

	steps := make([]*Step, 0, len(area.Triggers)+len(area.Actions))

	for _, trigger := range area.Triggers {
		steps = append(steps, e.loadedStep(ctx, models.StepKindTrigger, trigger.ID, trigger.Service, trigger.TriggerType, trigger.Config))
	}

	for _, action := range area.SortedActions() {
		steps = append(steps, e.loadedStep(ctx, models.StepKindReaction, action.ID, action.Service, action.ActionType, action.Config))
	}

	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()

		return e.fail(ctx, span, "load", "", ErrOperationInFlight)
	}

	for _, step := range e.steps {
		e.tracker.Cancel(step.ID)
	}

	for _, step := range steps {
		step.ID = e.nextID(step.Kind)
	}

	e.area = area
	e.steps = steps
	e.dangling = nil
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Area loaded", "area_id", area.ID, "steps", len(steps))

	return nil
}

func (e *Editor) loadedStep(ctx context.Context, kind models.StepKind, id int64, service, event string, config map[string]any) *Step {
	fields, err := e.catalog.Fields(ctx, kind, service, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load step fields", "service", service, "event", event, "error", err)
	}

	if config == nil {
		config = map[string]any{}
	}

	return &Step{
		Kind:        kind,
		Service:     service,
		Event:       event,
		Config:      config,
		Fields:      fields,
		CreatedID:   id,
		IsConnected: true,
		IsValidated: true,
	}
}

// Ready runs the local activation checks without contacting the backend.
func (e *Editor) Ready() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.readyLocked()
}

func (e *Editor) readyLocked() error {
	if e.area == nil {
		return ErrNoArea
	}

	triggers, actions := 0, 0

	for _, step := range e.steps {
		if step.Busy() {
			return ErrOperationInFlight
		}

		if !step.IsValidated {
			return ErrStepsNotValidated
		}

		if e.opts.BlockActivationOnPendingAuth && step.PendingAuth {
			return ErrAuthorizationPending
		}

		if step.Kind == models.StepKindTrigger {
			triggers++
		} else {
			actions++
		}
	}

	if triggers == 0 {
		return ErrTriggerRequired
	}

	if actions == 0 {
		return ErrActionRequired
	}

	return nil
}

// Activate turns the area on. Local checks run first and cost no request; an
// area the backend already reports as active counts as success.
func (e *Editor) Activate(ctx context.Context) (*models.Area, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.activate")
	defer span.End()

	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()

		return nil, e.fail(ctx, span, "activate", "", err)
	}

	areaID := e.area.ID
	pending := e.pendingAuthLocked()
	e.mu.Unlock()

	span.SetAttributes(attribute.Int64(otelhelper.AreaIDKey, areaID))

	if pending {
		e.logger.WarnContext(ctx, "Activating with an authorization still pending", "area_id", areaID)
	}

	current, err := e.backend.Areas.Get(ctx, areaID)
	if err != nil {
		return nil, e.fail(ctx, span, "activate", "", err)
	}

	if current.Status != models.AreaStatusActive {
		_, err := e.backend.Areas.Validate(ctx, areaID)
		if err != nil && !isAlreadyActive(err) {
			return nil, e.fail(ctx, span, "activate", "", err)
		}
	}

	e.mu.Lock()
	if e.area != nil && e.area.ID == areaID {
		e.area.Status = models.AreaStatusActive
	}
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Area activated", "area_id", areaID)
	e.notifier.Notify(ctx, LevelSuccess, "AREA activated successfully.")

	return e.Area(), nil
}

func (e *Editor) busyLocked() bool {
	return slices.ContainsFunc(e.steps, func(step *Step) bool { return step.Busy() })
}

func (e *Editor) pendingAuthLocked() bool {
	for _, step := range e.steps {
		if step.PendingAuth {
			return true
		}
	}

	return false
}

func isAlreadyActive(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Status == http.StatusInternalServerError && apiErr.Contains(alreadyActive)
}

// find returns the live step with id. Callers hold e.mu.
func (e *Editor) find(id string) *Step {
	for _, step := range e.steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

func (e *Editor) index(id string) int {
	return slices.IndexFunc(e.steps, func(step *Step) bool { return step.ID == id })
}

func (e *Editor) nextID(kind models.StepKind) string {
	e.seq++

	return stepID(kind, e.seq)
}

func stepID(kind models.StepKind, seq int) string {
	prefix := "action"
	if kind == models.StepKindTrigger {
		prefix = "trigger"
	}

	return prefix + "-" + strconv.Itoa(seq)
}

// fail records err on the span, notifies the user and wraps it with the
// operation context.
func (e *Editor) fail(ctx context.Context, span trace.Span, op, stepID string, err error) error {
	otelhelper.SetError(span, err)

	if IsLocal(err) {
		e.logger.DebugContext(ctx, "Editor operation refused", "op", op, "step_id", stepID, "error", err)
	} else {
		e.logger.ErrorContext(ctx, "Editor operation failed", "op", op, "step_id", stepID, "error", err)
	}

	e.notifier.Notify(ctx, LevelError, message(err))

	return &Error{Op: op, StepID: stepID, Err: err}
}

// message is the user facing text of err.
func message(err error) string {
	if IsLocal(err) || errors.Is(err, ErrAuthorizationFailed) {
		return upperFirst(err.Error())
	}

	return client.Message(err)
}

func upperFirst(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}

	return string(s[0]-'a'+'A') + s[1:]
}
