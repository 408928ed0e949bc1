package editor_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dukex/area/pkg/editor"
	"github.com/dukex/area/pkg/mocks"
	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/oauth"
	"github.com/dukex/area/pkg/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// validTrigger creates "Issue Notifier" with a validated github trigger.
func validTrigger(t *testing.T, h *harness) string {
	t.Helper()

	ctx := t.Context()

	_, err := h.editor.CreateArea(ctx, editor.CreateAreaInput{Name: "Issue Notifier"})
	require.NoError(t, err)

	step, err := h.editor.AddTrigger()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, step.ID, "github"))

	phase, err := h.editor.ConfirmConsent(ctx, step.ID)
	require.NoError(t, err)
	require.Equal(t, editor.PhaseDefinitionsLoaded, phase)

	require.NoError(t, h.editor.SelectEvent(ctx, step.ID, "github.new_issue"))
	require.NoError(t, h.editor.ValidateStep(ctx, step.ID))

	return step.ID
}

// validAction appends a validated google action after validTrigger.
func validAction(t *testing.T, h *harness) string {
	t.Helper()

	ctx := t.Context()

	step, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, step.ID, "google"))

	_, err = h.editor.ConfirmConsent(ctx, step.ID)
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectEvent(ctx, step.ID, "google.create_event"))
	require.NoError(t, h.editor.SetConfig(step.ID, "title", "Triage"))
	require.NoError(t, h.editor.ValidateStep(ctx, step.ID))

	return step.ID
}

// persistedArea seeds the backend with an area holding one trigger and two
// actions stored out of order.
func persistedArea(backend *fakeBackend) {
	backend.area = models.Area{ID: 7, Name: "Deploy notifier", Status: models.AreaStatusConfigured}
	backend.triggers[10] = &models.AreaTrigger{ID: 10, Area: 7, Service: "github", TriggerType: "github.new_issue", Config: map[string]any{}}
	backend.actions[12] = &models.AreaAction{ID: 12, Area: 7, Service: "google", ActionType: "google.create_event", OrderIndex: 1, Config: map[string]any{"title": "second"}}
	backend.actions[11] = &models.AreaAction{ID: 11, Area: 7, Service: "slack", ActionType: "slack.send_message", OrderIndex: 0, Config: map[string]any{"channel": "#general"}}
}

func TestEditor_TriggerIsRequiredAndPermanent(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	_, err := h.editor.AddAction()
	require.ErrorIs(t, err, editor.ErrNoTrigger)

	trigger, err := h.editor.AddTrigger()
	require.NoError(t, err)
	assert.Equal(t, models.StepKindTrigger, trigger.Kind)
	assert.Equal(t, editor.PhaseEmpty, trigger.Phase())

	_, err = h.editor.AddTrigger()
	require.ErrorIs(t, err, editor.ErrTriggerExists)

	err = h.editor.RemoveStep(t.Context(), trigger.ID)
	require.ErrorIs(t, err, editor.ErrLastTrigger)
	assert.True(t, editor.IsLocal(err))
	assert.Equal(t, editor.LevelError, h.notifier.last().level)

	steps := h.editor.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepKindTrigger, steps[0].Kind)
	assert.Zero(t, h.backend.total())
}

func TestEditor_AddActionNeedsValidatedPreviousStep(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	_, err := h.editor.AddTrigger()
	require.NoError(t, err)

	_, err = h.editor.AddAction()
	require.ErrorIs(t, err, editor.ErrPreviousStepIncomplete)
}

func TestEditor_EditsClearValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(t *testing.T, e *editor.Editor, id string) error
	}{
		{
			name: "config",
			edit: func(_ *testing.T, e *editor.Editor, id string) error {
				return e.SetConfig(id, "channel", "#random")
			},
		},
		{
			name: "event",
			edit: func(t *testing.T, e *editor.Editor, id string) error {
				return e.SelectEvent(t.Context(), id, "slack.send_message")
			},
		},
		{
			name: "service",
			edit: func(t *testing.T, e *editor.Editor, id string) error {
				return e.SelectService(t.Context(), id, "slack")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			persistedArea(backend)
			h := newHarness(t, backend, nil, editor.DefaultOptions())

			require.NoError(t, h.editor.Load(t.Context(), 7))

			steps := h.editor.Steps()
			require.Len(t, steps, 3)

			action := steps[1]
			require.True(t, action.IsValidated)

			require.NoError(t, tt.edit(t, h.editor, action.ID))

			step, ok := h.editor.Step(action.ID)
			require.True(t, ok)
			assert.False(t, step.IsValidated)
			assert.Equal(t, int64(11), step.CreatedID)
		})
	}
}

func TestEditor_Load(t *testing.T) {
	backend := newFakeBackend()
	persistedArea(backend)
	h := newHarness(t, backend, nil, editor.DefaultOptions())

	require.NoError(t, h.editor.Load(t.Context(), 7))

	area := h.editor.Area()
	require.NotNil(t, area)
	assert.Equal(t, int64(7), area.ID)

	steps := h.editor.Steps()
	require.Len(t, steps, 3)

	assert.Equal(t, models.StepKindTrigger, steps[0].Kind)
	assert.Equal(t, int64(11), steps[1].CreatedID)
	assert.Equal(t, int64(12), steps[2].CreatedID)

	for _, step := range steps {
		assert.True(t, step.IsValidated, step.ID)
		assert.True(t, step.IsConnected, step.ID)
		assert.Equal(t, editor.PhaseValidated, step.Phase())
	}

	// slack fields come from the action config endpoint, the others are embedded.
	assert.Equal(t, 1, backend.count(http.MethodGet+" /area-actions/config/slack.send_message/"))

	field, ok := steps[1].Field("channel")
	require.True(t, ok)
	assert.True(t, field.Required)
}

func TestEditor_ValidateTriggerScenario(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	id := validTrigger(t, h)

	step, ok := h.editor.Step(id)
	require.True(t, ok)
	assert.True(t, step.IsValidated)
	assert.Equal(t, int64(10), step.CreatedID)
	assert.Equal(t, editor.PhaseValidated, step.Phase())

	assert.Equal(t, 1, h.backend.count(http.MethodPost+" /area-triggers/"))
	assert.Equal(t, 1, h.backend.count(http.MethodPost+" /area-triggers/10/authorize/"))
	keys := h.backend.createKeys()
	require.Len(t, keys, 1)
	assert.NotEqual(t, id, keys[0])
	assert.Equal(t, editor.LevelSuccess, h.notifier.last().level)
}

func TestEditor_RevalidatePatches(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	id := validTrigger(t, h)

	for range 2 {
		require.NoError(t, h.editor.ValidateStep(t.Context(), id))

		step, _ := h.editor.Step(id)
		assert.Equal(t, int64(10), step.CreatedID)
		assert.True(t, step.IsValidated)
	}

	assert.Equal(t, 1, h.backend.count(http.MethodPost+" /area-triggers/"))
	assert.Equal(t, 2, h.backend.count(http.MethodPatch+" /area-triggers/10/"))
}

func TestEditor_ValidateRequiresArea(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	step, err := h.editor.AddTrigger()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(t.Context(), step.ID, "github"))
	_, err = h.editor.ConfirmConsent(t.Context(), step.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(t.Context(), step.ID, "github.new_issue"))

	err = h.editor.ValidateStep(t.Context(), step.ID)
	require.ErrorIs(t, err, editor.ErrNoArea)
	assert.Zero(t, h.backend.count(http.MethodPost+" /area-triggers/"))
}

func TestEditor_RequiredFieldsStopBeforeBackend(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())
	ctx := t.Context()

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
	_, err = h.editor.ConfirmConsent(ctx, action.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))

	before := h.backend.total()

	err = h.editor.ValidateStep(ctx, action.ID)
	require.ErrorIs(t, err, schema.ErrInvalidConfig)
	assert.True(t, editor.IsLocal(err))
	assert.Equal(t, before, h.backend.total())

	step, _ := h.editor.Step(action.ID)
	assert.False(t, step.IsValidated)
	assert.Contains(t, step.CreateError, "channel")
}

func TestEditor_BackendFailureKeepsValidation(t *testing.T) {
	backend := newFakeBackend()
	backend.createAction = &reply{http.StatusBadRequest, map[string]any{"channel": []string{"Unknown channel"}}}
	h := newHarness(t, backend, nil, editor.DefaultOptions())
	ctx := t.Context()

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
	_, err = h.editor.ConfirmConsent(ctx, action.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))
	require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#nope"))

	err = h.editor.ValidateStep(ctx, action.ID)
	require.Error(t, err)
	assert.False(t, editor.IsLocal(err))

	step, _ := h.editor.Step(action.ID)
	assert.False(t, step.IsValidated)
	assert.False(t, step.Busy())
	assert.Equal(t, "channel: Unknown channel", step.CreateError)
	assert.Zero(t, step.CreatedID)
	assert.Equal(t, notice{editor.LevelError, "channel: Unknown channel"}, h.notifier.last())
}

func TestEditor_AuthorizationURLOpensBrowser(t *testing.T) {
	backend := newFakeBackend()
	backend.authorizeAction = &reply{http.StatusOK, models.AuthorizeResult{AuthorizationURL: "https://slack.example/oauth"}}

	opener := &mocks.MockOpener{}
	opener.On("Open", mock.Anything, "https://slack.example/oauth").Return(nil).Once()

	h := newHarness(t, backend, opener, editor.DefaultOptions())
	ctx := t.Context()

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
	_, err = h.editor.ConfirmConsent(ctx, action.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))
	require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#general"))

	require.NoError(t, h.editor.ValidateStep(ctx, action.ID))
	opener.AssertExpectations(t)

	step, _ := h.editor.Step(action.ID)
	assert.True(t, step.IsValidated)
	assert.True(t, step.PendingAuth)
	assert.NotEmpty(t, step.ConsentMessage)

	last := h.notifier.last()
	assert.Equal(t, editor.LevelInfo, last.level)
	assert.Contains(t, last.message, "Complete the slack authorization")

	state := backend.lastState()
	require.NotEmpty(t, state)
	assert.True(t, h.tracker.Pending(action.ID))

	err = h.editor.HandleOAuthCompletion(ctx, oauth.Completion{CorrelationID: "unknown", Type: oauth.MessageSuccess})
	require.ErrorIs(t, err, oauth.ErrUnknownAttempt)

	require.NoError(t, h.editor.HandleOAuthCompletion(ctx, oauth.Completion{CorrelationID: state, Type: oauth.MessageSuccess, Provider: "slack"}))

	step, _ = h.editor.Step(action.ID)
	assert.True(t, step.IsValidated)
	assert.False(t, step.PendingAuth)
	assert.False(t, h.tracker.Pending(action.ID))
}

func TestEditor_AuthorizeWithoutResultFails(t *testing.T) {
	backend := newFakeBackend()
	backend.authorizeAction = &reply{http.StatusOK, models.AuthorizeResult{Detail: "Slack workspace not linked"}}
	h := newHarness(t, backend, nil, editor.DefaultOptions())
	ctx := t.Context()

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
	_, err = h.editor.ConfirmConsent(ctx, action.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))
	require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#general"))

	err = h.editor.ValidateStep(ctx, action.ID)
	require.ErrorIs(t, err, editor.ErrAuthorizationFailed)

	step, _ := h.editor.Step(action.ID)
	assert.False(t, step.IsValidated)
	assert.NotZero(t, step.CreatedID)
	assert.Contains(t, step.CreateError, "Slack workspace not linked")
	assert.False(t, h.tracker.Pending(action.ID))
}

func TestEditor_ConsentFlow(t *testing.T) {
	tests := []struct {
		name       string
		completion oauth.MessageType
		phase      editor.Phase
		connected  bool
	}{
		{name: "success", completion: oauth.MessageSuccess, phase: editor.PhaseDefinitionsLoaded, connected: true},
		{name: "error", completion: oauth.MessageError, phase: editor.PhaseConsentPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			opener := &mocks.MockOpener{}
			opener.On("Open", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()

			h := newHarness(t, backend, opener, editor.DefaultOptions())
			ctx := t.Context()

			step, err := h.editor.AddTrigger()
			require.NoError(t, err)

			require.NoError(t, h.editor.SelectService(ctx, step.ID, "gitlab"))

			current, _ := h.editor.Step(step.ID)
			assert.Equal(t, editor.PhaseConsentPending, current.Phase())

			phase, err := h.editor.ConfirmConsent(ctx, step.ID)
			require.NoError(t, err)
			assert.Equal(t, editor.PhaseAwaitingExternalAuth, phase)

			state := backend.lastState()
			opener.AssertCalled(t, "Open", mock.Anything, "https://gitlab.example/oauth?state="+state)

			current, _ = h.editor.Step(step.ID)
			assert.NotEmpty(t, current.ConsentMessage)

			err = h.editor.HandleOAuthCompletion(ctx, oauth.Completion{CorrelationID: state, Type: tt.completion, Error: "access_denied"})
			if tt.connected {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, editor.ErrAuthorizationFailed)
			}

			current, _ = h.editor.Step(step.ID)
			assert.Equal(t, tt.phase, current.Phase())
			assert.Equal(t, tt.connected, current.IsConnected)
			assert.Empty(t, current.ConsentMessage)
		})
	}
}

func TestEditor_CancelConsent(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	step, err := h.editor.AddTrigger()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(t.Context(), step.ID, "gitlab"))
	require.NoError(t, h.editor.CancelConsent(step.ID))

	current, _ := h.editor.Step(step.ID)
	assert.Equal(t, editor.PhaseEmpty, current.Phase())

	require.ErrorIs(t, h.editor.CancelConsent(step.ID), editor.ErrNoConsentPending)
	assert.Zero(t, h.backend.total())
}

func TestEditor_GoogleSkipsConsent(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	validTrigger(t, h)
	validAction(t, h)

	assert.Zero(t, h.backend.count(http.MethodGet+" /consent/google/"))
	assert.Equal(t, 1, h.backend.count(http.MethodGet+" /consent/github/"))
}

func TestEditor_ValidateRejectsConcurrentRun(t *testing.T) {
	backend := newFakeBackend()
	backend.createGate = make(chan struct{})
	h := newHarness(t, backend, nil, editor.DefaultOptions())
	ctx := t.Context()

	_, err := h.editor.CreateArea(ctx, editor.CreateAreaInput{Name: "Issue Notifier"})
	require.NoError(t, err)

	step, err := h.editor.AddTrigger()
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectService(ctx, step.ID, "github"))
	_, err = h.editor.ConfirmConsent(ctx, step.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, step.ID, "github.new_issue"))

	done := make(chan error, 1)

	go func() {
		done <- h.editor.ValidateStep(ctx, step.ID)
	}()

	require.Eventually(t, func() bool {
		current, _ := h.editor.Step(step.ID)

		return current.IsCreating
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, h.editor.ValidateStep(ctx, step.ID), editor.ErrStepBusy)
	require.ErrorIs(t, h.editor.SetConfig(step.ID, "labels", "bug"), editor.ErrStepBusy)
	require.ErrorIs(t, h.editor.RemoveStep(ctx, step.ID), editor.ErrLastTrigger)

	_, err = h.editor.Activate(ctx)
	require.ErrorIs(t, err, editor.ErrOperationInFlight)

	close(backend.createGate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, backend.count(http.MethodPost+" /area-triggers/"))
	assert.Len(t, backend.createKeys(), 1)
}

func TestEditor_ActivateGate(t *testing.T) {
	backend := newFakeBackend()
	persistedArea(backend)
	h := newHarness(t, backend, nil, editor.DefaultOptions())

	require.NoError(t, h.editor.Load(t.Context(), 7))

	steps := h.editor.Steps()
	require.NoError(t, h.editor.SetConfig(steps[1].ID, "channel", "#random"))

	before := backend.total()

	_, err := h.editor.Activate(t.Context())
	require.ErrorIs(t, err, editor.ErrStepsNotValidated)
	assert.True(t, editor.IsLocal(err))
	assert.Equal(t, before, backend.total())
	assert.Equal(t, editor.LevelError, h.notifier.last().level)
}

func TestEditor_ActivateRequiresAction(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	validTrigger(t, h)
	before := h.backend.total()

	_, err := h.editor.Activate(t.Context())
	require.ErrorIs(t, err, editor.ErrActionRequired)
	assert.Equal(t, before, h.backend.total())
}

func TestEditor_Activate(t *testing.T) {
	tests := []struct {
		name      string
		status    models.AreaStatus
		validate  *reply
		wantErr   bool
		validates int
	}{
		{name: "validates draft area", status: models.AreaStatusDraft, validates: 1},
		{name: "already active short-circuits", status: models.AreaStatusActive, validates: 0},
		{
			name:      "already active error is success",
			status:    models.AreaStatusDraft,
			validate:  &reply{http.StatusInternalServerError, map[string]string{"detail": "AREA is already active"}},
			validates: 1,
		},
		{
			name:      "other server errors fail",
			status:    models.AreaStatusDraft,
			validate:  &reply{http.StatusInternalServerError, map[string]string{"detail": "boom"}},
			wantErr:   true,
			validates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.validate = tt.validate
			h := newHarness(t, backend, nil, editor.DefaultOptions())

			validTrigger(t, h)
			validAction(t, h)

			backend.mu.Lock()
			backend.area.Status = tt.status
			backend.mu.Unlock()

			area, err := h.editor.Activate(t.Context())
			assert.Equal(t, tt.validates, backend.count(http.MethodPost+" /areas/1/validate/"))

			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, editor.IsLocal(err))
				assert.Equal(t, notice{editor.LevelError, "boom"}, h.notifier.last())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, models.AreaStatusActive, area.Status)
			assert.Equal(t, editor.LevelSuccess, h.notifier.last().level)
		})
	}
}

func TestEditor_ActivateBlockedByPendingAuth(t *testing.T) {
	backend := newFakeBackend()
	backend.authorizeAction = &reply{http.StatusOK, models.AuthorizeResult{AuthorizationURL: "https://google.example/oauth"}}

	opts := editor.DefaultOptions()
	opts.BlockActivationOnPendingAuth = true
	h := newHarness(t, backend, nil, opts)

	validTrigger(t, h)
	validAction(t, h)

	_, err := h.editor.Activate(t.Context())
	require.ErrorIs(t, err, editor.ErrAuthorizationPending)
	assert.Zero(t, backend.count(http.MethodPost+" /areas/1/validate/"))
}

func TestEditor_RemoveStep(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		dangling int
	}{
		{name: "deleted on backend"},
		{name: "backend failure leaves dangling resource", status: http.StatusInternalServerError, dangling: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			persistedArea(backend)
			backend.deleteStatus = tt.status
			h := newHarness(t, backend, nil, editor.DefaultOptions())

			require.NoError(t, h.editor.Load(t.Context(), 7))

			action := h.editor.Steps()[1]
			require.NoError(t, h.editor.RemoveStep(t.Context(), action.ID))

			_, ok := h.editor.Step(action.ID)
			assert.False(t, ok)
			assert.Len(t, h.editor.Steps(), 2)
			assert.Equal(t, 1, backend.count(http.MethodDelete+" /area-actions/11/"))

			dangling := h.editor.Dangling()
			require.Len(t, dangling, tt.dangling)

			if tt.dangling > 0 {
				assert.Equal(t, int64(11), dangling[0].CreatedID)
				assert.Equal(t, editor.LevelError, h.notifier.last().level)
			}
		})
	}
}

func TestEditor_RemoveUnsavedStepIsLocal(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	before := h.backend.total()

	require.NoError(t, h.editor.RemoveStep(t.Context(), action.ID))
	assert.Equal(t, before, h.backend.total())
	assert.Len(t, h.editor.Steps(), 1)
}

func TestEditor_MoveAction(t *testing.T) {
	backend := newFakeBackend()
	persistedArea(backend)
	h := newHarness(t, backend, nil, editor.DefaultOptions())

	require.NoError(t, h.editor.Load(t.Context(), 7))

	steps := h.editor.Steps()
	require.NoError(t, h.editor.MoveAction(t.Context(), steps[2].ID, 0))

	moved := h.editor.Steps()
	assert.Equal(t, steps[2].ID, moved[1].ID)
	assert.Equal(t, []int64{12, 11}, backend.reordered)

	require.ErrorIs(t, h.editor.MoveAction(t.Context(), steps[2].ID, 5), editor.ErrInvalidIndex)
}

func TestEditor_SetConfigRejectsUnsupportedValues(t *testing.T) {
	backend := newFakeBackend()
	persistedArea(backend)
	h := newHarness(t, backend, nil, editor.DefaultOptions())

	require.NoError(t, h.editor.Load(t.Context(), 7))

	action := h.editor.Steps()[1]

	require.ErrorIs(t, h.editor.SetConfig(action.ID, "channel", struct{}{}), editor.ErrInvalidValue)
	require.NoError(t, h.editor.SetConfig(action.ID, "count", 3))

	step, _ := h.editor.Step(action.ID)
	assert.InDelta(t, 3.0, step.Config["count"], 0)
}

func TestEditor_CreateAreaValidatesInput(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	_, err := h.editor.CreateArea(t.Context(), editor.CreateAreaInput{})
	require.Error(t, err)
	assert.True(t, editor.IsLocal(err))
	assert.Zero(t, h.backend.total())

	area, err := h.editor.CreateArea(t.Context(), editor.CreateAreaInput{Name: "Issue Notifier"})
	require.NoError(t, err)
	assert.Equal(t, models.AreaStatusDraft, area.Status)

	_, err = h.editor.CreateArea(t.Context(), editor.CreateAreaInput{Name: "Again"})
	require.ErrorIs(t, err, editor.ErrAreaExists)
}

func TestEditor_CreateKeysAreUniquePerEditor(t *testing.T) {
	first := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())
	second := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	firstID := validTrigger(t, first)
	secondID := validTrigger(t, second)
	require.Equal(t, firstID, secondID)

	firstKeys, secondKeys := first.backend.createKeys(), second.backend.createKeys()
	require.Len(t, firstKeys, 1)
	require.Len(t, secondKeys, 1)

	assert.NotEqual(t, firstKeys[0], secondKeys[0])

	_, err := uuid.Parse(firstKeys[0])
	assert.NoError(t, err)
}

func TestEditor_CreateKeyFollowsStepContent(t *testing.T) {
	backend := newFakeBackend()
	backend.createAction = &reply{http.StatusBadRequest, map[string]any{"channel": []string{"Unknown channel"}}}
	h := newHarness(t, backend, nil, editor.DefaultOptions())
	ctx := t.Context()

	validTrigger(t, h)

	action, err := h.editor.AddAction()
	require.NoError(t, err)

	require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
	_, err = h.editor.ConfirmConsent(ctx, action.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))
	require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#nope"))

	require.Error(t, h.editor.ValidateStep(ctx, action.ID))
	require.Error(t, h.editor.ValidateStep(ctx, action.ID))

	require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#general"))
	require.Error(t, h.editor.ValidateStep(ctx, action.ID))

	// keys[0] is the trigger create.
	keys := backend.createKeys()
	require.Len(t, keys, 4)
	assert.Equal(t, keys[1], keys[2], "an unchanged retry reuses its key")
	assert.NotEqual(t, keys[2], keys[3], "an edited step gets a new key")
}

func TestEditor_EditDuringExternalAuthorization(t *testing.T) {
	tests := []struct {
		name string
		edit func(t *testing.T, h *harness, id string)
	}{
		{
			name: "config",
			edit: func(t *testing.T, h *harness, id string) {
				require.NoError(t, h.editor.SetConfig(id, "channel", "#random"))
			},
		},
		{
			name: "event",
			edit: func(t *testing.T, h *harness, id string) {
				require.NoError(t, h.editor.SelectEvent(t.Context(), id, "slack.send_message"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.authorizeAction = &reply{http.StatusOK, models.AuthorizeResult{AuthorizationURL: "https://slack.example/oauth"}}

			opener := &mocks.MockOpener{}
			opener.On("Open", mock.Anything, "https://slack.example/oauth").Return(nil).Once()

			h := newHarness(t, backend, opener, editor.DefaultOptions())
			ctx := t.Context()

			validTrigger(t, h)

			action, err := h.editor.AddAction()
			require.NoError(t, err)

			require.NoError(t, h.editor.SelectService(ctx, action.ID, "slack"))
			_, err = h.editor.ConfirmConsent(ctx, action.ID)
			require.NoError(t, err)
			require.NoError(t, h.editor.SelectEvent(ctx, action.ID, "slack.send_message"))
			require.NoError(t, h.editor.SetConfig(action.ID, "channel", "#general"))
			require.NoError(t, h.editor.ValidateStep(ctx, action.ID))

			state := backend.lastState()
			require.True(t, h.tracker.Pending(action.ID))

			tt.edit(t, h, action.ID)

			step, _ := h.editor.Step(action.ID)
			assert.False(t, step.IsValidated)
			assert.False(t, step.PendingAuth)
			assert.Empty(t, step.ConsentMessage)
			assert.False(t, h.tracker.Pending(action.ID))

			err = h.editor.HandleOAuthCompletion(ctx, oauth.Completion{CorrelationID: state, Type: oauth.MessageSuccess, Provider: "slack"})
			require.ErrorIs(t, err, oauth.ErrUnknownAttempt)

			step, _ = h.editor.Step(action.ID)
			assert.False(t, step.IsValidated)
			assert.ErrorIs(t, h.editor.Ready(), editor.ErrStepsNotValidated)
			opener.AssertExpectations(t)
		})
	}
}

func TestEditor_LoadRefusedWhileValidating(t *testing.T) {
	backend := newFakeBackend()
	backend.createGate = make(chan struct{})
	h := newHarness(t, backend, nil, editor.DefaultOptions())
	ctx := t.Context()

	_, err := h.editor.CreateArea(ctx, editor.CreateAreaInput{Name: "Issue Notifier"})
	require.NoError(t, err)

	step, err := h.editor.AddTrigger()
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectService(ctx, step.ID, "github"))
	_, err = h.editor.ConfirmConsent(ctx, step.ID)
	require.NoError(t, err)
	require.NoError(t, h.editor.SelectEvent(ctx, step.ID, "github.new_issue"))

	done := make(chan error, 1)

	go func() {
		done <- h.editor.ValidateStep(ctx, step.ID)
	}()

	require.Eventually(t, func() bool {
		current, _ := h.editor.Step(step.ID)

		return current.IsCreating
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, h.editor.Load(ctx, 1), editor.ErrOperationInFlight)
	assert.Zero(t, backend.count(http.MethodGet+" /areas/1/"))

	close(backend.createGate)
	require.NoError(t, <-done)

	validated, ok := h.editor.Step(step.ID)
	require.True(t, ok)
	assert.Equal(t, int64(10), validated.CreatedID)

	require.NoError(t, h.editor.Load(ctx, 1))

	steps := h.editor.Steps()
	require.Len(t, steps, 1)
	assert.NotEqual(t, step.ID, steps[0].ID)
	assert.Equal(t, int64(10), steps[0].CreatedID)
}

func TestEditor_NotifierMayReadState(t *testing.T) {
	h := newHarness(t, newFakeBackend(), nil, editor.DefaultOptions())

	var ed *editor.Editor

	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, editor.LevelError, mock.Anything).Run(func(mock.Arguments) {
		ed.Steps()
	})

	cfg := h.config
	cfg.Notifier = notifier
	ed = editor.New(cfg)

	step, err := ed.AddTrigger()
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"select_service", func() error { return ed.SelectService(t.Context(), step.ID, "") }, editor.ErrServiceRequired},
		{"select_service_missing_step", func() error { return ed.SelectService(t.Context(), "action-9", "slack") }, editor.ErrStepNotFound},
		{"select_event", func() error { return ed.SelectEvent(t.Context(), step.ID, "github.new_issue") }, editor.ErrServiceNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)

			go func() {
				done <- tt.call()
			}()

			select {
			case err := <-done:
				require.ErrorIs(t, err, tt.want)
			case <-time.After(time.Second):
				t.Fatal("operation blocked while notifying")
			}
		})
	}

	notifier.AssertNumberOfCalls(t, "Notify", len(tests))
}
