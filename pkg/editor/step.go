package editor

import (
	"maps"
	"slices"

	"github.com/dukex/area/pkg/models"
)

// Phase is where a step stands in its sub-flow.
type Phase string

const (
	PhaseEmpty                Phase = "empty"
	PhaseConsentPending       Phase = "consent_pending"
	PhaseAwaitingExternalAuth Phase = "awaiting_external_auth"
	PhaseDefinitionsLoaded    Phase = "definitions_loaded"
	PhaseAwaitingValidation   Phase = "awaiting_validation"
	PhaseValidated            Phase = "validated"
)

// Step is one trigger or action being edited. ID is local to the session;
// CreatedID is the backend id once persisted.
type Step struct {
	ID      string
	Kind    models.StepKind
	Service string
	Event   string
	Config  map[string]any
	Fields  []*models.Field

	CreatedID      int64
	IsConnected    bool
	IsValidated    bool
	IsCreating     bool
	IsValidating   bool
	IsCheckingAuth bool
	ConsentPending bool
	PendingAuth    bool
	CreateError    string
	ConsentMessage string

	// createKey is the Idempotency-Key of the pending create. It is reused
	// when a failed create is retried unchanged.
	createKey string
}

// Busy reports whether an operation on the step is in flight.
func (s Step) Busy() bool {
	return s.IsCreating || s.IsValidating || s.IsCheckingAuth
}

func (s Step) Phase() Phase {
	switch {
	case s.IsValidated:
		return PhaseValidated
	case s.Service == "":
		return PhaseEmpty
	case s.ConsentPending:
		return PhaseConsentPending
	case s.PendingAuth:
		return PhaseAwaitingExternalAuth
	case !s.IsConnected:
		return PhaseConsentPending
	case s.Event == "":
		return PhaseDefinitionsLoaded
	default:
		return PhaseAwaitingValidation
	}
}

// Field returns the schema of a config key.
func (s Step) Field(key string) (*models.Field, bool) {
	for _, field := range s.Fields {
		if field.Key == key {
			return field, true
		}
	}

	return nil, false
}

func (s *Step) clone() Step {
	out := *s
	out.Config = maps.Clone(s.Config)
	out.Fields = slices.Clone(s.Fields)

	return out
}

// invalidate is applied on every edit of service, event or config. A pending
// external authorization belongs to the previous values and is dropped too.
func (s *Step) invalidate() {
	s.IsValidated = false
	s.PendingAuth = false
	s.CreateError = ""
	s.ConsentMessage = ""
	s.createKey = ""
}

func defaultConfig(fields []*models.Field) map[string]any {
	config := make(map[string]any, len(fields))

	for _, field := range fields {
		if field.Default != nil {
			config[field.Key] = field.Default
		}
	}

	return config
}

// configValue accepts the value shapes a form produces: string, string list,
// boolean or number.
func configValue(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, float64:
		return v, true
	case []string:
		return slices.Clone(v), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	default:
		return nil, false
	}
}
