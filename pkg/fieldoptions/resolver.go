package fieldoptions

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/dukex/area/pkg/models"
)

// Fetcher performs the GET of an options endpoint.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// InputKind is how a field is presented.
type InputKind string

const (
	InputDynamicSelect InputKind = "dynamic_select"
	InputStaticSelect  InputKind = "select"
	InputMultiSelect   InputKind = "multiselect"
	InputCheckbox      InputKind = "checkbox"
	InputText          InputKind = "text"
)

// Input is the resolved form control of a field.
type Input struct {
	Kind     InputKind
	Options  []models.Option
	Dynamic  bool
	Disabled bool
}

// Resolver is safe for concurrent use.
type Resolver struct {
	registry *Registry
	fetcher  Fetcher
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[Key]int
}

func NewResolver(registry *Registry, fetcher Fetcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		fetcher:  fetcher,
		logger:   logger.With("module", "fieldoptions"),
		pending:  make(map[Key]int),
	}
}

// Resolve returns the control for field. Unregistered fields get their
// fallback control without any request; fetch errors and empty or non-list
// answers fall back too.
func (r *Resolver) Resolve(ctx context.Context, key Key, field *models.Field) Input {
	descriptor, ok := r.registry.Lookup(key)
	if !ok {
		return Fallback(field)
	}

	r.begin(key)
	defer r.end(key)

	var raw any
	if err := r.fetcher.Get(ctx, descriptor.Endpoint, nil, &raw); err != nil {
		r.logger.DebugContext(ctx, "Dynamic options unavailable, using fallback",
			"service", key.Service, "field", key.Field, "error", err)

		return Fallback(field)
	}

	if descriptor.Transform != nil {
		raw = descriptor.Transform(raw)
	}

	options := toOptions(raw)
	if len(options) == 0 {
		return Fallback(field)
	}

	return Input{Kind: InputDynamicSelect, Options: options, Dynamic: true}
}

// Pending reports whether options for key are being fetched. Callers render
// Placeholder meanwhile.
func (r *Resolver) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pending[key] > 0
}

// Placeholder is the disabled control shown while options load.
func Placeholder() Input {
	return Input{Kind: InputDynamicSelect, Disabled: true, Dynamic: true}
}

// Fallback is the control a field gets without a dynamic source.
func Fallback(field *models.Field) Input {
	if field == nil {
		return Input{Kind: InputText}
	}

	switch field.Type {
	case models.FieldTypeBoolean:
		return Input{Kind: InputCheckbox}
	case models.FieldTypeMultiSelect:
		return Input{Kind: InputMultiSelect, Options: field.Options}
	case models.FieldTypeSelect:
		if len(field.Options) > 0 {
			return Input{Kind: InputStaticSelect, Options: field.Options}
		}
	}

	return Input{Kind: InputText}
}

func (r *Resolver) begin(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[key]++
}

func (r *Resolver) end(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[key]--
	if r.pending[key] <= 0 {
		delete(r.pending, key)
	}
}

func toOptions(raw any) []models.Option {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	options := make([]models.Option, 0, len(items))

	for _, item := range items {
		switch v := item.(type) {
		case string:
			options = append(options, models.Option{Value: v, Label: v})
		case map[string]any:
			value := stringify(v["value"])
			if value == "" {
				continue
			}

			label := stringify(v["label"])
			if label == "" {
				label = value
			}

			options = append(options, models.Option{Value: value, Label: label})
		}
	}

	return options
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
