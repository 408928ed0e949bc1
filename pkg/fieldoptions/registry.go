// Package fieldoptions resolves the choices of configuration fields whose
// valid values live behind a backend endpoint, such as the repositories of
// the connected GitHub account.
package fieldoptions

import (
	"github.com/dukex/area/pkg/models"
)

// Key identifies a field of a trigger or action of a service.
type Key struct {
	Kind    models.StepKind
	Service string
	Field   string
}

// Transform reshapes a raw endpoint answer into a list of items.
type Transform func(raw any) any

// Descriptor tells where the options of a field come from.
type Descriptor struct {
	Endpoint  string
	Transform Transform
}

// Registry maps keys to descriptors. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	entries map[Key]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]Descriptor)}
}

func (r *Registry) Register(key Key, descriptor Descriptor) {
	r.entries[key] = descriptor
}

// Lookup reports whether the field has a dynamic source.
func (r *Registry) Lookup(key Key) (Descriptor, bool) {
	descriptor, ok := r.entries[key]

	return descriptor, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// DefaultRegistry holds the dynamic sources known by the backend.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	githubRepos := Descriptor{Endpoint: "github/repositories/", Transform: mapItems("full_name", "full_name")}
	for _, kind := range []models.StepKind{models.StepKindTrigger, models.StepKindReaction} {
		r.Register(Key{Kind: kind, Service: "github", Field: "repository"}, githubRepos)
		r.Register(Key{Kind: kind, Service: "gitlab", Field: "project_id"}, Descriptor{
			Endpoint:  "gitlab/projects/",
			Transform: mapItems("id", "name_with_namespace"),
		})
	}

	r.Register(Key{Kind: models.StepKindReaction, Service: "slack", Field: "channel"}, Descriptor{
		Endpoint:  "slack/channels/",
		Transform: field("channels", mapItems("id", "name")),
	})
	r.Register(Key{Kind: models.StepKindReaction, Service: "google", Field: "calendar_id"}, Descriptor{
		Endpoint:  "google/calendars/",
		Transform: field("items", mapItems("id", "summary")),
	})

	return r
}

// field extracts one key of an object answer before applying next.
func field(key string, next Transform) Transform {
	return func(raw any) any {
		object, ok := raw.(map[string]any)
		if !ok {
			return nil
		}

		return next(object[key])
	}
}

// mapItems turns a list of objects into value/label options.
func mapItems(valueKey, labelKey string) Transform {
	return func(raw any) any {
		items, ok := raw.([]any)
		if !ok {
			return nil
		}

		out := make([]any, 0, len(items))

		for _, item := range items {
			object, ok := item.(map[string]any)
			if !ok {
				continue
			}

			out = append(out, map[string]any{
				"value": object[valueKey],
				"label": object[labelKey],
			})
		}

		return out
	}
}
