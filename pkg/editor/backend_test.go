package editor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/catalog"
	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/editor"
	"github.com/dukex/area/pkg/log"
	"github.com/dukex/area/pkg/models"
	"github.com/dukex/area/pkg/oauth"
	"github.com/stretchr/testify/require"
)

type staticSession struct{}

func (staticSession) AccessToken() string           { return "token" }
func (staticSession) Refresh(context.Context) error { return nil }
func (staticSession) Clear() error                  { return nil }

type reply struct {
	status int
	body   any
}

// fakeBackend serves the REST endpoints the editor uses and records every
// request it receives.
type fakeBackend struct {
	mu       sync.Mutex
	requests []string
	keys     []string
	states   []string
	nextID   int64

	area     models.Area
	triggers map[int64]*models.AreaTrigger
	actions  map[int64]*models.AreaAction

	definitions map[string]*models.ServiceDefinition
	configs     map[string]*models.EventConfig
	consent     map[string]models.ConsentStatus

	createAction    *reply
	authorizeAction *reply
	validate        *reply
	deleteStatus    int
	reordered       []int64

	// createGate blocks trigger creation until closed.
	createGate chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:   10,
		triggers: map[int64]*models.AreaTrigger{},
		actions:  map[int64]*models.AreaAction{},
		definitions: map[string]*models.ServiceDefinition{
			"github": {
				Service: "github",
				Triggers: []*models.EventDefinition{{
					Slug:   "github.new_issue",
					Fields: []*models.Field{{Key: "labels", Type: models.FieldTypeText}},
				}},
			},
			"gitlab": {
				Service:  "gitlab",
				Triggers: []*models.EventDefinition{{Slug: "gitlab.new_merge_request", Fields: []*models.Field{{Key: "branch", Type: models.FieldTypeText}}}},
			},
			"google": {
				Service: "google",
				Actions: []*models.EventDefinition{{Slug: "google.create_event", Fields: []*models.Field{{Key: "title", Type: models.FieldTypeText}}}},
			},
			"slack": {
				Service: "slack",
				Actions: []*models.EventDefinition{{Slug: "slack.send_message"}},
			},
		},
		configs: map[string]*models.EventConfig{
			"slack.send_message": {Slug: "slack.send_message", Fields: []*models.Field{
				{Key: "channel", Type: models.FieldTypeText, Required: true},
				{Key: "message", Type: models.FieldTypeTextarea},
			}},
		},
		consent: map[string]models.ConsentStatus{
			"github": {HasConsent: true, NeedsAuthorization: true},
			"slack":  {HasConsent: true, NeedsAuthorization: true},
			"gitlab": {NeedsAuthorization: true},
		},
	}
}

func (b *fakeBackend) count(request string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0

	for _, r := range b.requests {
		if r == request {
			n++
		}
	}

	return n
}

func (b *fakeBackend) createKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.keys)
}

func (b *fakeBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.requests)
}

func (b *fakeBackend) lastState() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.states) == 0 {
		return ""
	}

	return b.states[len(b.states)-1]
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /areas/{$}", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateAreaRequest
		decode(r, &req)

		b.mu.Lock()
		b.area = models.Area{ID: 1, Name: req.Name, Description: req.Description, Status: req.Status}
		area := b.area
		b.mu.Unlock()

		write(w, http.StatusCreated, area)
	})
	mux.HandleFunc("GET /areas/{id}/{$}", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		area := b.area
		area.Triggers = nil
		area.Actions = nil

		for _, trigger := range b.triggers {
			area.Triggers = append(area.Triggers, trigger)
		}

		for _, action := range b.actions {
			area.Actions = append(area.Actions, action)
		}
		b.mu.Unlock()

		write(w, http.StatusOK, area)
	})
	mux.HandleFunc("POST /areas/{id}/validate/{$}", func(w http.ResponseWriter, _ *http.Request) {
		b.respond(w, b.validate, reply{http.StatusOK, models.ValidateResult{Status: models.AreaStatusActive}})
	})

	mux.HandleFunc("POST /area-triggers/{$}", func(w http.ResponseWriter, r *http.Request) {
		if b.createGate != nil {
			<-b.createGate
		}

		var trigger models.AreaTrigger
		decode(r, &trigger)

		b.mu.Lock()
		b.keys = append(b.keys, r.Header.Get(api.IdempotencyHeader))
		trigger.ID = b.nextID
		b.nextID++
		b.triggers[trigger.ID] = &trigger
		b.mu.Unlock()

		write(w, http.StatusCreated, trigger)
	})
	mux.HandleFunc("POST /area-actions/{$}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.keys = append(b.keys, r.Header.Get(api.IdempotencyHeader))
		b.mu.Unlock()

		if b.createAction != nil {
			b.respond(w, b.createAction, reply{})

			return
		}

		var action models.AreaAction
		decode(r, &action)

		b.mu.Lock()
		action.ID = b.nextID
		b.nextID++
		b.actions[action.ID] = &action
		b.mu.Unlock()

		write(w, http.StatusCreated, action)
	})

	for _, collection := range []string{"area-triggers", "area-actions"} {
		mux.HandleFunc("PATCH /"+collection+"/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			decode(r, &body)
			write(w, http.StatusOK, map[string]any{"id": pathID(r)})
		})
		mux.HandleFunc("DELETE /"+collection+"/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			status := b.deleteStatus
			if status == 0 {
				delete(b.triggers, pathID(r))
				delete(b.actions, pathID(r))
			}
			b.mu.Unlock()

			if status != 0 {
				write(w, status, map[string]string{"detail": "delete failed"})

				return
			}

			w.WriteHeader(http.StatusNoContent)
		})
		mux.HandleFunc("POST /"+collection+"/{id}/authorize/{$}", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			decode(r, &body)

			b.mu.Lock()
			b.states = append(b.states, body["state"])
			b.mu.Unlock()

			if collection == "area-actions" && b.authorizeAction != nil {
				b.respond(w, b.authorizeAction, reply{})

				return
			}

			write(w, http.StatusOK, models.AuthorizeResult{Authorized: true})
		})
		mux.HandleFunc("GET /"+collection+"/config/{slug}/{$}", func(w http.ResponseWriter, r *http.Request) {
			config, ok := b.configs[r.PathValue("slug")]
			if !ok {
				write(w, http.StatusNotFound, map[string]string{"detail": "Not found."})

				return
			}

			write(w, http.StatusOK, config)
		})
	}

	mux.HandleFunc("POST /area-actions/reorder/{$}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Actions []int64 `json:"actions"`
		}
		decode(r, &body)

		b.mu.Lock()
		b.reordered = body.Actions
		b.mu.Unlock()

		write(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /services/{slug}/definitions/{$}", func(w http.ResponseWriter, r *http.Request) {
		definition, ok := b.definitions[r.PathValue("slug")]
		if !ok {
			write(w, http.StatusNotFound, map[string]string{"detail": "Unknown service."})

			return
		}

		write(w, http.StatusOK, definition)
	})
	mux.HandleFunc("GET /consent/{slug}/{$}", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, b.consent[r.PathValue("slug")])
	})
	mux.HandleFunc("POST /consent/{slug}/{$}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		decode(r, &body)

		b.mu.Lock()
		b.states = append(b.states, body["state"])
		b.mu.Unlock()

		write(w, http.StatusOK, models.ConsentRequest{ConsentURL: "https://gitlab.example/oauth?state=" + body["state"]})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()

		mux.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) respond(w http.ResponseWriter, override *reply, fallback reply) {
	if override != nil {
		write(w, override.status, override.body)

		return
	}

	write(w, fallback.status, fallback.body)
}

func decode(r *http.Request, v any) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)

	return id
}

type notice struct {
	level   editor.Level
	message string
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorder) Notify(_ context.Context, level editor.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notices = append(r.notices, notice{level, message})
}

func (r *recorder) last() notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.notices) == 0 {
		return notice{}
	}

	return r.notices[len(r.notices)-1]
}

type harness struct {
	backend  *fakeBackend
	editor   *editor.Editor
	config   editor.Config
	tracker  *oauth.Tracker
	notifier *recorder
}

func newHarness(t *testing.T, backend *fakeBackend, opener editor.Opener, opts editor.Options) *harness {
	t.Helper()

	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	c, err := client.New(server.URL, staticSession{}, client.WithLogger(log.Discard()))
	require.NoError(t, err)

	a := api.New(c)
	tracker := oauth.NewTracker("http://app.local", 0)
	notifier := &recorder{}

	cfg := editor.Config{
		Backend:  editor.BackendFromAPI(a),
		Catalog:  catalog.New(a.CatalogSource(), catalog.NewMemoryCache(), log.Discard()),
		Tracker:  tracker,
		Opener:   opener,
		Notifier: notifier,
		Logger:   log.Discard(),
		Options:  opts,
	}

	return &harness{backend: backend, editor: editor.New(cfg), config: cfg, tracker: tracker, notifier: notifier}
}
