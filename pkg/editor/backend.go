package editor

import (
	"context"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/models"
)

// AreaService is the part of the areas resource the editor drives.
type AreaService interface {
	Create(ctx context.Context, req api.CreateAreaRequest) (*models.Area, error)
	Get(ctx context.Context, id int64) (*models.Area, error)
	Validate(ctx context.Context, id int64) (*models.ValidateResult, error)
}

type TriggerService interface {
	Create(ctx context.Context, trigger *models.AreaTrigger, idempotencyKey string) (*models.AreaTrigger, error)
	Patch(ctx context.Context, id int64, patch api.StepPatch) (*models.AreaTrigger, error)
	Delete(ctx context.Context, id int64) error
	Authorize(ctx context.Context, id int64, state string) (*models.AuthorizeResult, error)
}

type ActionService interface {
	Create(ctx context.Context, action *models.AreaAction, idempotencyKey string) (*models.AreaAction, error)
	Patch(ctx context.Context, id int64, patch api.StepPatch) (*models.AreaAction, error)
	Delete(ctx context.Context, id int64) error
	Authorize(ctx context.Context, id int64, state string) (*models.AuthorizeResult, error)
	Reorder(ctx context.Context, areaID int64, actionIDs []int64) error
}

type ConsentService interface {
	Check(ctx context.Context, slug string) (*models.ConsentStatus, error)
	Request(ctx context.Context, slug string, state string) (*models.ConsentRequest, error)
}

// Catalog resolves service definitions and event fields.
type Catalog interface {
	Definitions(ctx context.Context, slug string) (*models.ServiceDefinition, error)
	Fields(ctx context.Context, kind models.StepKind, service, event string) ([]*models.Field, error)
}

// Backend groups the resources the editor talks to.
type Backend struct {
	Areas    AreaService
	Triggers TriggerService
	Actions  ActionService
	Consent  ConsentService
}

// BackendFromAPI wires the typed accessors as the editor backend.
func BackendFromAPI(a *api.API) Backend {
	return Backend{
		Areas:    a.Areas,
		Triggers: a.Triggers,
		Actions:  a.Actions,
		Consent:  a.Consent,
	}
}

type persisted struct {
	id        int64
	authorize func(ctx context.Context, state string) (*models.AuthorizeResult, error)
}

// persist creates or patches the backend resource of a step and returns its
// id together with the authorize call for it.
func (b Backend) persist(ctx context.Context, areaID int64, snap Step, orderIndex int) (persisted, error) {
	if snap.Kind == models.StepKindTrigger {
		id := snap.CreatedID
		if id == 0 {
			created, err := b.Triggers.Create(ctx, &models.AreaTrigger{
				Area:        areaID,
				Service:     snap.Service,
				TriggerType: snap.Event,
				Config:      snap.Config,
			}, snap.createKey)
			if err != nil {
				return persisted{}, err
			}

			id = created.ID
		} else if _, err := b.Triggers.Patch(ctx, id, api.StepPatch{Service: snap.Service, Type: snap.Event, Config: snap.Config}); err != nil {
			return persisted{}, err
		}

		return persisted{id: id, authorize: func(ctx context.Context, state string) (*models.AuthorizeResult, error) {
			return b.Triggers.Authorize(ctx, id, state)
		}}, nil
	}

	id := snap.CreatedID
	if id == 0 {
		created, err := b.Actions.Create(ctx, &models.AreaAction{
			Area:       areaID,
			Service:    snap.Service,
			ActionType: snap.Event,
			Config:     snap.Config,
			OrderIndex: orderIndex,
		}, snap.createKey)
		if err != nil {
			return persisted{}, err
		}

		id = created.ID
	} else if _, err := b.Actions.Patch(ctx, id, api.StepPatch{Service: snap.Service, Type: snap.Event, Config: snap.Config}); err != nil {
		return persisted{}, err
	}

	return persisted{id: id, authorize: func(ctx context.Context, state string) (*models.AuthorizeResult, error) {
		return b.Actions.Authorize(ctx, id, state)
	}}, nil
}

func (b Backend) remove(ctx context.Context, kind models.StepKind, id int64) error {
	if kind == models.StepKindTrigger {
		return b.Triggers.Delete(ctx, id)
	}

	return b.Actions.Delete(ctx, id)
}
