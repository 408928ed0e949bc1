package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dukex/area/pkg/client"
	"github.com/dukex/area/pkg/models"
)

const areasPath = "areas"

type Areas struct {
	doer Doer
}

type CreateAreaRequest struct {
	Name        string            `json:"name"        validate:"required,min=1,max=255"`
	Description string            `json:"description"`
	Status      models.AreaStatus `json:"status"`
}

type UpdateAreaRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

type ListAreasOptions struct {
	Status models.AreaStatus
	Search string
}

func (a *Areas) List(ctx context.Context, opts ListAreasOptions) ([]*models.Area, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}

	if opts.Search != "" {
		query.Set("search", opts.Search)
	}

	var areas []*models.Area

	err := a.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: areasPath + "/", Query: query}, &areas)
	if err != nil {
		return nil, err
	}

	return areas, nil
}

func (a *Areas) Get(ctx context.Context, id int64) (*models.Area, error) {
	var area models.Area

	err := a.doer.Do(ctx, client.Request{Method: http.MethodGet, Path: itemPath(areasPath, id)}, &area)
	if err != nil {
		return nil, err
	}

	return &area, nil
}

// Create stores a new area. The status defaults to draft.
func (a *Areas) Create(ctx context.Context, req CreateAreaRequest) (*models.Area, error) {
	if req.Status == "" {
		req.Status = models.AreaStatusDraft
	}

	var area models.Area

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPost, Path: areasPath + "/", Body: req}, &area)
	if err != nil {
		return nil, err
	}

	return &area, nil
}

// Update replaces name and description.
func (a *Areas) Update(ctx context.Context, id int64, req CreateAreaRequest) (*models.Area, error) {
	var area models.Area

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPut, Path: itemPath(areasPath, id), Body: req}, &area)
	if err != nil {
		return nil, err
	}

	return &area, nil
}

func (a *Areas) Patch(ctx context.Context, id int64, req UpdateAreaRequest) (*models.Area, error) {
	var area models.Area

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPatch, Path: itemPath(areasPath, id), Body: req}, &area)
	if err != nil {
		return nil, err
	}

	return &area, nil
}

func (a *Areas) Delete(ctx context.Context, id int64) error {
	return a.doer.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(areasPath, id)}, nil)
}

func (a *Areas) ChangeStatus(ctx context.Context, id int64, status models.AreaStatus) (*models.Area, error) {
	var area models.Area

	err := a.doer.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   actionPath(areasPath, id, "change_status"),
		Body:   map[string]models.AreaStatus{"status": status},
	}, &area)
	if err != nil {
		return nil, err
	}

	return &area, nil
}

// Validate asks the backend to check the area and activate it.
func (a *Areas) Validate(ctx context.Context, id int64) (*models.ValidateResult, error) {
	var result models.ValidateResult

	err := a.doer.Do(ctx, client.Request{Method: http.MethodPost, Path: actionPath(areasPath, id, "validate")}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
