// Package manager backs the area list and the connected services pages.
package manager

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/models"
	"github.com/go-playground/validator/v10"
)

type SortBy string

const (
	SortByName      SortBy = "name"
	SortByCreatedAt SortBy = "created_at"
	SortByUpdatedAt SortBy = "updated_at"
	SortByRuns      SortBy = "runs"
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Filter narrows the area list. Query matches name or description, case
// insensitively.
type Filter struct {
	Status models.AreaStatus `validate:"omitempty,oneof=draft configured active disabled"`
	Query  string
}

type Sort struct {
	By    SortBy `validate:"omitempty,oneof=name created_at updated_at runs"`
	Order Order  `validate:"omitempty,oneof=asc desc"`
}

// AreaService is the part of the areas resource the manager uses.
type AreaService interface {
	List(ctx context.Context, opts api.ListAreasOptions) ([]*models.Area, error)
	ChangeStatus(ctx context.Context, id int64, status models.AreaStatus) (*models.Area, error)
	Delete(ctx context.Context, id int64) error
}

type ServiceCatalog interface {
	External(ctx context.Context) ([]*models.ExternalService, error)
}

type AccountService interface {
	List(ctx context.Context) ([]*models.ServiceAccount, error)
	Disconnect(ctx context.Context, id int64) error
}

type RunService interface {
	List(ctx context.Context, areaID int64) ([]*models.Run, error)
}

// Backend groups the resources the manager talks to.
type Backend struct {
	Areas    AreaService
	Services ServiceCatalog
	Accounts AccountService
	Runs     RunService
}

func BackendFromAPI(a *api.API) Backend {
	return Backend{
		Areas:    a.Areas,
		Services: a.Services,
		Accounts: a.ServiceAccounts,
		Runs:     a.Runs,
	}
}

type Manager struct {
	backend  Backend
	validate *validator.Validate
	logger   *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Manager {
	return &Manager{
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("module", "manager"),
	}
}

// List fetches every area of the user and applies filter and sort.
func (m *Manager) List(ctx context.Context, filter Filter, sort Sort) ([]*models.Area, error) {
	if err := m.validate.Struct(filter); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	if err := m.validate.Struct(sort); err != nil {
		return nil, fmt.Errorf("invalid sort: %w", err)
	}

	areas, err := m.backend.Areas.List(ctx, api.ListAreasOptions{})
	if err != nil {
		return nil, err
	}

	return Apply(areas, filter, sort), nil
}

// Apply filters and sorts areas without touching the input slice. The
// default order is newest first.
func Apply(areas []*models.Area, filter Filter, sort Sort) []*models.Area {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]*models.Area, 0, len(areas))

	for _, area := range areas {
		if filter.Status != "" && area.Status != filter.Status {
			continue
		}

		if query != "" &&
			!strings.Contains(strings.ToLower(area.Name), query) &&
			!strings.Contains(strings.ToLower(area.Description), query) {
			continue
		}

		out = append(out, area)
	}

	by, order := sort.By, sort.Order
	if by == "" {
		by = SortByCreatedAt
		if order == "" {
			order = OrderDesc
		}
	}

	slices.SortStableFunc(out, func(a, b *models.Area) int {
		var c int

		switch by {
		case SortByName:
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByRuns:
			c = cmp.Compare(a.RunCount, b.RunCount)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}

		if order == OrderDesc {
			return -c
		}

		return c
	})

	return out
}

// ToggleStatus disables an active area and activates any other one.
func (m *Manager) ToggleStatus(ctx context.Context, area *models.Area) (*models.Area, error) {
	next := models.AreaStatusActive
	if area.Status == models.AreaStatusActive {
		next = models.AreaStatusDisabled
	}

	updated, err := m.backend.Areas.ChangeStatus(ctx, area.ID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to change status of area %d: %w", area.ID, err)
	}

	m.logger.InfoContext(ctx, "Area status changed", "area_id", area.ID, "from", area.Status, "to", updated.Status)

	return updated, nil
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.backend.Areas.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete area %d: %w", id, err)
	}

	m.logger.InfoContext(ctx, "Area deleted", "area_id", id)

	return nil
}

// Runs lists the executions of an area.
func (m *Manager) Runs(ctx context.Context, areaID int64) ([]*models.Run, error) {
	return m.backend.Runs.List(ctx, areaID)
}

// Summary is the header of the area list.
type Summary struct {
	Total    int
	ByStatus map[models.AreaStatus]int
	Runs     int
}

func Summarize(areas []*models.Area) Summary {
	summary := Summary{ByStatus: map[models.AreaStatus]int{}}

	for _, area := range areas {
		summary.Total++
		summary.ByStatus[area.Status]++
		summary.Runs += area.RunCount
	}

	return summary
}

// Summary fetches the areas and summarizes them.
func (m *Manager) Summary(ctx context.Context) (Summary, error) {
	areas, err := m.backend.Areas.List(ctx, api.ListAreasOptions{})
	if err != nil {
		return Summary{}, err
	}

	return Summarize(areas), nil
}

// ServiceStatus is one row of the services page.
type ServiceStatus struct {
	Service   *models.ExternalService
	Accounts  []*models.ServiceAccount
	Connected bool
}

// Services joins the available services with the user's accounts. A
// service is connected when it has an active account or needs no auth.
func (m *Manager) Services(ctx context.Context) ([]ServiceStatus, error) {
	services, err := m.backend.Services.External(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := m.backend.Accounts.List(ctx)
	if err != nil {
		return nil, err
	}

	bySlug := make(map[string][]*models.ServiceAccount)
	for _, account := range accounts {
		bySlug[account.Service] = append(bySlug[account.Service], account)
	}

	out := make([]ServiceStatus, 0, len(services))

	for _, service := range services {
		status := ServiceStatus{Service: service, Accounts: bySlug[service.Slug], Connected: !service.RequiresAuth}

		for _, account := range status.Accounts {
			if account.IsActive {
				status.Connected = true
			}
		}

		out = append(out, status)
	}

	return out, nil
}

// Disconnect removes a service account.
func (m *Manager) Disconnect(ctx context.Context, accountID int64) error {
	if err := m.backend.Accounts.Disconnect(ctx, accountID); err != nil {
		return fmt.Errorf("failed to disconnect account %d: %w", accountID, err)
	}

	m.logger.InfoContext(ctx, "Service account disconnected", "account_id", accountID)

	return nil
}
