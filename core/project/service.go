package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("project not found")
	ErrForbidden = errors.New("permission denied")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		QueryAllProjects(ctx context.Context) ([]Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		// FilterProjects applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Project.Title or Project.Description.
		FilterProjects(ctx context.Context, filter QueryFilter) ([]Project, error)
		UpdateProject(ctx context.Context, prj Project) (Project, error)
		SetProjectSupervisors(ctx context.Context, id string, supervisorIDs []string) (Project, error)
		DeleteProjectsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, actor user.User, np NewProject) (Project, error) {
	if !actor.Can(user.CanCreateProject) {
		return Project{}, ErrForbidden
	}

	now := time.Now().UTC()
	maxStudents := np.MaxStudents
	if maxStudents == 0 {
		maxStudents = 1
	}
	prj := Project{
		ID:          uuid.New().String(),
		Title:       np.Title,
		Description: np.Description,
		CreatedBy:   actor.ID,
		MaxStudents: maxStudents,
		DueDate:     np.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateProject(ctx, prj)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Project, error) {
	return svc.repo.QueryAllProjects(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Project, error) {
	return svc.repo.FilterProjects(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProject) (Project, error) {
	prj := Project{
		ID:          id,
		Title:       up.Title,
		Description: up.Description,
		MaxStudents: up.MaxStudents,
		DueDate:     up.DueDate,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateProject(ctx, prj)
}

// AssignSupervisors replaces the project's supervisor set.
// The actor must hold the CanAssignSupervisors capability.
func (svc *Service) AssignSupervisors(ctx context.Context, actor user.User, id string, as AssignSupervisors) (Project, error) {
	if !actor.Can(user.CanAssignSupervisors) {
		return Project{}, ErrForbidden
	}
	return svc.repo.SetProjectSupervisors(ctx, id, as.SupervisorIDs)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteProjectsByID(ctx, ids...)
}
