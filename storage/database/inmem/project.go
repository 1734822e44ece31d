package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/tujenge/kazipro/core/project"
)

type projectRepository struct {
	db *projectTable
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db.project}
}

func (repo *projectRepository) query() []project.Project {
	projects := make([]project.Project, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		prj := *p
		prj.SupervisorIDs = append([]string(nil), repo.db.supervisors[prj.ID]...)
		projects = append(projects, prj)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects
}

func (repo *projectRepository) CreateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if prj.SupervisorIDs != nil {
		repo.db.supervisors[prj.ID] = append([]string(nil), prj.SupervisorIDs...)
	}
	repo.db.table[prj.ID] = &prj
	return prj, nil
}

func (repo *projectRepository) QueryAllProjects(_ context.Context) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *projectRepository) GetProjectByID(_ context.Context, id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		prj := *p
		prj.SupervisorIDs = append([]string(nil), repo.db.supervisors[id]...)
		return prj, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) FilterProjects(_ context.Context, filter project.QueryFilter) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	projects := repo.query()

	if filter.Search != "" {
		var filtered []project.Project
		search := strings.ToLower(filter.Search)
		for _, p := range projects {
			if strings.Contains(strings.ToLower(p.Title), search) ||
				strings.Contains(strings.ToLower(p.Description), search) {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}
	if projects != nil && filter.CreatedBy != "" {
		var filtered []project.Project
		for _, p := range projects {
			if p.CreatedBy == filter.CreatedBy {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	return projects, nil
}

func (repo *projectRepository) UpdateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[prj.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if prj.Title != "" {
		orig.Title = prj.Title
	}
	if prj.Description != "" {
		orig.Description = prj.Description
	}
	if prj.MaxStudents != 0 {
		orig.MaxStudents = prj.MaxStudents
	}
	if prj.DueDate.Valid {
		orig.DueDate = prj.DueDate
	}
	orig.UpdatedAt = prj.UpdatedAt

	out := *orig
	out.SupervisorIDs = append([]string(nil), repo.db.supervisors[prj.ID]...)
	return out, nil
}

func (repo *projectRepository) SetProjectSupervisors(_ context.Context, id string, supervisorIDs []string) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	repo.db.supervisors[id] = append([]string(nil), supervisorIDs...)

	out := *orig
	out.SupervisorIDs = append([]string(nil), supervisorIDs...)
	return out, nil
}

func (repo *projectRepository) DeleteProjectsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.db.supervisors, id)
	}
	return nil
}
