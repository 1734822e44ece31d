package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core/project"
)

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	query := `
INSERT INTO project (id, title, description, created_by, max_students, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		prj.ID, prj.Title, prj.Description, prj.CreatedBy, prj.MaxStudents,
		prj.DueDate, prj.CreatedAt, prj.UpdatedAt,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "creating project")
	}
	return prj, nil
}

func (repo *projectRepository) QueryAllProjects(ctx context.Context) ([]project.Project, error) {
	projects := make([]project.Project, 0)
	if err := repo.db.SelectContext(ctx, &projects, `SELECT * FROM project ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	return repo.loadSupervisors(ctx, projects)
}

func (repo *projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var prj project.Project
	if err := repo.db.GetContext(ctx, &prj, `SELECT * FROM project WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, errors.Wrap(err, "getting project")
	}

	err := repo.db.SelectContext(ctx, &prj.SupervisorIDs,
		`SELECT supervisor_id FROM project_supervisor WHERE project_id = $1`, id)
	return prj, errors.Wrap(err, "getting project supervisors")
}

func (repo *projectRepository) FilterProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s)", p))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, fmt.Sprintf("created_by = %s", arg(filter.CreatedBy)))
	}

	query := `SELECT * FROM project`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	projects := make([]project.Project, 0)
	if err := repo.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering projects")
	}
	return repo.loadSupervisors(ctx, projects)
}

func (repo *projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	query := `
UPDATE project SET title = $2, description = $3, max_students = $4, due_date = $5, updated_at = $6
WHERE id = $1`
	out, err := repo.db.ExecContext(ctx, query,
		prj.ID, prj.Title, prj.Description, prj.MaxStudents, prj.DueDate, prj.UpdatedAt)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return repo.GetProjectByID(ctx, prj.ID)
}

func (repo *projectRepository) SetProjectSupervisors(ctx context.Context, id string, supervisorIDs []string) (project.Project, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM project_supervisor WHERE project_id = $1`, id); err != nil {
		return project.Project{}, errors.Wrap(err, "clearing project supervisors")
	}
	for _, supID := range supervisorIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_supervisor (project_id, supervisor_id) VALUES ($1, $2)`, id, supID)
		if err != nil {
			return project.Project{}, errors.Wrap(err, "setting project supervisors")
		}
	}
	if err = tx.Commit(); err != nil {
		return project.Project{}, errors.Wrap(err, "committing transaction")
	}
	return repo.GetProjectByID(ctx, id)
}

func (repo *projectRepository) DeleteProjectsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM project WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting projects")
}

func (repo *projectRepository) loadSupervisors(ctx context.Context, projects []project.Project) ([]project.Project, error) {
	if len(projects) == 0 {
		return projects, nil
	}

	ids := make([]string, 0, len(projects))
	for _, prj := range projects {
		ids = append(ids, prj.ID)
	}

	rows, err := repo.db.QueryContext(ctx,
		`SELECT project_id, supervisor_id FROM project_supervisor WHERE project_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "loading project supervisors")
	}
	defer func() { _ = rows.Close() }()

	supsByPrj := make(map[string][]string, len(projects))
	for rows.Next() {
		var prjID, supID string
		if err = rows.Scan(&prjID, &supID); err != nil {
			return nil, errors.Wrap(err, "loading project supervisors")
		}
		supsByPrj[prjID] = append(supsByPrj[prjID], supID)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "loading project supervisors")
	}

	for i := range projects {
		projects[i].SupervisorIDs = supsByPrj[projects[i].ID]
	}
	return projects, nil
}
