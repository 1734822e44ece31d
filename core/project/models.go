package project

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core"
)

type Project struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	MaxStudents int       `json:"max_students" db:"max_students"`
	DueDate     null.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC

	// IDs of supervisors available for this project's reservations.
	SupervisorIDs []string `json:"supervisor_ids" db:"-"`
}

// HasSupervisor reports whether the given user is assigned as a supervisor.
func (p *Project) HasSupervisor(userID string) bool {
	for _, id := range p.SupervisorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// NewProject contains information needed to create a new Project.
type NewProject struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	MaxStudents int       `json:"max_students" validate:"omitempty,min=1"`
	DueDate     null.Time `json:"due_date"`
}

func (np *NewProject) Validate() error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return core.Validate.Struct(np)
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MaxStudents int       `json:"max_students" validate:"omitempty,min=1"`
	DueDate     null.Time `json:"due_date"`
}

func (up *UpdateProject) Validate(orig Project) error {
	title := core.CleanString(up.Title)
	if title != "" {
		up.Title = title
	} else {
		up.Title = orig.Title
	}

	desc := core.CleanString(up.Description)
	if desc != "" {
		up.Description = desc
	} else {
		up.Description = orig.Description
	}

	if up.MaxStudents == 0 {
		up.MaxStudents = orig.MaxStudents
	}
	return core.Validate.Struct(up)
}

// AssignSupervisors replaces the set of supervisors assigned to a project.
type AssignSupervisors struct {
	SupervisorIDs []string `json:"supervisor_ids" validate:"required,min=1,dive,required"`
}

func (as AssignSupervisors) Validate() error { return core.Validate.Struct(as) }

type QueryFilter struct {
	Search    string `query:"search"`
	CreatedBy string `query:"created_by"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.CreatedBy == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
