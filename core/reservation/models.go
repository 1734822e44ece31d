package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core"
)

// Status of a student's claim on a project.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsActive reports whether the status blocks a new reservation
// for the same (project, student) pair.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// Reservation represents one student's claim on one project,
// mediated by a supervisor.
//
// Lifecycle: created pending; decided (approved|rejected) exactly once,
// recording ResponseDate and optional Feedback; never deleted, only
// superseded by a new reservation after a rejection.
type Reservation struct {
	ID           string      `json:"id" db:"id"`
	ProjectID    string      `json:"project_id" db:"project_id"`
	ProjectTitle string      `json:"project_title,omitempty" db:"project_title"`
	StudentID    string      `json:"student_id" db:"student_id"`
	StudentName  string      `json:"student_name" db:"student_name"`
	SupervisorID string      `json:"supervisor_id" db:"supervisor_id"`
	Status       Status      `json:"status" db:"status"`
	RequestDate  time.Time   `json:"request_date" db:"request_date"` // UTC
	ResponseDate null.Time   `json:"response_date,omitempty" db:"response_date"`
	Feedback     null.String `json:"feedback,omitempty" db:"feedback"`
}

func (r *Reservation) IsActive() bool { return r.Status.IsActive() }

// LegacyRecord mirrors the JSON shape of reservation dumps exported by the
// previous frontend's local store. Older rows carry userId instead of
// studentId and timestamp instead of requestDate; newer rows carry both,
// populated identically.
type LegacyRecord struct {
	ID           string `json:"id,omitempty"`
	ProjectID    string `json:"projectId"`
	ProjectTitle string `json:"projectTitle,omitempty"`
	StudentID    string `json:"studentId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	StudentName  string `json:"studentName,omitempty"`
	SupervisorID string `json:"supervisorId,omitempty"`
	Status       string `json:"status,omitempty"`
	RequestDate  string `json:"requestDate,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	ResponseDate string `json:"responseDate,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
}

// Normalize backfills legacy field aliases and returns the canonical record,
// so downstream consumers never see the alias scheme.
func (lr LegacyRecord) Normalize() (Reservation, error) {
	r := Reservation{
		ID:           core.CleanString(lr.ID),
		ProjectID:    core.CleanString(lr.ProjectID),
		ProjectTitle: core.CleanString(lr.ProjectTitle),
		StudentID:    core.CleanString(lr.StudentID),
		StudentName:  core.CleanString(lr.StudentName),
		SupervisorID: core.CleanString(lr.SupervisorID),
		Status:       Status(core.CleanString(lr.Status, true /* lower */)),
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StudentID == "" {
		r.StudentID = core.CleanString(lr.UserID)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if !r.Status.IsValid() {
		return Reservation{}, errInvalidStatus
	}

	reqDate := lr.RequestDate
	if reqDate == "" {
		reqDate = lr.Timestamp
	}
	if reqDate != "" {
		t, err := time.Parse(time.RFC3339, reqDate)
		if err != nil {
			return Reservation{}, err
		}
		r.RequestDate = t.UTC()
	}

	if lr.ResponseDate != "" {
		t, err := time.Parse(time.RFC3339, lr.ResponseDate)
		if err != nil {
			return Reservation{}, err
		}
		r.ResponseDate = null.TimeFrom(t.UTC())
	}
	if lr.Feedback != "" {
		r.Feedback = null.StringFrom(lr.Feedback)
	}
	return r, nil
}

// Legacy renders the canonical record back into the dump shape,
// canonical and alias fields populated identically.
func (r Reservation) Legacy() LegacyRecord {
	lr := LegacyRecord{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		ProjectTitle: r.ProjectTitle,
		StudentID:    r.StudentID,
		UserID:       r.StudentID,
		StudentName:  r.StudentName,
		SupervisorID: r.SupervisorID,
		Status:       string(r.Status),
		Feedback:     r.Feedback.String,
	}
	if !r.RequestDate.IsZero() {
		lr.RequestDate = r.RequestDate.Format(time.RFC3339)
		lr.Timestamp = lr.RequestDate
	}
	if r.ResponseDate.Valid {
		lr.ResponseDate = r.ResponseDate.Time.Format(time.RFC3339)
	}
	return lr
}

type QueryFilter struct {
	ProjectID    string `query:"project_id"`
	StudentID    string `query:"student_id"`
	SupervisorID string `query:"supervisor_id"`
	Status       Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ProjectID == "" && qf.StudentID == "" && qf.SupervisorID == "" && qf.Status == ""
}
