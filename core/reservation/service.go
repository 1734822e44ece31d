package reservation

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("reservation not found")
	ErrAlreadyReserved   = errors.New("project already reserved by this student")
	ErrAlreadyDecided    = errors.New("reservation already decided")
	ErrForbidden         = errors.New("permission denied")
	ErrInvalidSupervisor = errors.New("supervisor is not assigned to this project")

	errInvalidStatus = errors.New("invalid reservation status")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateReservation inserts the record. It must fail with
		// ErrAlreadyReserved when a pending or approved record already
		// exists for the same (ProjectID, StudentID) pair.
		CreateReservation(ctx context.Context, res Reservation) (Reservation, error)
		GetReservationByID(ctx context.Context, id string) (Reservation, error)
		QueryAllReservations(ctx context.Context) ([]Reservation, error)
		// FilterReservations applies AND operation on available QueryFilter fields.
		FilterReservations(ctx context.Context, filter QueryFilter) ([]Reservation, error)
		// GetActiveReservation returns the pending or approved record for the
		// pair; ErrNotFound when none exists.
		GetActiveReservation(ctx context.Context, projectID, studentID string) (Reservation, error)
		// GetLatestReservation returns the most recently requested record for
		// the pair regardless of status; ErrNotFound when none exists.
		GetLatestReservation(ctx context.Context, projectID, studentID string) (Reservation, error)
		// UpdateReservationStatus decides a reservation. The transition is
		// conditional on the current status being pending: a missing id yields
		// ErrNotFound, an already decided record yields ErrAlreadyDecided.
		UpdateReservationStatus(ctx context.Context, id string, status Status, responseDate time.Time, feedback null.String) (Reservation, error)
	}

	Service struct {
		repo    Repository
		prjSvc  *project.Service
		usrSvc  *user.Service
		mailSvc core.EmailService
		logger  core.Logger
		hub     *Hub
	}
)

func NewService(repo Repository, prjSvc *project.Service, usrSvc *user.Service, mailSvc core.EmailService, logger core.Logger, hub *Hub) *Service {
	return &Service{
		repo:    repo,
		prjSvc:  prjSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		hub:     hub,
	}
}

// Reserve creates a pending reservation of the project for the actor
// under the chosen supervisor.
//
// A pending or approved reservation for the same pair fails with
// ErrAlreadyReserved and writes nothing; a prior rejection does not block.
func (svc *Service) Reserve(ctx context.Context, actor user.User, projectID, supervisorID string) (Reservation, error) {
	if !actor.Can(user.CanReserveProject) {
		return Reservation{}, ErrForbidden
	}

	prj, err := svc.prjSvc.GetByID(ctx, projectID)
	if err != nil {
		return Reservation{}, err
	}

	sup, err := svc.usrSvc.GetByID(ctx, supervisorID)
	if err != nil {
		if err == user.ErrNotFound {
			return Reservation{}, ErrInvalidSupervisor
		}
		return Reservation{}, errors.Wrap(err, "finding supervisor")
	}
	if len(prj.SupervisorIDs) > 0 {
		if !prj.HasSupervisor(sup.ID) {
			return Reservation{}, ErrInvalidSupervisor
		}
	} else if !sup.IsSupervisor() {
		return Reservation{}, ErrInvalidSupervisor
	}

	res := Reservation{
		ID:           uuid.New().String(),
		ProjectID:    prj.ID,
		ProjectTitle: prj.Title,
		StudentID:    actor.ID,
		StudentName:  actor.Name,
		SupervisorID: sup.ID,
		Status:       StatusPending,
		RequestDate:  nowFunc().UTC(),
	}
	res, err = svc.repo.CreateReservation(ctx, res)
	if err != nil {
		return Reservation{}, err
	}

	svc.notify(sup, "New project reservation",
		fmt.Sprintf("%s requested to reserve the project %q under your supervision.", res.StudentName, res.ProjectTitle))
	svc.publish(ActionCreated, res)
	return res, nil
}

// Approve transitions a pending reservation to approved.
// The actor must be the assigned supervisor or hold CanApproveProject.
func (svc *Service) Approve(ctx context.Context, actor user.User, id string) (Reservation, error) {
	return svc.decide(ctx, actor, id, StatusApproved, "")
}

// Reject transitions a pending reservation to rejected, recording feedback.
// The actor must be the assigned supervisor or hold CanApproveProject.
func (svc *Service) Reject(ctx context.Context, actor user.User, id, feedback string) (Reservation, error) {
	return svc.decide(ctx, actor, id, StatusRejected, core.CleanString(feedback))
}

func (svc *Service) decide(ctx context.Context, actor user.User, id string, status Status, feedback string) (Reservation, error) {
	res, err := svc.repo.GetReservationByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}

	// authorization lives here, not in any UI: only the assigned supervisor,
	// or a role holding CanApproveProject, may decide
	if actor.ID != res.SupervisorID && !actor.Can(user.CanApproveProject) {
		return Reservation{}, ErrForbidden
	}

	var fb null.String
	if feedback != "" {
		fb = null.StringFrom(feedback)
	}
	res, err = svc.repo.UpdateReservationStatus(ctx, id, status, nowFunc().UTC(), fb)
	if err != nil {
		return Reservation{}, err
	}

	action := ActionApproved
	subject := "Project reservation approved"
	body := fmt.Sprintf("Your reservation of the project %q has been approved.", res.ProjectTitle)
	if status == StatusRejected {
		action = ActionRejected
		subject = "Project reservation rejected"
		body = fmt.Sprintf("Your reservation of the project %q has been rejected.", res.ProjectTitle)
		if res.Feedback.Valid {
			body += "\nFeedback: " + res.Feedback.String
		}
	}
	if student, sErr := svc.usrSvc.GetByID(ctx, res.StudentID); sErr == nil {
		svc.notify(student, subject, body)
	} else {
		svc.logger.Warn(fmt.Sprintf("reservation %s: finding student %s: %v", res.ID, res.StudentID, sErr))
	}
	svc.publish(action, res)
	return res, nil
}

// GetStatus returns the status of the pair's most recent reservation;
// ErrNotFound when the student never reserved the project.
func (svc *Service) GetStatus(ctx context.Context, projectID, studentID string) (Status, error) {
	res, err := svc.repo.GetLatestReservation(ctx, projectID, studentID)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// IsReservedByUser reports whether the student holds a pending or approved
// reservation of the project.
func (svc *Service) IsReservedByUser(ctx context.Context, projectID, studentID string) (bool, error) {
	if _, err := svc.repo.GetActiveReservation(ctx, projectID, studentID); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Reservation, error) {
	return svc.repo.GetReservationByID(ctx, id)
}

// Filter lists reservations visible to the actor: holders of
// CanViewAllReservations see everything, supervisors see the ones assigned
// to them, everyone else sees their own.
func (svc *Service) Filter(ctx context.Context, actor user.User, filter QueryFilter) ([]Reservation, error) {
	switch {
	case actor.Can(user.CanViewAllReservations):
	case actor.IsSupervisor():
		filter.SupervisorID = actor.ID
	default:
		filter.StudentID = actor.ID
	}
	return svc.repo.FilterReservations(ctx, filter)
}

// Subscribe registers a listener on the change feed.
func (svc *Service) Subscribe() (<-chan Event, func()) {
	return svc.hub.Subscribe()
}

// notify is a sink: a failed notification is logged, never surfaced.
func (svc *Service) notify(to user.User, subject, body string) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: to.Name, Address: to.Email}},
		Subject: subject,
		Body:    body,
	})
}

func (svc *Service) publish(action Action, res Reservation) {
	if svc.hub != nil {
		svc.hub.Publish(Event{Action: action, Reservation: res})
	}
}
