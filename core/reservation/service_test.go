package reservation_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
	emailsvc "github.com/tujenge/kazipro/services/email"
	logsvc "github.com/tujenge/kazipro/services/logger"
	inmemdb "github.com/tujenge/kazipro/storage/database/inmem"
	testutil "github.com/tujenge/kazipro/tests"
)

type fixture struct {
	svc     *reservation.Service
	resRepo reservation.Repository

	admin       user.User
	manager     user.User
	supervisor  user.User
	supervisor2 user.User
	student     user.User
	student2    user.User

	project project.Project
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	prjRepo := inmemdb.NewProjectRepository(db)
	resRepo := inmemdb.NewReservationRepository(db)

	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock()

	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	logger.Enable(false)

	usrSvc := user.NewService(usrRepo, mailSvc)
	prjSvc := project.NewService(prjRepo)
	svc := reservation.NewService(resRepo, prjSvc, usrSvc, mailSvc, logger, reservation.NewHub())

	f := &fixture{svc: svc, resRepo: resRepo}
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admino", "admin@test.cd", "", user.RoleAdmin, true)
	f.manager = testutil.CreateUser(t, usrRepo, "Manager", "manager", "pm@test.cd", "", user.RoleProjectManager, true)
	f.supervisor = testutil.CreateUser(t, usrRepo, "Super", "superv", "sup@test.cd", "", user.RoleSupervisor, true)
	f.supervisor2 = testutil.CreateUser(t, usrRepo, "Super2", "superv2", "sup2@test.cd", "", user.RoleSupervisor, true)
	f.student = testutil.CreateUser(t, usrRepo, "Asha", "ashaaa", "asha@test.cd", "", user.RoleStudent, true)
	f.student2 = testutil.CreateUser(t, usrRepo, "Neema", "neemaa", "neema@test.cd", "", user.RoleStudent, true)
	f.project = testutil.CreateProject(t, prjRepo, "Smart Irrigation", f.manager.ID, f.supervisor.ID)
	return f
}

func (f *fixture) countAll(t *testing.T) int {
	all, err := f.resRepo.QueryAllReservations(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestService_Reserve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, res.Status)
	assert.Equal(t, f.student.ID, res.StudentID)
	assert.Equal(t, f.project.Title, res.ProjectTitle)
	assert.False(t, res.RequestDate.IsZero())
	assert.False(t, res.ResponseDate.Valid)

	reserved, err := f.svc.IsReservedByUser(ctx, f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.True(t, reserved)

	// the supervisor is notified
	msgs := emailsvc.GetSentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.supervisor.Email, msgs[0].To[0].Address)
}

func TestService_Reserve_duplicateFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	count := f.countAll(t)

	_, err = f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	assert.Equal(t, reservation.ErrAlreadyReserved, err)
	assert.Equal(t, count, f.countAll(t)) // nothing written

	// another student is not blocked
	_, err = f.svc.Reserve(ctx, f.student2, f.project.ID, f.supervisor.ID)
	assert.NoError(t, err)
}

func TestService_Reserve_authorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// only roles holding the reserve capability may reserve
	_, err := f.svc.Reserve(ctx, f.supervisor, f.project.ID, f.supervisor.ID)
	assert.Equal(t, reservation.ErrForbidden, err)

	// the chosen supervisor must be assigned to the project
	_, err = f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor2.ID)
	assert.Equal(t, reservation.ErrInvalidSupervisor, err)

	// a non-supervisor cannot be chosen
	_, err = f.svc.Reserve(ctx, f.student, f.project.ID, f.student2.ID)
	assert.Equal(t, reservation.ErrInvalidSupervisor, err)

	_, err = f.svc.Reserve(ctx, f.student, "nope", f.supervisor.ID)
	assert.Equal(t, project.ErrNotFound, err)
}

func TestService_Approve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	emailsvc.ResetSentMessages()

	res, err = f.svc.Approve(ctx, f.supervisor, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusApproved, res.Status)
	assert.True(t, res.ResponseDate.Valid)

	status, err := f.svc.GetStatus(ctx, f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusApproved, status)

	// an approved reservation still blocks a retry
	_, err = f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	assert.Equal(t, reservation.ErrAlreadyReserved, err)

	// the student is notified
	msgs := emailsvc.GetSentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.student.Email, msgs[0].To[0].Address)
}

func TestService_Approve_authorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)

	// a supervisor not assigned to the reservation may not decide
	_, err = f.svc.Approve(ctx, f.supervisor2, res.ID)
	assert.Equal(t, reservation.ErrForbidden, err)

	// neither may the student
	_, err = f.svc.Approve(ctx, f.student, res.ID)
	assert.Equal(t, reservation.ErrForbidden, err)

	status, err := f.svc.GetStatus(ctx, f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, status) // unchanged

	// an admin may decide any reservation
	_, err = f.svc.Approve(ctx, f.admin, res.ID)
	assert.NoError(t, err)
}

func TestService_Reject_thenRetry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, f.supervisor, res.ID, "Insufficient prerequisites")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusRejected, rejected.Status)
	assert.Equal(t, "Insufficient prerequisites", rejected.Feedback.String)
	assert.True(t, rejected.ResponseDate.Valid)

	reserved, err := f.svc.IsReservedByUser(ctx, f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.False(t, reserved)

	// a rejection never blocks a new attempt
	count := f.countAll(t)
	retry, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	assert.NotEqual(t, rejected.ID, retry.ID)
	assert.Equal(t, count+1, f.countAll(t))

	// the rejected record is retained, not overwritten
	old, err := f.svc.GetByID(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusRejected, old.Status)

	status, err := f.svc.GetStatus(ctx, f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, status) // latest record wins
}

func TestService_decide_edgeCases(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// a missing reservation is an error, not a no-op
	_, err := f.svc.Approve(ctx, f.admin, "nope")
	assert.Equal(t, reservation.ErrNotFound, err)
	assert.Equal(t, 0, f.countAll(t))

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.supervisor, res.ID)
	require.NoError(t, err)

	// a decision is made exactly once
	_, err = f.svc.Reject(ctx, f.supervisor, res.ID, "")
	assert.Equal(t, reservation.ErrAlreadyDecided, err)
	_, err = f.svc.Approve(ctx, f.supervisor, res.ID)
	assert.Equal(t, reservation.ErrAlreadyDecided, err)
}

func TestService_GetStatus_neverReserved(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GetStatus(context.Background(), f.project.ID, f.student.ID)
	assert.Equal(t, reservation.ErrNotFound, err)

	reserved, err := f.svc.IsReservedByUser(context.Background(), f.project.ID, f.student.ID)
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestService_Filter_visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res1, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)
	res2, err := f.svc.Reserve(ctx, f.student2, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)

	// privileged roles see everything
	all, err := f.svc.Filter(ctx, f.admin, reservation.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// a supervisor sees the ones assigned to them
	mine, err := f.svc.Filter(ctx, f.supervisor2, reservation.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine)

	// a student sees only their own
	own, err := f.svc.Filter(ctx, f.student, reservation.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, res1.ID, own[0].ID)

	own, err = f.svc.Filter(ctx, f.student2, reservation.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, res2.ID, own[0].ID)
}

func TestService_Subscribe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	events, unsub := f.svc.Subscribe()
	defer unsub()

	res, err := f.svc.Reserve(ctx, f.student, f.project.ID, f.supervisor.ID)
	require.NoError(t, err)

	evt := <-events
	assert.Equal(t, reservation.ActionCreated, evt.Action)
	assert.Equal(t, res.ID, evt.Reservation.ID)

	_, err = f.svc.Approve(ctx, f.supervisor, res.ID)
	require.NoError(t, err)

	evt = <-events
	assert.Equal(t, reservation.ActionApproved, evt.Action)
	assert.Equal(t, reservation.StatusApproved, evt.Reservation.Status)
}
