package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProject(
	t *testing.T,
	repo project.Repository,
	title, createdBy string,
	supervisorIDs ...string,
) project.Project {
	now := time.Now().UTC()
	prj := project.Project{
		ID:          uuid.New().String(),
		Title:       title,
		CreatedBy:   createdBy,
		MaxStudents: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	prj, err := repo.CreateProject(context.Background(), prj)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	if len(supervisorIDs) > 0 {
		prj, err = repo.SetProjectSupervisors(context.Background(), prj.ID, supervisorIDs)
		if err != nil {
			t.Fatalf("CreateProject() failed: %v", err)
		}
	}
	return prj
}

func CreateReservation(
	t *testing.T,
	repo reservation.Repository,
	prj project.Project,
	student, supervisor user.User,
	status reservation.Status,
) reservation.Reservation {
	res := reservation.Reservation{
		ID:           uuid.New().String(),
		ProjectID:    prj.ID,
		ProjectTitle: prj.Title,
		StudentID:    student.ID,
		StudentName:  student.Name,
		SupervisorID: supervisor.ID,
		Status:       reservation.StatusPending,
		RequestDate:  time.Now().UTC(),
	}
	res, err := repo.CreateReservation(context.Background(), res)
	if err != nil {
		t.Fatalf("CreateReservation() failed: %v", err)
	}
	if status != reservation.StatusPending {
		res, err = repo.UpdateReservationStatus(context.Background(), res.ID, status, time.Now().UTC(), null.String{})
		if err != nil {
			t.Fatalf("CreateReservation() failed: %v", err)
		}
	}
	return res
}
