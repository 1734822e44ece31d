package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core/reservation"
)

type reservationRepository struct {
	db *reservationTable
}

var _ reservation.Repository = (*reservationRepository)(nil) // interface compliance check

func NewReservationRepository(db *DB) *reservationRepository {
	return &reservationRepository{db: db.reservation}
}

func (repo *reservationRepository) query() []reservation.Reservation {
	all := make([]reservation.Reservation, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestDate.After(all[j].RequestDate) })
	return all
}

func (repo *reservationRepository) CreateReservation(_ context.Context, res reservation.Reservation) (reservation.Reservation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// the inmem stand-in for the partial unique index
	for _, r := range repo.db.table {
		if r.ProjectID == res.ProjectID && r.StudentID == res.StudentID && r.IsActive() {
			return reservation.Reservation{}, reservation.ErrAlreadyReserved
		}
	}
	repo.db.table[res.ID] = &res
	return res, nil
}

func (repo *reservationRepository) GetReservationByID(_ context.Context, id string) (reservation.Reservation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return reservation.Reservation{}, reservation.ErrNotFound
}

func (repo *reservationRepository) QueryAllReservations(_ context.Context) ([]reservation.Reservation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *reservationRepository) FilterReservations(_ context.Context, filter reservation.QueryFilter) ([]reservation.Reservation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	all := repo.query()
	if filter.IsEmpty() {
		return all, nil
	}

	filtered := make([]reservation.Reservation, 0, len(all))
	for _, r := range all {
		if filter.ProjectID != "" && r.ProjectID != filter.ProjectID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.SupervisorID != "" && r.SupervisorID != filter.SupervisorID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

func (repo *reservationRepository) GetActiveReservation(_ context.Context, projectID, studentID string) (reservation.Reservation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.table {
		if r.ProjectID == projectID && r.StudentID == studentID && r.IsActive() {
			return *r, nil
		}
	}
	return reservation.Reservation{}, reservation.ErrNotFound
}

func (repo *reservationRepository) GetLatestReservation(_ context.Context, projectID, studentID string) (reservation.Reservation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *reservation.Reservation
	for _, r := range repo.db.table {
		if r.ProjectID != projectID || r.StudentID != studentID {
			continue
		}
		if latest == nil || r.RequestDate.After(latest.RequestDate) {
			latest = r
		}
	}
	if latest == nil {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return *latest, nil
}

func (repo *reservationRepository) UpdateReservationStatus(_ context.Context, id string, status reservation.Status, responseDate time.Time, feedback null.String) (reservation.Reservation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	if orig.Status != reservation.StatusPending {
		return reservation.Reservation{}, reservation.ErrAlreadyDecided
	}
	orig.Status = status
	orig.ResponseDate = null.TimeFrom(responseDate)
	orig.Feedback = feedback
	return *orig, nil
}
