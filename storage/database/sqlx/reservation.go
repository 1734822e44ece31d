package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tujenge/kazipro/core/reservation"
)

// activePairConstraint is the partial unique index enforcing at most one
// pending or approved reservation per (project, student) pair.
const activePairConstraint = "reservation_active_pair_uniq"

type reservationRepository struct {
	db *sqlx.DB
}

var _ reservation.Repository = (*reservationRepository)(nil) // interface compliance check

func NewReservationRepository(db *sqlx.DB) *reservationRepository {
	return &reservationRepository{db: db}
}

func (repo *reservationRepository) CreateReservation(ctx context.Context, res reservation.Reservation) (reservation.Reservation, error) {
	query := `
INSERT INTO reservation (id, project_id, project_title, student_id, student_name, supervisor_id, status, request_date, response_date, feedback)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, query,
		res.ID, res.ProjectID, res.ProjectTitle, res.StudentID, res.StudentName,
		res.SupervisorID, res.Status, res.RequestDate, res.ResponseDate, res.Feedback,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == activePairConstraint {
			return reservation.Reservation{}, reservation.ErrAlreadyReserved
		}
		return reservation.Reservation{}, errors.Wrap(err, "creating reservation")
	}
	return res, nil
}

func (repo *reservationRepository) GetReservationByID(ctx context.Context, id string) (reservation.Reservation, error) {
	var res reservation.Reservation
	if err := repo.db.GetContext(ctx, &res, `SELECT * FROM reservation WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return reservation.Reservation{}, reservation.ErrNotFound
		}
		return reservation.Reservation{}, errors.Wrap(err, "getting reservation")
	}
	return res, nil
}

func (repo *reservationRepository) QueryAllReservations(ctx context.Context) ([]reservation.Reservation, error) {
	all := make([]reservation.Reservation, 0)
	err := repo.db.SelectContext(ctx, &all, `SELECT * FROM reservation ORDER BY request_date DESC`)
	return all, errors.Wrap(err, "querying reservations")
}

func (repo *reservationRepository) FilterReservations(ctx context.Context, filter reservation.QueryFilter) ([]reservation.Reservation, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ProjectID != "" {
		conds = append(conds, fmt.Sprintf("project_id = %s", arg(filter.ProjectID)))
	}
	if filter.StudentID != "" {
		conds = append(conds, fmt.Sprintf("student_id = %s", arg(filter.StudentID)))
	}
	if filter.SupervisorID != "" {
		conds = append(conds, fmt.Sprintf("supervisor_id = %s", arg(filter.SupervisorID)))
	}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = %s", arg(filter.Status)))
	}

	query := `SELECT * FROM reservation`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY request_date DESC"

	all := make([]reservation.Reservation, 0)
	err := repo.db.SelectContext(ctx, &all, query, args...)
	return all, errors.Wrap(err, "filtering reservations")
}

func (repo *reservationRepository) GetActiveReservation(ctx context.Context, projectID, studentID string) (reservation.Reservation, error) {
	query := `
SELECT * FROM reservation
WHERE project_id = $1 AND student_id = $2 AND status IN ('pending', 'approved')
LIMIT 1`
	return repo.getReservation(ctx, query, projectID, studentID)
}

func (repo *reservationRepository) GetLatestReservation(ctx context.Context, projectID, studentID string) (reservation.Reservation, error) {
	query := `
SELECT * FROM reservation
WHERE project_id = $1 AND student_id = $2
ORDER BY request_date DESC
LIMIT 1`
	return repo.getReservation(ctx, query, projectID, studentID)
}

func (repo *reservationRepository) getReservation(ctx context.Context, query string, args ...interface{}) (reservation.Reservation, error) {
	var res reservation.Reservation
	if err := repo.db.GetContext(ctx, &res, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return reservation.Reservation{}, reservation.ErrNotFound
		}
		return reservation.Reservation{}, errors.Wrap(err, "getting reservation")
	}
	return res, nil
}

func (repo *reservationRepository) UpdateReservationStatus(ctx context.Context, id string, status reservation.Status, responseDate time.Time, feedback null.String) (reservation.Reservation, error) {
	// compare-and-swap on status: only a pending record may be decided,
	// so two concurrent deciders cannot both win
	query := `
UPDATE reservation SET status = $2, response_date = $3, feedback = $4
WHERE id = $1 AND status = 'pending'`
	out, err := repo.db.ExecContext(ctx, query, id, status, responseDate, feedback)
	if err != nil {
		return reservation.Reservation{}, errors.Wrap(err, "updating reservation status")
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		// distinguish a missing record from a lost race
		if _, err = repo.GetReservationByID(ctx, id); err != nil {
			return reservation.Reservation{}, err
		}
		return reservation.Reservation{}, reservation.ErrAlreadyDecided
	}
	return repo.GetReservationByID(ctx, id)
}
