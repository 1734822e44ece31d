package inmemdb

import (
	"sync"

	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
)

// DB is an in-memory store used in tests and demo mode.
// It is selected explicitly at wiring time, never as a hidden fallback
// for a failing relational store.
type (
	DB struct {
		user        *userTable
		project     *projectTable
		reservation *reservationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	projectTable struct {
		sync.RWMutex
		table       map[string]*project.Project
		supervisors map[string][]string
	}

	reservationTable struct {
		sync.RWMutex
		table map[string]*reservation.Reservation
	}
)

func Open() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		project:     &projectTable{table: make(map[string]*project.Project), supervisors: make(map[string][]string)},
		reservation: &reservationTable{table: make(map[string]*reservation.Reservation)},
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.project.Lock()
	db.project.table = make(map[string]*project.Project)
	db.project.supervisors = make(map[string][]string)
	db.project.Unlock()

	db.reservation.Lock()
	db.reservation.table = make(map[string]*reservation.Reservation)
	db.reservation.Unlock()
}
