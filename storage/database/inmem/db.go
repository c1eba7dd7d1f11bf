// Package inmemdb provides in-memory repositories for tests and local dev.
package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/class"
	"github.com/darasahq/darasa/core/user"
)

type DB struct {
	sync.RWMutex

	users       map[string]*user.User
	classes     map[string]*class.Class
	enrollments map[string]*class.Enrollment
}

func Open() (*DB, error) {
	return &DB{
		users:       make(map[string]*user.User),
		classes:     make(map[string]*class.Class),
		enrollments: make(map[string]*class.Enrollment),
	}, nil
}

// Reset drops all stored data.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()

	db.users = make(map[string]*user.User)
	db.classes = make(map[string]*class.Class)
	db.enrollments = make(map[string]*class.Enrollment)
}
