package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

// enrollmentsOf collects a class's enrollments; callers must hold the lock.
func (repo *classRepository) enrollmentsOf(classID string, withUsers bool) []class.Enrollment {
	enrs := make([]class.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.ClassID != classID {
			continue
		}
		e := *enr
		e.User = nil
		if withUsers {
			if usr, ok := repo.db.users[e.UserID]; ok {
				e.User = &class.EnrolledUser{ID: usr.ID, Name: usr.Name, Email: usr.Email}
			} else {
				e.User = &class.EnrolledUser{ID: e.UserID}
			}
		}
		enrs = append(enrs, e)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].CreatedAt.Before(enrs[j].CreatedAt) })
	return enrs
}

func (repo *classRepository) query(withUsers bool, userID string) []class.Class {
	classes := make([]class.Class, 0, len(repo.db.classes))
	for _, cls := range repo.db.classes {
		c := *cls
		c.Enrollments = repo.enrollmentsOf(c.ID, withUsers)
		if userID != "" {
			var enrolled bool
			for _, enr := range c.Enrollments {
				if enr.UserID == userID {
					enrolled = true
					break
				}
			}
			if !enrolled {
				continue
			}
		}
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].StartTime.Before(classes[j].StartTime) })
	return classes
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = uuid.New().String()
	cls.Enrollments = []class.Enrollment{}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, withUsers bool) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(withUsers, ""), nil
}

func (repo *classRepository) QueryEnrolledClasses(ctx context.Context, userID string) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(true, userID), nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		c := *cls
		c.Enrollments = repo.enrollmentsOf(c.ID, false)
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	for enrID, enr := range repo.db.enrollments {
		if enr.ClassID == id {
			delete(repo.db.enrollments, enrID)
		}
	}
	delete(repo.db.classes, id)
	return nil
}

func (repo *classRepository) ClearClasses(ctx context.Context) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.enrollments = make(map[string]*class.Enrollment)
	repo.db.classes = make(map[string]*class.Class)
	return nil
}

func (repo *classRepository) CreateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.classes[enr.ClassID]
	if !ok {
		return class.Enrollment{}, class.ErrNotFound
	}

	var count int
	for _, existing := range repo.db.enrollments {
		if existing.ClassID != enr.ClassID {
			continue
		}
		count++
	}
	if count >= cls.Capacity {
		return class.Enrollment{}, class.ErrClassFull
	}
	for _, existing := range repo.db.enrollments {
		if existing.ClassID == enr.ClassID && existing.UserID == enr.UserID {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) DeleteEnrollment(ctx context.Context, userID, classID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for enrID, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.ClassID == classID {
			delete(repo.db.enrollments, enrID)
			return nil
		}
	}
	return class.ErrEnrollmentNotFound
}
