package class

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("class not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrClassFull          = errors.New("class is full")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this class")
	ErrTimeOrder          = errors.New("start time must be before end time")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// QueryClasses returns all classes with their enrollments, ordered by
		// start time ascending. withUsers populates Enrollment.User.
		QueryClasses(ctx context.Context, withUsers bool) ([]Class, error)
		// QueryEnrolledClasses returns the classes `userID` is enrolled in,
		// with detailed enrollments, ordered by start time ascending.
		QueryEnrolledClasses(ctx context.Context, userID string) ([]Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		// DeleteClass deletes the class's enrollments, then the class.
		DeleteClass(ctx context.Context, id string) error
		// ClearClasses deletes every enrollment, then every class.
		ClearClasses(ctx context.Context) error

		// CreateEnrollment inserts the enrollment iff the class still has a
		// free seat and the (user, class) pair is new; it returns ErrClassFull
		// or ErrAlreadyEnrolled otherwise. The capacity check and the insert
		// are atomic.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// DeleteEnrollment removes the (userID, classID) enrollment;
		// ErrEnrollmentNotFound if absent.
		DeleteEnrollment(ctx context.Context, userID, classID string) error
	}

	Service interface {
		Query(ctx context.Context) ([]Class, error)
		QueryDetailed(ctx context.Context) ([]Class, error)
		QueryEnrolled(ctx context.Context, userID string) ([]Class, error)
		Create(ctx context.Context, nc NewClass) (Class, error)
		CreateRecurring(ctx context.Context, nrc NewRecurringClass) (BatchResult, error)
		Delete(ctx context.Context, id string) error
		Clear(ctx context.Context) error
		Enroll(ctx context.Context, userID, classID string) (Enrollment, error)
		Unenroll(ctx context.Context, userID, classID string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Query(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, false)
}

func (svc *service) QueryDetailed(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, true)
}

func (svc *service) QueryEnrolled(ctx context.Context, userID string) ([]Class, error) {
	return svc.repo.QueryEnrolledClasses(ctx, userID)
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	if !nc.StartTime.Before(nc.EndTime) {
		return Class{}, ErrTimeOrder
	}
	now := NowFunc().UTC()
	cls := Class{
		Title:       nc.Title,
		Description: nc.Description,
		StartTime:   nc.StartTime.UTC(),
		EndTime:     nc.EndTime.UTC(),
		Capacity:    nc.Capacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClass(ctx, cls)
}

// CreateRecurring expands the recurrence and creates the resulting classes
// best-effort: a time-ordering violation fails the whole batch before any
// persistence; any later per-slot failure is collected and the remaining
// slots are still attempted.
func (svc *service) CreateRecurring(ctx context.Context, nrc NewRecurringClass) (BatchResult, error) {
	slots, err := nrc.Recurrence.Slots()
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Created: make([]Class, 0, len(slots))}
	for _, slot := range slots {
		cls, err := svc.Create(ctx, NewClass{
			Title:       nrc.Title,
			Description: nrc.Description,
			StartTime:   slot.Start,
			EndTime:     slot.End,
			Capacity:    nrc.Capacity,
		})
		if err != nil {
			res.Errors = append(res.Errors,
				fmt.Sprintf("failed to create class for %s: %v", slot.Start.Format("2006-01-02"), err))
			continue
		}
		res.Created = append(res.Created, cls)
	}
	return res, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *service) Clear(ctx context.Context) error {
	return svc.repo.ClearClasses(ctx)
}

func (svc *service) Enroll(ctx context.Context, userID, classID string) (Enrollment, error) {
	if _, err := svc.repo.GetClassByID(ctx, classID); err != nil {
		return Enrollment{}, err
	}
	enr := Enrollment{
		UserID:    userID,
		ClassID:   classID,
		CreatedAt: NowFunc().UTC(),
	}
	return svc.repo.CreateEnrollment(ctx, enr)
}

func (svc *service) Unenroll(ctx context.Context, userID, classID string) error {
	return svc.repo.DeleteEnrollment(ctx, userID, classID)
}
