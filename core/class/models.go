package class

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Class is a single scheduled session with fixed time bounds and capacity.
type Class struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"` // UTC
	EndTime     time.Time `json:"endTime"`   // UTC
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC

	Enrollments []Enrollment `json:"enrollments"`
}

// Enrollment links one User to one Class; (UserID, ClassID) is unique.
type Enrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ClassID   string    `json:"classId"`
	CreatedAt time.Time `json:"createdAt"` // UTC

	// User carries the enrolled user's public info on detailed queries; nil otherwise.
	User *EnrolledUser `json:"user,omitempty"`
}

// EnrolledUser is the subset of user info exposed on enrollment listings.
type EnrolledUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	Capacity    int       `json:"capacity" validate:"required,min=1"`
}

func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// NewRecurringClass contains information needed to create a weekly batch of Classes.
type NewRecurringClass struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Capacity    int        `json:"capacity" validate:"required,min=1"`
	Recurrence  Recurrence `json:"recurrence"`
}

func (nrc *NewRecurringClass) Validate(ctx context.Context, validate *validator.Validate) error {
	nrc.Title = core.CleanString(nrc.Title)
	nrc.Description = core.CleanString(nrc.Description)
	return validate.Struct(nrc)
}

// BatchResult summarizes a best-effort recurring creation.
type BatchResult struct {
	Created []Class  `json:"created"`
	Errors  []string `json:"errors"`
}
