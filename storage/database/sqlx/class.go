package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/class"
)

const pqUniqueViolation = "23505"

type classRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	StartTime   time.Time `db:"start_time"`
	EndTime     time.Time `db:"end_time"`
	Capacity    int       `db:"capacity"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type enrollmentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ClassID   string    `db:"class_id"`
	CreatedAt time.Time `db:"created_at"`

	// joined user columns; only selected on detailed queries
	UserName  sql.NullString `db:"user_name"`
	UserEmail sql.NullString `db:"user_email"`
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo classRepository) fromRow(row classRow) class.Class {
	return class.Class{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
		Capacity:    row.Capacity,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Enrollments: []class.Enrollment{},
	}
}

func (repo classRepository) fromEnrollmentRow(row enrollmentRow, withUser bool) class.Enrollment {
	enr := class.Enrollment{
		ID:        row.ID,
		UserID:    row.UserID,
		ClassID:   row.ClassID,
		CreatedAt: row.CreatedAt,
	}
	if withUser {
		enr.User = &class.EnrolledUser{
			ID:    row.UserID,
			Name:  row.UserName.String,
			Email: row.UserEmail.String,
		}
	}
	return enr
}

func (repo classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	row := classRow{
		ID:          cls.ID,
		Title:       cls.Title,
		Description: cls.Description,
		StartTime:   cls.StartTime.UTC(),
		EndTime:     cls.EndTime.UTC(),
		Capacity:    cls.Capacity,
		CreatedAt:   cls.CreatedAt.UTC(),
		UpdatedAt:   cls.UpdatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO class (id, title, description, start_time, end_time, capacity, created_at, updated_at)
		VALUES (:id, :title, :description, :start_time, :end_time, :capacity, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	cls.Enrollments = []class.Enrollment{}
	return cls, nil
}

// attachEnrollments groups enrollment rows onto their classes.
func (repo classRepository) attachEnrollments(classes []class.Class, rows []enrollmentRow, withUsers bool) []class.Class {
	byID := make(map[string]int, len(classes))
	for i, cls := range classes {
		byID[cls.ID] = i
	}
	for _, row := range rows {
		if i, ok := byID[row.ClassID]; ok {
			classes[i].Enrollments = append(classes[i].Enrollments, repo.fromEnrollmentRow(row, withUsers))
		}
	}
	return classes
}

func (repo classRepository) queryClassRows(ctx context.Context, query string, args ...interface{}) ([]class.Class, error) {
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, repo.fromRow(row))
	}
	return classes, nil
}

func (repo classRepository) QueryClasses(ctx context.Context, withUsers bool) ([]class.Class, error) {
	classes, err := repo.queryClassRows(ctx, `SELECT * FROM class ORDER BY start_time ASC`)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, class_id, created_at FROM enrollment`
	if withUsers {
		query = `
			SELECT e.id, e.user_id, e.class_id, e.created_at, u.name AS user_name, u.email AS user_email
			FROM enrollment e JOIN "user" u ON u.id = e.user_id`
	}
	var enrRows []enrollmentRow
	if err = repo.db.SelectContext(ctx, &enrRows, query); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return repo.attachEnrollments(classes, enrRows, withUsers), nil
}

func (repo classRepository) QueryEnrolledClasses(ctx context.Context, userID string) ([]class.Class, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []class.Class{}, nil
	}
	classes, err := repo.queryClassRows(ctx, `
		SELECT c.* FROM class c
		WHERE EXISTS (SELECT 1 FROM enrollment e WHERE e.class_id = c.id AND e.user_id = $1)
		ORDER BY c.start_time ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	var enrRows []enrollmentRow
	err = repo.db.SelectContext(ctx, &enrRows, `
		SELECT e.id, e.user_id, e.class_id, e.created_at, u.name AS user_name, u.email AS user_email
		FROM enrollment e JOIN "user" u ON u.id = e.user_id
		WHERE e.class_id IN (SELECT class_id FROM enrollment WHERE user_id = $1)`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return repo.attachEnrollments(classes, enrRows, true), nil
}

func (repo classRepository) GetClassByID(ctx context.Context, id string) (class.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "finding class by ID")
	}
	return repo.fromRow(row), nil
}

func (repo classRepository) DeleteClass(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return class.ErrNotFound
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning delete class tx")
	}
	defer func() { _ = tx.Rollback() }()

	// explicit two-step cascade: enrollments first, then the class
	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollment WHERE class_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting class enrollments")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM class WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return class.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "committing delete class tx")
}

func (repo classRepository) ClearClasses(ctx context.Context) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning clear tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollment`); err != nil {
		return errors.Wrap(err, "deleting enrollments")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM class`); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return errors.Wrap(tx.Commit(), "committing clear tx")
}

// CreateEnrollment locks the class row so the capacity check and the insert
// are serialized per class; the (user_id, class_id) unique constraint backs
// the duplicate check.
func (repo classRepository) CreateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	enr.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return class.Enrollment{}, errors.Wrap(err, "beginning enroll tx")
	}
	defer func() { _ = tx.Rollback() }()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM class WHERE id = $1 FOR UPDATE`, enr.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return class.Enrollment{}, class.ErrNotFound
		}
		return class.Enrollment{}, errors.Wrap(err, "locking class")
	}

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollment WHERE class_id = $1`, enr.ClassID); err != nil {
		return class.Enrollment{}, errors.Wrap(err, "counting enrollments")
	}
	if count >= capacity {
		return class.Enrollment{}, class.ErrClassFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrollment (id, user_id, class_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		enr.ID, enr.UserID, enr.ClassID, enr.CreatedAt.UTC(),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		return class.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	if err = tx.Commit(); err != nil {
		return class.Enrollment{}, errors.Wrap(err, "committing enroll tx")
	}
	return enr, nil
}

func (repo classRepository) DeleteEnrollment(ctx context.Context, userID, classID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return class.ErrEnrollmentNotFound
	}
	if _, err := uuid.Parse(classID); err != nil {
		return class.ErrEnrollmentNotFound
	}

	res, err := repo.db.ExecContext(ctx, `DELETE FROM enrollment WHERE user_id = $1 AND class_id = $2`, userID, classID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return class.ErrEnrollmentNotFound
	}
	return nil
}
