package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"studygroup-service/internal/models"
)

const uniqueViolation = "23505"

// StudentRepo is a sqlx implementation of StudentRepository and
// AccountRepository; accounts and profiles are written together.
type StudentRepo struct {
	db *sqlx.DB
}

// NewStudentRepo constructs a StudentRepo.
func NewStudentRepo(db *sqlx.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

type studentRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Name         string         `db:"name"`
	Courses      pq.StringArray `db:"courses"`
	CGPA         string         `db:"cgpa"`
	Availability pq.StringArray `db:"availability"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r studentRow) toModel() models.Student {
	return models.Student{
		ID:           r.ID,
		Username:     r.Username,
		Name:         r.Name,
		Courses:      nonNil(r.Courses),
		CGPA:         r.CGPA,
		Availability: nonNil(r.Availability),
		CreatedAt:    r.CreatedAt,
	}
}

const studentColumns = `id, username, name, courses, cgpa, availability, created_at`

// ListStudents returns every profile, oldest first.
func (r *StudentRepo) ListStudents(ctx context.Context) ([]models.Student, error) {
	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+studentColumns+` FROM students ORDER BY created_at ASC, username ASC`); err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// GetStudentByUsername fetches one profile.
func (r *StudentRepo) GetStudentByUsername(ctx context.Context, username string) (models.Student, error) {
	var row studentRow
	err := r.db.GetContext(ctx, &row, `SELECT `+studentColumns+` FROM students WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Student{}, ErrStudentNotFound
	}
	if err != nil {
		return models.Student{}, err
	}
	return row.toModel(), nil
}

// UpdateStudent overwrites the editable profile fields.
func (r *StudentRepo) UpdateStudent(ctx context.Context, student models.Student) (models.Student, error) {
	var row studentRow
	err := r.db.QueryRowxContext(ctx, `UPDATE students SET name=$2, courses=$3, cgpa=$4, availability=$5
        WHERE username=$1 RETURNING `+studentColumns,
		student.Username, student.Name, pq.StringArray(student.Courses), student.CGPA, pq.StringArray(student.Availability)).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Student{}, ErrStudentNotFound
	}
	if err != nil {
		return models.Student{}, err
	}
	return row.toModel(), nil
}

// CreateAccount inserts the profile and the credential in one transaction.
func (r *StudentRepo) CreateAccount(ctx context.Context, account models.Account, student models.Student) (models.Student, error) {
	var created models.Student
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row studentRow
		if err := tx.QueryRowxContext(ctx, `INSERT INTO students (id, username, name, courses, cgpa, availability)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+studentColumns,
			student.ID, student.Username, student.Name, pq.StringArray(student.Courses), student.CGPA, pq.StringArray(student.Availability)).
			StructScan(&row); err != nil {
			return fmt.Errorf("insert student: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (username, password_hash, student_id) VALUES ($1, $2, $3)`,
			account.Username, account.PasswordHash, row.ID); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		created = row.toModel()
		return nil
	})
	if isUniqueViolation(err) {
		return models.Student{}, ErrUsernameTaken
	}
	return created, err
}

// GetAccount fetches credentials by username.
func (r *StudentRepo) GetAccount(ctx context.Context, username string) (models.Account, error) {
	var row struct {
		Username     string `db:"username"`
		PasswordHash string `db:"password_hash"`
		StudentID    string `db:"student_id"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT username, password_hash, student_id FROM accounts WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{Username: row.Username, PasswordHash: row.PasswordHash, StudentID: row.StudentID}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
