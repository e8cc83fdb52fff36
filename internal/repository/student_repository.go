package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/taskroster/internal/models"
)

const studentColumns = "student_id, name, course, dob, enroll_date, address, completed, enrolled_at"

// StudentRepository manages persistence for enrollment records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Course != "" {
		conditions = append(conditions, "LOWER(course) = ?")
		args = append(args, strings.ToLower(filter.Course))
	}
	if filter.Completed != "" {
		conditions = append(conditions, "completed = ?")
		args = append(args, filter.Completed)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(student_id) LIKE ?)")
		term := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, term, term)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"student_id": "student_id",
		"name":       "name",
		"course":     "course",
		"timestamp":  "enrolled_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY %s %s, student_id ASC LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM students "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// All returns every student in enrollment order.
func (r *StudentRepository) All(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	query := "SELECT " + studentColumns + " FROM students ORDER BY enrolled_at ASC, student_id ASC"
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query)); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := r.db.Rebind("SELECT " + studentColumns + " FROM students WHERE student_id = ?")
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByID reports whether a student id is taken.
func (r *StudentRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists int
	query := r.db.Rebind("SELECT 1 FROM students WHERE student_id = ? LIMIT 1")
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	return insertStudent(ctx, r.db, student)
}

// Update rewrites the student stored under currentID. The record may carry a new
// student id.
func (r *StudentRepository) Update(ctx context.Context, currentID string, student *models.Student) error {
	return updateStudent(ctx, r.db, currentID, student)
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM students WHERE student_id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectOne(res)
}

// Import applies updates and inserts in one transaction.
func (r *StudentRepository) Import(ctx context.Context, updates, inserts []models.Student) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for i := range updates {
		if err = updateStudent(ctx, tx, updates[i].StudentID, &updates[i]); err != nil {
			return err
		}
	}
	for i := range inserts {
		if err = insertStudent(ctx, tx, &inserts[i]); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

func insertStudent(ctx context.Context, db execer, student *models.Student) error {
	if student.Timestamp.IsZero() {
		student.Timestamp = time.Now().UTC()
	}
	query := db.Rebind(`INSERT INTO students (` + studentColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := db.ExecContext(ctx, query, student.StudentID, student.Name, student.Course, student.DOB,
		student.EnrollDate, student.Address, student.Completed, student.Timestamp.UTC()); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

func updateStudent(ctx context.Context, db execer, currentID string, student *models.Student) error {
	query := db.Rebind(`UPDATE students SET student_id = ?, name = ?, course = ?, dob = ?, enroll_date = ?, address = ?, completed = ?
        WHERE student_id = ?`)
	res, err := db.ExecContext(ctx, query, student.StudentID, student.Name, student.Course, student.DOB,
		student.EnrollDate, student.Address, student.Completed, currentID)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectOne(res)
}
