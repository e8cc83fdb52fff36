package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/internal/models"
)

var studentRowColumns = []string{"student_id", "name", "course", "dob", "enroll_date", "address", "completed", "enrolled_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("S001", "Ada", "Maths", "10/12/1815", "01/01/1832", "London", "No", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, name, course, dob, enroll_date, address, completed, enrolled_at FROM students WHERE 1=1 AND LOWER(course) = ? AND (LOWER(name) LIKE ? OR LOWER(student_id) LIKE ?) ORDER BY name ASC, student_id ASC LIMIT 20 OFFSET 0")).
		WithArgs("maths", "%ad%", "%ad%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND LOWER(course) = ? AND (LOWER(name) LIKE ? OR LOWER(student_id) LIKE ?)")).
		WithArgs("maths", "%ad%", "%ad%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Course: "Maths", Search: "AD", SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S001", students[0].StudentID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE student_id = ? LIMIT 1")).
		WithArgs("S001").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE student_id = ? LIMIT 1")).
		WithArgs("S404").
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.ExistsByID(context.Background(), "S001")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ExistsByID(context.Background(), "S404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateChangesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET student_id = \\?").
		WithArgs("S002", "Ada", "Maths", "10/12/1815", "01/01/1832", "London", "Yes", "S001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "S001", &models.Student{StudentID: "S002", Name: "Ada", Course: "Maths", DOB: "10/12/1815", EnrollDate: "01/01/1832", Address: "London", Completed: "Yes"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryImportRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Import(context.Background(),
		[]models.Student{{StudentID: "S001", Name: "Ada"}},
		[]models.Student{{StudentID: "S002", Name: "Bob"}},
	)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryImportCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs("S002", "Bob", "Art", "", "", "", "No", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Import(context.Background(), nil, []models.Student{{StudentID: "S002", Name: "Bob", Course: "Art", Completed: "No"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE student_id = ?")).
		WithArgs("S404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "S404"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
