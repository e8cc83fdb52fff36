package models

import (
	"strings"
	"time"

	"github.com/noah-isme/taskroster/pkg/record"
	"github.com/noah-isme/taskroster/pkg/validation"
)

// Completion flags for students.
const (
	CompletedYes = "Yes"
	CompletedNo  = "No"
)

// Student is an enrollment record. DOB and EnrollDate are DD/MM/YYYY text.
type Student struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	Name       string    `db:"name" json:"name"`
	Course     string    `db:"course" json:"course"`
	DOB        string    `db:"dob" json:"dob"`
	EnrollDate string    `db:"enroll_date" json:"enroll_date"`
	Address    string    `db:"address" json:"address"`
	Completed  string    `db:"completed" json:"completed"`
	Timestamp  time.Time `db:"enrolled_at" json:"timestamp"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Course    string
	Completed string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Student field labels, used as delimited header names.
const (
	StudentFieldID         = "StudentID"
	StudentFieldName       = "Name"
	StudentFieldCourse     = "Course"
	StudentFieldDOB        = "DOB"
	StudentFieldEnrollDate = "EnrollDate"
	StudentFieldAddress    = "Address"
	StudentFieldCompleted  = "Completed"
	StudentFieldTimestamp  = "Timestamp"
)

// StudentSchema returns the student layout with its validators. today supplies the
// reference date for the birth date check.
func StudentSchema(minAge int, today func() time.Time) record.Schema {
	if minAge <= 0 {
		minAge = validation.DefaultMinAge
	}
	if today == nil {
		today = time.Now
	}
	return record.Schema{
		Name: "students",
		Key:  StudentFieldID,
		Fields: []record.Field{
			{Name: StudentFieldID, Rule: validation.ID, Message: "Student ID must be 3-20 alphanumeric characters"},
			{Name: StudentFieldName, Rule: validation.Name, Message: "Name must be 2-50 characters, letters only"},
			{Name: StudentFieldCourse, Rule: validation.Course, Message: "Course must be 2-100 characters"},
			{Name: StudentFieldDOB, Rule: validation.Date, Message: "Date of Birth must be in DD/MM/YYYY format"},
			{Name: StudentFieldEnrollDate, Rule: validation.Date, Message: "Enrollment Date must be in DD/MM/YYYY format"},
			{Name: StudentFieldAddress, Rule: validation.Freeform(5, 200), Message: "Address must be 5-200 characters"},
			{Name: StudentFieldCompleted, Rule: validation.Enumerated(CompletedYes, CompletedNo), Message: "Completed must be Yes or No"},
			{Name: StudentFieldTimestamp},
		},
		MinFields: 7,
		Compare:   []string{StudentFieldName, StudentFieldCourse, StudentFieldDOB},
		Cross: []record.CrossRule{func(r record.Record) []string {
			birth, err := validation.ParseDate(r[StudentFieldDOB])
			if err != nil {
				return nil
			}
			enroll, err := validation.ParseDate(r[StudentFieldEnrollDate])
			if err != nil {
				return nil
			}
			return validation.EnrollmentDates(birth, enroll, today(), minAge)
		}},
	}
}

// ToRecord converts a student to its delimited form.
func (s Student) ToRecord() record.Record {
	ts := ""
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.UTC().Format(time.RFC3339)
	}
	return record.Record{
		StudentFieldID:         s.StudentID,
		StudentFieldName:       s.Name,
		StudentFieldCourse:     s.Course,
		StudentFieldDOB:        s.DOB,
		StudentFieldEnrollDate: s.EnrollDate,
		StudentFieldAddress:    s.Address,
		StudentFieldCompleted:  s.Completed,
		StudentFieldTimestamp:  ts,
	}
}

// StudentFromRecord rebuilds a student from a validated record. Text fields are
// trimmed and the free-text ones escaped; an unparseable timestamp is an error.
func StudentFromRecord(r record.Record) (Student, error) {
	s := Student{
		StudentID:  strings.TrimSpace(r[StudentFieldID]),
		Name:       strings.TrimSpace(r[StudentFieldName]),
		Course:     strings.TrimSpace(r[StudentFieldCourse]),
		DOB:        strings.TrimSpace(r[StudentFieldDOB]),
		EnrollDate: strings.TrimSpace(r[StudentFieldEnrollDate]),
		Address:    strings.TrimSpace(r[StudentFieldAddress]),
		Completed:  strings.TrimSpace(r[StudentFieldCompleted]),
	}
	s.Escape()
	if v := strings.TrimSpace(r[StudentFieldTimestamp]); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Student{}, err
		}
		s.Timestamp = ts
	}
	return s, nil
}

// Escape neutralises markup in the free-text fields. Applying it twice is harmless.
func (s *Student) Escape() {
	s.Name = validation.Sanitize(s.Name)
	s.Course = validation.Sanitize(s.Course)
	s.Address = validation.Sanitize(s.Address)
}

// EscapeStudentRecords returns copies of records with the free-text fields escaped
// the way stored students are.
func EscapeStudentRecords(records []record.Record) []record.Record {
	out := make([]record.Record, len(records))
	for i, r := range records {
		c := make(record.Record, len(r))
		for k, v := range r {
			c[k] = v
		}
		for _, field := range []string{StudentFieldName, StudentFieldCourse, StudentFieldAddress} {
			if v, ok := c[field]; ok {
				c[field] = validation.Sanitize(v)
			}
		}
		out[i] = c
	}
	return out
}

// StudentRecords converts a student slice.
func StudentRecords(students []Student) []record.Record {
	out := make([]record.Record, len(students))
	for i, s := range students {
		out[i] = s.ToRecord()
	}
	return out
}
