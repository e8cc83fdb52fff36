package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/validation"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, currentID string, student *models.Student) error
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, updates, inserts []models.Student) error
}

// StudentRequest is the payload for creating or editing a student.
type StudentRequest struct {
	StudentID  string `json:"student_id" validate:"required,recordid"`
	Name       string `json:"name" validate:"required,personname"`
	Course     string `json:"course" validate:"required,course"`
	DOB        string `json:"dob" validate:"required,ddmmyyyy"`
	EnrollDate string `json:"enroll_date" validate:"required,ddmmyyyy"`
	Address    string `json:"address" validate:"required,address"`
	Completed  string `json:"completed" validate:"required,oneof=Yes No"`
}

func (r *StudentRequest) trim() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Name = strings.TrimSpace(r.Name)
	r.Course = strings.TrimSpace(r.Course)
	r.DOB = strings.TrimSpace(r.DOB)
	r.EnrollDate = strings.TrimSpace(r.EnrollDate)
	r.Address = strings.TrimSpace(r.Address)
	r.Completed = strings.TrimSpace(r.Completed)
}

var studentLabels = map[string]string{
	"student_id":  "Student ID must be 3-20 alphanumeric characters",
	"name":        "Name must be 2-50 characters, letters only",
	"course":      "Course must be 2-100 characters",
	"dob":         "Date of Birth must be in DD/MM/YYYY format",
	"enroll_date": "Enrollment Date must be in DD/MM/YYYY format",
	"address":     "Address must be 5-200 characters",
	"completed":   "Completed must be Yes or No",
}

const studentCachePrefix = "students:"

// StudentConfig tunes enrollment validation.
type StudentConfig struct {
	MinAge   int
	CacheTTL time.Duration
}

type studentPage struct {
	Students []models.Student `json:"students"`
	Total    int              `json:"total"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
	cfg       StudentConfig
	today     func() time.Time
}

// NewStudentService constructs the student service. cache may be nil.
func NewStudentService(repo studentRepository, validate *validator.Validate, cache *CacheService, cfg StudentConfig, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = validation.DefaultMinAge
	}
	return &StudentService{repo: repo, validator: validate, cache: cache, logger: logger, cfg: cfg, today: time.Now}
}

// List returns students and pagination metadata. Pages are cached when a cache is
// configured.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, bool, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	filter.Page, filter.PageSize = page, size

	key := studentCachePrefix + "list:" + cacheKey(filter)
	var cached studentPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Students, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, true, nil
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	_ = s.cache.Set(ctx, key, studentPage{Students: students, Total: total}, s.cfg.CacheTTL)
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, false, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, studentLookupError(err)
	}
	return student, nil
}

// Create validates and registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
	}
	student := req.student()
	student.Timestamp = s.today().UTC()
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.invalidate(ctx)
	return student, nil
}

// Update rewrites the student stored under id. A changed student id must still be
// unique.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLookupError(err)
	}
	if req.StudentID != current.StudentID {
		exists, err := s.repo.ExistsByID(ctx, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
		}
	}
	student := req.student()
	student.Timestamp = current.Timestamp
	if err := s.repo.Update(ctx, current.StudentID, student); err != nil {
		return nil, studentLookupError(err)
	}
	s.invalidate(ctx)
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return studentLookupError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *StudentService) validate(req *StudentRequest) error {
	req.trim()
	var details []string
	if err := s.validator.Struct(req); err != nil {
		details = validation.Messages(err, studentLabels)
	}
	birth, errBirth := validation.ParseDate(req.DOB)
	enroll, errEnroll := validation.ParseDate(req.EnrollDate)
	if errBirth == nil && errEnroll == nil {
		details = append(details, validation.EnrollmentDates(birth, enroll, s.today(), s.cfg.MinAge)...)
	}
	if len(details) > 0 {
		return appErrors.Validation("invalid student", details)
	}
	return nil
}

func (s *StudentService) invalidate(ctx context.Context) {
	invalidateStudents(ctx, s.cache, s.logger)
}

// invalidateStudents drops cached student pages. A failure leaves stale pages until
// their TTL runs out, so it is logged rather than returned.
func invalidateStudents(ctx context.Context, cache *CacheService, logger *zap.Logger) {
	if err := cache.Invalidate(ctx, studentCachePrefix+"*"); err != nil {
		logger.Warn("student cache not invalidated", zap.String("pattern", studentCachePrefix+"*"), zap.Error(err))
	}
}

func (r StudentRequest) student() *models.Student {
	student := &models.Student{
		StudentID:  r.StudentID,
		Name:       r.Name,
		Course:     r.Course,
		DOB:        r.DOB,
		EnrollDate: r.EnrollDate,
		Address:    r.Address,
		Completed:  r.Completed,
	}
	student.Escape()
	return student
}

func cacheKey(f models.StudentFilter) string {
	return fmt.Sprintf("q=%s|c=%s|done=%s|p=%d|s=%d|sort=%s:%s",
		strings.ToLower(f.Search), strings.ToLower(f.Course), f.Completed, f.Page, f.PageSize, f.SortBy, f.SortOrder)
}

func studentLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student operation failed")
}
