package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/models"
	"github.com/noah-isme/taskroster/pkg/bridge"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/record"
)

// ReconcileResult is a reconciliation report plus the input rows that were dropped.
type ReconcileResult struct {
	bridge.Report
	Dropped []bridge.RowError `json:"dropped"`
}

// ValidationResult summarises an uploaded file without touching stored data.
type ValidationResult struct {
	record.Summary
	Consistency []record.ConsistencyIssue `json:"consistency"`
	Dropped     []bridge.RowError         `json:"dropped"`
}

// ImportResult lists what an import changed.
type ImportResult struct {
	Updated []string          `json:"updated"`
	Added   []string          `json:"added"`
	Dropped []bridge.RowError `json:"dropped"`
}

// BridgeService moves student records in and out of delimited text.
type BridgeService struct {
	repo    studentRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	minAge  int
	now     func() time.Time
}

// NewBridgeService constructs a BridgeService.
func NewBridgeService(repo studentRepository, cache *CacheService, metrics *MetricsService, minAge int, logger *zap.Logger) *BridgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeService{repo: repo, cache: cache, metrics: metrics, logger: logger, minAge: minAge, now: time.Now}
}

func (s *BridgeService) schema() record.Schema {
	return models.StudentSchema(s.minAge, s.now)
}

// Export serializes every stored student.
func (s *BridgeService) Export(ctx context.Context) ([]byte, string, error) {
	local, err := s.local(ctx)
	if err != nil {
		return nil, "", err
	}
	schema := s.schema()
	payload, err := bridge.Serialize(schema, local)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export students")
	}
	return payload, bridge.Filename(schema), nil
}

// Reconcile compares uploaded rows against the stored students, with the uploaded
// free text escaped as it would be on import. Nothing is written.
func (s *BridgeService) Reconcile(ctx context.Context, data []byte) (*ReconcileResult, error) {
	local, err := s.local(ctx)
	if err != nil {
		return nil, err
	}
	parsed := s.parse(data)
	report := bridge.Reconcile(s.schema(), local, models.EscapeStudentRecords(parsed.Records))
	s.logger.Debug("students reconciled",
		zap.Int("common", len(report.CommonIDs)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("dropped", len(parsed.Dropped)))
	return &ReconcileResult{Report: report, Dropped: parsed.Dropped}, nil
}

// ReconcilePDF renders the reconciliation report as a PDF document.
func (s *BridgeService) ReconcilePDF(ctx context.Context, data []byte) ([]byte, error) {
	result, err := s.Reconcile(ctx, data)
	if err != nil {
		return nil, err
	}
	out, err := bridge.RenderReport(result.Report, "Student reconciliation")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return out, nil
}

// Validate checks every uploaded row and flags duplicate ids and rows whose name
// equals their course.
func (s *BridgeService) Validate(_ context.Context, data []byte) *ValidationResult {
	parsed := s.parse(data)
	schema := s.schema()
	return &ValidationResult{
		Summary:     schema.Summarize(parsed.Records),
		Consistency: schema.Consistency(parsed.Records, models.StudentFieldName, models.StudentFieldCourse),
		Dropped:     parsed.Dropped,
	}
}

// Import applies the merge policy to the stored students: conflicting ids are
// overwritten by the uploaded row and unknown ids are added. confirm must be true and
// every uploaded row must be valid, otherwise nothing is written.
func (s *BridgeService) Import(ctx context.Context, data []byte, confirm bool) (*ImportResult, error) {
	if !confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "import overwrites conflicting students; repeat with confirm=true")
	}
	parsed := s.parse(data)
	schema := s.schema()
	if summary := schema.Summarize(parsed.Records); summary.Invalid > 0 {
		details := make([]string, 0, summary.Invalid)
		for _, issue := range summary.Issues {
			for _, msg := range issue.Errors {
				details = append(details, fmt.Sprintf("row %d (%s): %s", issue.Index+1, issue.ID, msg))
			}
		}
		s.metrics.RecordBridgeRows("rejected", summary.Invalid)
		return nil, appErrors.Validation("import contains invalid rows", details)
	}

	local, err := s.local(ctx)
	if err != nil {
		return nil, err
	}
	merged := bridge.Merge(schema, local, models.EscapeStudentRecords(parsed.Records))

	byID := make(map[string]record.Record, len(merged.Records))
	for _, r := range merged.Records {
		byID[schema.KeyOf(r)] = r
	}
	updates, err := toStudents(byID, merged.Updated)
	if err != nil {
		return nil, err
	}
	inserts, err := toStudents(byID, merged.Added)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Import(ctx, updates, inserts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import students")
	}
	invalidateStudents(ctx, s.cache, s.logger)
	s.metrics.RecordBridgeRows("imported", len(updates)+len(inserts))
	s.metrics.RecordBridgeRows("dropped", len(parsed.Dropped))
	s.logger.Info("students imported", zap.Int("updated", len(updates)), zap.Int("added", len(inserts)))
	return &ImportResult{Updated: merged.Updated, Added: merged.Added, Dropped: parsed.Dropped}, nil
}

func (s *BridgeService) local(ctx context.Context) ([]record.Record, error) {
	students, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	return models.StudentRecords(students), nil
}

func (s *BridgeService) parse(data []byte) *bridge.ParseResult {
	parsed := bridge.Parse(s.schema(), data, bridge.WithDefault(models.StudentFieldTimestamp, func() string {
		return s.now().UTC().Format(time.RFC3339)
	}))
	s.metrics.RecordBridgeRows("parsed", len(parsed.Records))
	return parsed
}

func toStudents(byID map[string]record.Record, ids []string) ([]models.Student, error) {
	out := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		student, err := models.StudentFromRecord(byID[id])
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("invalid timestamp for student %s", id))
		}
		out = append(out, student)
	}
	return out, nil
}
