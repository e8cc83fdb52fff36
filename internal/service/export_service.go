package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/taskroster/pkg/errors"
	"github.com/noah-isme/taskroster/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportSource produces a serialized collection and its download name.
type ExportSource interface {
	Export(ctx context.Context) ([]byte, string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ID           string    `json:"id"`
	RelativePath string    `json:"-"`
	Filename     string    `json:"filename"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExportService stores rendered exports and hands out signed download links.
type ExportService struct {
	sources map[string]ExportSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. sources maps a collection name such
// as "students" to what serializes it.
func NewExportService(sources map[string]ExportSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{sources: sources, storage: store, signer: signer, logger: logger, cfg: cfg}
}

// Generate serializes the named collection, stores it and signs a download link.
func (s *ExportService) Generate(ctx context.Context, collection string) (*ExportResult, error) {
	source, ok := s.sources[collection]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown export %q", collection))
	}
	payload, filename, err := source.Export(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(path.Join(collection, id+"_"+filename), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored", zap.String("id", id), zap.String("path", relPath))
	return &ExportResult{
		ID:           id,
		RelativePath: relPath,
		Filename:     filename,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// Resolve validates a download token and returns the stored path with the name the
// file should be downloaded as.
func (s *ExportService) Resolve(token string) (relPath, filename string, err error) {
	id, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "download link invalid or expired")
	}
	return relPath, strings.TrimPrefix(path.Base(relPath), id+"_"), nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return f, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
