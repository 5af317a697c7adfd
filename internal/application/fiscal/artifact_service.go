package fiscal

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/shared"
	"go.uber.org/zap"
)

// Bundle is a downloadable archive of one document's files
type Bundle struct {
	FileName string
	Data     []byte
}

// ArtifactService reads stored fiscal files back for download
type ArtifactService struct {
	store  fiscal.ArtifactStore
	logger *zap.Logger
	now    func() time.Time
}

// NewArtifactService creates a new ArtifactService
func NewArtifactService(store fiscal.ArtifactStore, logger *zap.Logger) *ArtifactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactService{store: store, logger: logger, now: time.Now}
}

// Bundle zips NFe_<n>.xml and DANFE_<n>.pdf. Both files must exist;
// a missing one yields fiscal.ErrArtifactNotFound.
func (s *ArtifactService) Bundle(ctx context.Context, documentNumber string) (*Bundle, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if documentNumber == "" || strings.ContainsAny(documentNumber, `/\`) {
		return nil, fmt.Errorf("%w: invalid document number", shared.ErrInvalidInput)
	}

	names := []string{fiscal.XMLFileName(documentNumber), fiscal.DocumentFileName(documentNumber)}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		data, err := s.store.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	s.logger.Debug("Fiscal bundle built", zap.String("document_number", documentNumber), zap.Int("bytes", buf.Len()))
	return &Bundle{
		FileName: fmt.Sprintf("NFe_%s.zip", documentNumber),
		Data:     buf.Bytes(),
	}, nil
}
