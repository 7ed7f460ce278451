package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/pkg/checksum"
	"go.uber.org/zap"
)

// Processor ingests a single file.
type Processor interface {
	ProcessFile(ctx context.Context, filePath string, fileType models.FileType) (*models.FileProcessingSummary, error)
}

// FileInfo is a file found by ScanForFiles. FileType is empty when it could
// not be resolved.
type FileInfo struct {
	Path     string
	FileType models.FileType
}

// IngestionService runs a batch of report files through a Processor, one file
// after the other.
type IngestionService struct {
	processor    Processor
	allowedTypes []models.FileType
	logger       *zap.Logger
}

func NewIngestionService(processor Processor, allowedTypes []models.FileType, logger *zap.Logger) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(allowedTypes) == 0 {
		allowedTypes = models.AllFileTypes
	}
	return &IngestionService{
		processor:    processor,
		allowedTypes: allowedTypes,
		logger:       logger,
	}
}

// ScanForFiles resolves rootPath into the list of files to ingest. A
// directory is walked for .csv files in lexical order; a file is taken as is.
// fileType, when set, overrides detection from the file name.
func (s *IngestionService) ScanForFiles(rootPath string, fileType *models.FileType) ([]FileInfo, error) {
	s.logger.Info("scanning for files", zap.String("path", rootPath))

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("error reading path %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		return []FileInfo{s.resolve(rootPath, fileType)}, nil
	}

	var files []FileInfo
	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		files = append(files, s.resolve(path, fileType))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	s.logger.Info("files found", zap.Int("count", len(files)))
	return files, nil
}

func (s *IngestionService) resolve(path string, fileType *models.FileType) FileInfo {
	if fileType != nil {
		return FileInfo{Path: path, FileType: *fileType}
	}
	detected, ok := models.DetectFileType(filepath.Base(path), s.allowedTypes)
	if !ok {
		return FileInfo{Path: path}
	}
	return FileInfo{Path: path, FileType: detected}
}

// Execute ingests every file under path and reports one response per file.
// A failing file does not stop the batch; only scan failures and context
// cancellation are returned as errors.
func (s *IngestionService) Execute(ctx context.Context, path string, fileType *models.FileType) ([]models.ProcessingResponse, error) {
	if fileType != nil && !fileType.IsValid() {
		return nil, fmt.Errorf("unknown file type %q", *fileType)
	}

	files, err := s.ScanForFiles(path, fileType)
	if err != nil {
		return nil, err
	}

	processed := make(map[string]string)
	responses := make([]models.ProcessingResponse, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return responses, err
		}
		responses = append(responses, s.processOne(ctx, file, processed))
	}
	return responses, nil
}

func (s *IngestionService) processOne(ctx context.Context, file FileInfo, processed map[string]string) models.ProcessingResponse {
	fileName := filepath.Base(file.Path)
	log := s.logger.With(zap.String("file", fileName))

	if file.FileType == "" {
		log.Warn("could not determine file type, skipping")
		return models.ProcessingResponse{
			FileName: fileName,
			Status:   models.StatusSkipped,
			Message:  "Could not determine file type from file name",
		}
	}

	sum, err := checksum.GetFileChecksum(file.Path)
	if err != nil {
		log.Error("failed to calculate checksum", zap.Error(err))
		return models.ProcessingResponse{
			FileName: fileName,
			Status:   models.StatusError,
			Message:  fmt.Sprintf("Error processing file: %v", err),
		}
	}
	if first, ok := processed[sum]; ok {
		log.Info("identical content already processed in this batch", zap.String("first", first), zap.String("checksum", sum))
		return models.ProcessingResponse{
			FileName: fileName,
			Status:   models.StatusSkipped,
			Message:  fmt.Sprintf("Identical content to %s", first),
		}
	}
	processed[sum] = fileName

	summary, err := s.processor.ProcessFile(ctx, file.Path, file.FileType)
	if err != nil {
		return models.ProcessingResponse{
			FileName: fileName,
			Status:   models.StatusError,
			Message:  fmt.Sprintf("Error processing file: %v", err),
		}
	}
	return models.ProcessingResponse{
		FileName: fileName,
		Status:   models.StatusSuccess,
		Message:  "File processed successfully",
		Summary:  summary,
	}
}
