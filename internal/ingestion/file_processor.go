package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/parser"
	"github.com/prodreports/dispatch-ingestion/pkg/checksum"
	"go.uber.org/zap"
)

// timeNow is a package-level variable to allow mocking in tests.
var timeNow = time.Now

// RecordSink is the part of the record store the pipeline writes through.
type RecordSink interface {
	Exists(ctx context.Context, key models.DuplicateKey) (bool, error)
	InsertIfAbsent(ctx context.Context, record *models.DispatchRecord) (bool, error)
}

// Config holds the pipeline options. MaxRows caps the data rows read in the
// second pass; zero reads every row.
type Config struct {
	MaxRows int
}

// FileProcessor ingests one report file at a time.
type FileProcessor struct {
	sink   RecordSink
	config Config
	logger *zap.Logger
}

func NewFileProcessor(sink RecordSink, cfg Config, logger *zap.Logger) *FileProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileProcessor{
		sink:   sink,
		config: cfg,
		logger: logger,
	}
}

// ProcessFile ingests filePath and names the records after its base name.
func (fp *FileProcessor) ProcessFile(ctx context.Context, filePath string, fileType models.FileType) (*models.FileProcessingSummary, error) {
	return fp.ProcessFileAs(ctx, filePath, filepath.Base(filePath), fileType)
}

// ProcessFileAs ingests filePath, stamping fileName on the summary and on
// every stored record. Errors returned are file-level: no summary exists.
//
// The file is read twice. The first pass extracts the header metadata and
// the latest production date, which becomes report_end_date. The second
// pass maps, classifies and stores each data row.
func (fp *FileProcessor) ProcessFileAs(ctx context.Context, filePath, fileName string, fileType models.FileType) (*models.FileProcessingSummary, error) {
	adapter, err := parser.ForFileType(fileType)
	if err != nil {
		return nil, err
	}

	summary := models.NewFileProcessingSummary(fileName, fileType, timeNow())
	log := fp.logger.With(zap.String("file", fileName), zap.String("file_type", string(fileType)))

	metadata, endDate, fileChecksum, err := fp.scanReportWindow(filePath, adapter)
	if err != nil {
		log.Error("failed to read report header", zap.Error(err))
		return nil, err
	}
	summary.Checksum = fileChecksum
	summary.ReportStartDate = metadata.ReportStartDate
	summary.ReportEndDate = endDate

	fc := parser.FileContext{
		Metadata:      metadata,
		ReportEndDate: endDate,
		FileName:      fileName,
		UploadDate:    summary.UploadDate,
	}
	if err := fp.processRows(ctx, filePath, adapter, fc, summary, log); err != nil {
		log.Error("failed to process rows", zap.Error(err))
		return nil, err
	}

	log.Info("file processed",
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("successful_rows", summary.SuccessfulRows),
		zap.Int("duplicate_rows", summary.DuplicateRows),
		zap.Int("error_rows", summary.ErrorRows),
		zap.Int("skipped_rows", summary.SkippedRows),
	)
	return summary, nil
}

// scanReportWindow is the first pass. Rows without a parseable production
// date are ignored here; when none has one the window ends on its start date.
func (fp *FileProcessor) scanReportWindow(filePath string, adapter parser.Adapter) (parser.Metadata, string, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return parser.Metadata{}, "", "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	content, sum := checksum.TeeReader(file)
	reader := parser.NewReader(content)

	metadata, err := adapter.ExtractMetadata(reader)
	if err != nil {
		return parser.Metadata{}, "", "", fmt.Errorf("file %s: %w", filePath, err)
	}

	maxProdDate := ""
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isParseError(err) {
				continue
			}
			return parser.Metadata{}, "", "", fmt.Errorf("error reading file %s: %w", filePath, err)
		}

		// canonical dates compare chronologically as text
		if prodDate, ok := adapter.ProdDate(row); ok && prodDate > maxProdDate {
			maxProdDate = prodDate
		}
	}

	endDate := maxProdDate
	if endDate == "" {
		endDate = metadata.ReportStartDate
	}
	return metadata, endDate, sum(), nil
}

// processRows is the second pass. Empty lines, which encoding/csv drops,
// still count as skipped rows and against MaxRows.
func (fp *FileProcessor) processRows(
	ctx context.Context,
	filePath string,
	adapter parser.Adapter,
	fc parser.FileContext,
	summary *models.FileProcessingSummary,
	log *zap.Logger,
) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to reopen file %s: %w", filePath, err)
	}
	defer file.Close()

	counter := parser.NewLineCounter(file)
	reader := parser.NewReader(counter)
	lastLine, err := parser.SkipMetadata(reader)
	if err != nil {
		return fmt.Errorf("file %s: %w", filePath, err)
	}

	rowNum := 0
	nextRow := func() bool {
		if fp.config.MaxRows > 0 && rowNum >= fp.config.MaxRows {
			log.Info("row limit reached", zap.Int("max_rows", fp.config.MaxRows))
			return false
		}
		rowNum++
		summary.TotalRows++
		return true
	}
	skipBlankLines := func(n int) bool {
		for ; n > 0; n-- {
			if !nextRow() {
				return false
			}
			summary.SkippedRows++
		}
		return true
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Read()
		if err == io.EOF {
			skipBlankLines(counter.Lines() - lastLine)
			return nil
		}

		var (
			startLine, endLine int
			parseErr           *csv.ParseError
		)
		switch {
		case errors.As(err, &parseErr):
			startLine, endLine = parseErr.StartLine, parseErr.Line
		case err != nil:
			return fmt.Errorf("error reading file %s: %w", filePath, err)
		default:
			startLine, endLine = parser.RecordLines(reader, row)
		}

		if !skipBlankLines(startLine - lastLine - 1) {
			return nil
		}
		if endLine > lastLine {
			lastLine = endLine
		}
		if !nextRow() {
			return nil
		}

		if err != nil {
			fp.countError(summary, log, &models.AppError{
				FileName: fc.FileName,
				Row:      rowNum,
				Message:  "malformed CSV line",
				Err:      err,
			})
			continue
		}

		fp.processRow(ctx, row, rowNum, adapter, fc, summary, log)
	}
}

func (fp *FileProcessor) processRow(
	ctx context.Context,
	row []string,
	rowNum int,
	adapter parser.Adapter,
	fc parser.FileContext,
	summary *models.FileProcessingSummary,
	log *zap.Logger,
) {
	record, err := adapter.MapRow(row, fc)
	if err != nil {
		fp.countError(summary, log, &models.AppError{FileName: fc.FileName, Row: rowNum, Message: "invalid row", Err: err})
		return
	}
	if record == nil {
		summary.SkippedRows++
		return
	}

	exists, err := fp.sink.Exists(ctx, record.DuplicateKey())
	if err != nil {
		fp.countError(summary, log, &models.AppError{FileName: fc.FileName, Row: rowNum, Message: "duplicate check failed", Err: err, Record: record})
		return
	}
	if exists {
		summary.DuplicateRows++
		return
	}

	inserted, err := fp.sink.InsertIfAbsent(ctx, record)
	if err != nil {
		fp.countError(summary, log, &models.AppError{FileName: fc.FileName, Row: rowNum, Message: "failed to store record", Err: err, Record: record})
		return
	}
	if !inserted {
		// stored by someone else between the check and the insert
		log.Debug("duplicate detected on insert", zap.Int("row", rowNum))
		summary.DuplicateRows++
		return
	}
	summary.SuccessfulRows++
}

func (fp *FileProcessor) countError(summary *models.FileProcessingSummary, log *zap.Logger, appErr *models.AppError) {
	summary.ErrorRows++
	log.Warn("row error", zap.Int("row", appErr.Row), zap.Error(appErr))
}

func isParseError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr)
}
