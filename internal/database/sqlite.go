package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/normalize"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore is the default RecordStore. Date columns are TEXT holding the
// canonical forms so that lexical order is chronological order.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return NewSQLiteStoreFromDB(db, logger), nil
}

// NewSQLiteStoreFromDB wraps an already opened handle.
func NewSQLiteStoreFromDB(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) CreateTables(ctx context.Context) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key models.DuplicateKey) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, buildExistsQuery(dialectSQLite), key.Hash()).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking duplicate record: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, record *models.DispatchRecord) (bool, error) {
	result, err := s.db.ExecContext(ctx, buildInsertQuery(dialectSQLite),
		record.DuplicateKey().Hash(),
		record.FileType,
		record.WorkCell,
		record.JobNumber,
		record.PartNumber,
		record.Comments,
		record.JobQty,
		record.BalQty,
		record.Code,
		record.ProdDate,
		record.EstComplDate,
		record.AndOn,
		record.MPc,
		record.ProdHr,
		record.ReportStartDate,
		record.ReportEndDate,
		record.ReportDepartment,
		record.ReportCreationDatetime,
		record.UploadDate.Format(normalize.DatetimeLayout),
		record.FileName,
		string(record.ProcessingStatus),
	)
	if err != nil {
		return false, fmt.Errorf("error inserting dispatch record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLiteStore) ListProcessedFiles(ctx context.Context, filter models.FileFilter) ([]models.FileProcessingSummary, error) {
	query, args := buildFilesQuery(dialectSQLite, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying processed files: %w", err)
	}
	defer rows.Close()

	summaries := []models.FileProcessingSummary{}
	for rows.Next() {
		var (
			summary    models.FileProcessingSummary
			fileType   string
			uploadDate string
		)
		if err := rows.Scan(
			&summary.FileName,
			&fileType,
			&summary.TotalRows,
			&summary.SuccessfulRows,
			&summary.DuplicateRows,
			&summary.ErrorRows,
			&summary.SkippedRows,
			&uploadDate,
			&summary.ReportStartDate,
			&summary.ReportEndDate,
		); err != nil {
			return nil, fmt.Errorf("error scanning processed file: %w", err)
		}

		summary.FileType = s.displayFileType(fileType)
		summary.UploadDate = s.parseUploadDate(uploadDate)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed files: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.StoredRecord, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	query, args := buildRecordsQuery(dialectSQLite, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying records: %w", err)
	}
	defer rows.Close()

	records := []models.StoredRecord{}
	for rows.Next() {
		var (
			record       models.StoredRecord
			comments     sql.NullString
			estComplDate sql.NullString
			andOn        sql.NullString
			creation     sql.NullString
			jobQty       sql.NullFloat64
			balQty       sql.NullFloat64
			mPc          sql.NullFloat64
			prodHr       sql.NullFloat64
			uploadDate   string
			status       string
		)
		if err := rows.Scan(
			&record.ID,
			&record.FileType,
			&record.WorkCell,
			&record.JobNumber,
			&record.PartNumber,
			&comments,
			&jobQty,
			&balQty,
			&record.Code,
			&record.ProdDate,
			&estComplDate,
			&andOn,
			&mPc,
			&prodHr,
			&record.ReportStartDate,
			&record.ReportEndDate,
			&record.ReportDepartment,
			&creation,
			&uploadDate,
			&record.FileName,
			&status,
		); err != nil {
			return nil, fmt.Errorf("error scanning record: %w", err)
		}

		record.Comments = nullString(comments)
		record.EstComplDate = nullString(estComplDate)
		record.AndOn = nullString(andOn)
		record.ReportCreationDatetime = nullString(creation)
		record.JobQty = nullFloat(jobQty)
		record.BalQty = nullFloat(balQty)
		record.MPc = nullFloat(mPc)
		record.ProdHr = nullFloat(prodHr)
		record.UploadDate = s.parseUploadDate(uploadDate)
		record.ProcessingStatus = models.ProcessingStatus(status)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) displayFileType(stored string) models.FileType {
	ft, err := models.FileTypeFromDB(stored)
	if err != nil {
		s.logger.Warn("unknown stored file type", zap.String("file_type", stored))
		return models.FileType(stored)
	}
	return ft
}

func (s *SQLiteStore) parseUploadDate(value string) time.Time {
	t, err := time.ParseInLocation(normalize.DatetimeLayout, value, time.Local)
	if err != nil {
		s.logger.Warn("unparseable upload date", zap.String("upload_date", value), zap.Error(err))
	}
	return t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
