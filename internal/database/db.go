package database

import (
	"context"
	"strings"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"go.uber.org/zap"
)

// RecordStore persists dispatch records and answers the listing queries.
type RecordStore interface {
	CreateTables(ctx context.Context) error
	Exists(ctx context.Context, key models.DuplicateKey) (bool, error)
	// InsertIfAbsent writes the record unless a record with the same duplicate
	// key is already stored. It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, record *models.DispatchRecord) (bool, error)
	ListProcessedFiles(ctx context.Context, filter models.FileFilter) ([]models.FileProcessingSummary, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.StoredRecord, error)
	Close() error
}

const sqliteURLPrefix = "sqlite:///"

// Open picks the engine from the URL: postgres:// and postgresql:// use the
// pgx pool, anything else is a SQLite path (optionally prefixed sqlite:///).
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (RecordStore, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		pool, err := ConnectDB(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool, logger), nil
	}
	return NewSQLiteStore(SQLitePath(databaseURL), logger)
}

// SQLitePath strips the sqlite:/// scheme from a database URL.
func SQLitePath(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, sqliteURLPrefix)
}

// insertColumns is the column order used by both engines' INSERT statements.
var insertColumns = []string{
	"dedup_key", "file_type", "work_cell", "job_number", "part_number", "comments",
	"job_qty", "bal_qty", "code", "prod_date", "est_compl_date", "and_on",
	"m_pc", "prod_hr", "report_start_date", "report_end_date", "report_department",
	"report_creation_datetime", "upload_date", "file_name", "processing_status",
}

var selectColumns = append([]string{"id"}, insertColumns[1:]...)
