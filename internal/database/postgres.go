package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/normalize"
	"go.uber.org/zap"
)

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to reach database: %v", err)
	}

	return dbpool, nil
}

// PostgresStore keeps dates in DATE/TIMESTAMP columns and converts the
// canonical record strings at the boundary.
type PostgresStore struct {
	dbpool *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{dbpool: pool, logger: logger}
}

func (m *PostgresStore) CreateTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS dispatch_data (
		id BIGSERIAL PRIMARY KEY,
		dedup_key VARCHAR(16) NOT NULL,
		file_type VARCHAR(20) NOT NULL,
		work_cell VARCHAR(255) NOT NULL,
		job_number VARCHAR(255) NOT NULL,
		part_number VARCHAR(255) NOT NULL,
		comments TEXT,
		job_qty DOUBLE PRECISION NOT NULL,
		bal_qty DOUBLE PRECISION NOT NULL,
		code VARCHAR(255) NOT NULL,
		prod_date DATE NOT NULL,
		est_compl_date DATE,
		and_on TEXT,
		m_pc DOUBLE PRECISION,
		prod_hr DOUBLE PRECISION,
		report_start_date DATE NOT NULL,
		report_end_date DATE NOT NULL,
		report_department VARCHAR(255) NOT NULL,
		report_creation_datetime TIMESTAMP NOT NULL,
		upload_date TIMESTAMP NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		processing_status VARCHAR(20) NOT NULL CHECK (processing_status IN ('success', 'error', 'duplicate', 'skipped'))
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_dispatch_data_dedup_key ON dispatch_data (dedup_key);
	CREATE INDEX IF NOT EXISTS idx_dispatch_data_prod_date ON dispatch_data (prod_date);
	CREATE INDEX IF NOT EXISTS idx_dispatch_data_file ON dispatch_data (file_name, file_type);
	`

	if _, err := m.dbpool.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating dispatch_data table: %v", err)
	}
	return nil
}

func (m *PostgresStore) Exists(ctx context.Context, key models.DuplicateKey) (bool, error) {
	var exists bool
	if err := m.dbpool.QueryRow(ctx, buildExistsQuery(dialectPostgres), key.Hash()).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking duplicate record: %w", err)
	}
	return exists, nil
}

func (m *PostgresStore) InsertIfAbsent(ctx context.Context, record *models.DispatchRecord) (bool, error) {
	prodDate, err := time.Parse(normalize.DateLayout, record.ProdDate)
	if err != nil {
		return false, fmt.Errorf("invalid prod_date %q: %w", record.ProdDate, err)
	}
	startDate, err := time.Parse(normalize.DateLayout, record.ReportStartDate)
	if err != nil {
		return false, fmt.Errorf("invalid report_start_date %q: %w", record.ReportStartDate, err)
	}
	endDate, err := time.Parse(normalize.DateLayout, record.ReportEndDate)
	if err != nil {
		return false, fmt.Errorf("invalid report_end_date %q: %w", record.ReportEndDate, err)
	}
	estComplDate, err := optionalTime(normalize.DateLayout, record.EstComplDate)
	if err != nil {
		return false, fmt.Errorf("invalid est_compl_date: %w", err)
	}
	creation, err := optionalTime(normalize.DatetimeLayout, record.ReportCreationDatetime)
	if err != nil {
		return false, fmt.Errorf("invalid report_creation_datetime: %w", err)
	}

	tag, err := m.dbpool.Exec(ctx, buildInsertQuery(dialectPostgres),
		record.DuplicateKey().Hash(),
		record.FileType,
		record.WorkCell,
		record.JobNumber,
		record.PartNumber,
		record.Comments,
		record.JobQty,
		record.BalQty,
		record.Code,
		prodDate,
		estComplDate,
		record.AndOn,
		record.MPc,
		record.ProdHr,
		startDate,
		endDate,
		record.ReportDepartment,
		creation,
		record.UploadDate,
		record.FileName,
		string(record.ProcessingStatus),
	)
	if err != nil {
		return false, fmt.Errorf("error inserting dispatch record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (m *PostgresStore) ListProcessedFiles(ctx context.Context, filter models.FileFilter) ([]models.FileProcessingSummary, error) {
	query, args := buildFilesQuery(dialectPostgres, filter)
	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying processed files: %w", err)
	}
	defer rows.Close()

	summaries := []models.FileProcessingSummary{}
	for rows.Next() {
		var (
			summary   models.FileProcessingSummary
			fileType  string
			startDate time.Time
			endDate   time.Time
		)
		if err := rows.Scan(
			&summary.FileName,
			&fileType,
			&summary.TotalRows,
			&summary.SuccessfulRows,
			&summary.DuplicateRows,
			&summary.ErrorRows,
			&summary.SkippedRows,
			&summary.UploadDate,
			&startDate,
			&endDate,
		); err != nil {
			return nil, fmt.Errorf("error scanning processed file: %w", err)
		}

		ft, err := models.FileTypeFromDB(fileType)
		if err != nil {
			m.logger.Warn("unknown stored file type", zap.String("file_type", fileType))
			ft = models.FileType(fileType)
		}
		summary.FileType = ft
		summary.ReportStartDate = startDate.Format(normalize.DateLayout)
		summary.ReportEndDate = endDate.Format(normalize.DateLayout)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed files: %w", err)
	}
	return summaries, nil
}

func (m *PostgresStore) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.StoredRecord, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	query, args := buildRecordsQuery(dialectPostgres, filter)
	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying records: %w", err)
	}
	defer rows.Close()

	records := []models.StoredRecord{}
	for rows.Next() {
		var (
			record       models.StoredRecord
			prodDate     time.Time
			startDate    time.Time
			endDate      time.Time
			estComplDate *time.Time
			creation     *time.Time
			status       string
		)
		if err := rows.Scan(
			&record.ID,
			&record.FileType,
			&record.WorkCell,
			&record.JobNumber,
			&record.PartNumber,
			&record.Comments,
			&record.JobQty,
			&record.BalQty,
			&record.Code,
			&prodDate,
			&estComplDate,
			&record.AndOn,
			&record.MPc,
			&record.ProdHr,
			&startDate,
			&endDate,
			&record.ReportDepartment,
			&creation,
			&record.UploadDate,
			&record.FileName,
			&status,
		); err != nil {
			return nil, fmt.Errorf("error scanning record: %w", err)
		}

		record.ProdDate = prodDate.Format(normalize.DateLayout)
		record.ReportStartDate = startDate.Format(normalize.DateLayout)
		record.ReportEndDate = endDate.Format(normalize.DateLayout)
		record.EstComplDate = formatOptional(normalize.DateLayout, estComplDate)
		record.ReportCreationDatetime = formatOptional(normalize.DatetimeLayout, creation)
		record.ProcessingStatus = models.ProcessingStatus(status)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func (m *PostgresStore) Close() error {
	m.dbpool.Close()
	return nil
}

func optionalTime(layout string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := time.Parse(layout, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptional(layout string, value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format(layout)
	return &formatted
}
