package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

var uploadedAt = time.Date(2024, 10, 3, 8, 0, 0, 0, time.Local)

func newRecord(fileType models.FileType, job string) *models.DispatchRecord {
	return &models.DispatchRecord{
		FileType:               fileType.DBValue(),
		WorkCell:               "WC-1",
		JobNumber:              job,
		PartNumber:             "P-1",
		JobQty:                 ptr(10.0),
		BalQty:                 ptr(2.0),
		Code:                   "A",
		ProdDate:               "2024-09-30",
		ReportStartDate:        "2024-09-27",
		ReportEndDate:          "2024-10-02",
		ReportDepartment:       "Final Assembly",
		ReportCreationDatetime: ptr("2024-09-27 15:59:22"),
		UploadDate:             uploadedAt,
		FileName:               string(fileType) + ".csv",
		ProcessingStatus:       models.StatusSuccess,
	}
}

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "production_data.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func TestSQLiteCreateTablesIsIdempotent(t *testing.T) {
	store := setupSQLite(t)
	assert.NoError(t, store.CreateTables(context.Background()))
}

func TestSQLiteInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)
	record := newRecord(models.FileTypeAssy, "J-1")

	exists, err := store.Exists(ctx, record.DuplicateKey())
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := store.InsertIfAbsent(ctx, record)
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err = store.Exists(ctx, record.DuplicateKey())
	require.NoError(t, err)
	assert.True(t, exists)

	// same production fact from a later upload of another file
	again := newRecord(models.FileTypeAssy, "J-1")
	again.FileName = "Assy resend.csv"
	again.UploadDate = uploadedAt.Add(time.Hour)
	inserted, err = store.InsertIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	records, err := store.ListRecords(ctx, models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteAbsentFieldsAreDistinctFromEmpty(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)

	withoutAndOn := newRecord(models.FileTypeAssy, "J-1")
	withEmptyAndOn := newRecord(models.FileTypeAssy, "J-1")
	withEmptyAndOn.AndOn = ptr("")

	inserted, err := store.InsertIfAbsent(ctx, withoutAndOn)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertIfAbsent(ctx, withEmptyAndOn)
	require.NoError(t, err)
	assert.True(t, inserted)

	// rows with absent optional fields are still detected as duplicates
	exists, err := store.Exists(ctx, newRecord(models.FileTypeAssy, "J-1").DuplicateKey())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteListRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)

	record := newRecord(models.FileTypeLP, "J-7")
	record.Comments = ptr("rush order")
	record.MPc = ptr(1.5)
	_, err := store.InsertIfAbsent(ctx, record)
	require.NoError(t, err)

	records, err := store.ListRecords(ctx, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.NotZero(t, got.ID)
	assert.Equal(t, "LP", got.FileType)
	assert.Equal(t, "rush order", *got.Comments)
	assert.Equal(t, 10.0, *got.JobQty)
	assert.Equal(t, 1.5, *got.MPc)
	assert.Nil(t, got.ProdHr)
	assert.Nil(t, got.EstComplDate)
	assert.Nil(t, got.AndOn)
	assert.Equal(t, "2024-09-30", got.ProdDate)
	assert.Equal(t, "2024-09-27 15:59:22", *got.ReportCreationDatetime)
	assert.True(t, uploadedAt.Equal(got.UploadDate))
	assert.Equal(t, models.StatusSuccess, got.ProcessingStatus)
}

func TestSQLiteListRecordsFilters(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)

	sewDC := newRecord(models.FileTypeSewDC, "J-1")
	sewDC.ProdDate = "2024-10-01"
	sewFB := newRecord(models.FileTypeSewFB, "J-2")
	sewFB.ProdDate = "2024-10-02"
	assy := newRecord(models.FileTypeAssy, "J-3")
	assy.WorkCell = "WC-9"
	for _, r := range []*models.DispatchRecord{sewDC, sewFB, assy} {
		_, err := store.InsertIfAbsent(ctx, r)
		require.NoError(t, err)
	}

	dc := models.FileTypeSewDC
	records, err := store.ListRecords(ctx, models.RecordFilter{FileType: &dc})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DC-Sew", records[0].FileType)

	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	records, err = store.ListRecords(ctx, models.RecordFilter{StartDate: &start})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-10-02", records[0].ProdDate, "newest production date first")

	records, err = store.ListRecords(ctx, models.RecordFilter{WorkCell: "WC-9"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "J-3", records[0].JobNumber)

	records, err = store.ListRecords(ctx, models.RecordFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-10-01", records[0].ProdDate)

	_, err = store.ListRecords(ctx, models.RecordFilter{Limit: 1001})
	assert.Error(t, err)
}

func TestSQLiteListProcessedFiles(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)

	first := newRecord(models.FileTypeSewDC, "J-1")
	second := newRecord(models.FileTypeSewDC, "J-2")
	second.ReportEndDate = "2024-10-05"
	other := newRecord(models.FileTypeFabcut, "J-3")
	other.UploadDate = uploadedAt.AddDate(0, 0, 1)
	for _, r := range []*models.DispatchRecord{first, second, other} {
		_, err := store.InsertIfAbsent(ctx, r)
		require.NoError(t, err)
	}

	files, err := store.ListProcessedFiles(ctx, models.FileFilter{})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "Fabcut.csv", files[0].FileName, "latest upload first")
	assert.Equal(t, models.FileTypeSewDC, files[1].FileType)
	assert.Equal(t, 2, files[1].TotalRows)
	assert.Equal(t, 2, files[1].SuccessfulRows)
	assert.Equal(t, 0, files[1].ErrorRows)
	assert.Equal(t, "2024-09-27", files[1].ReportStartDate)
	assert.Equal(t, "2024-10-05", files[1].ReportEndDate)
	assert.True(t, uploadedAt.Equal(files[1].UploadDate))

	day := time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC)
	files, err = store.ListProcessedFiles(ctx, models.FileFilter{StartDate: &day, EndDate: &day})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "SEW-DC.csv", files[0].FileName)

	fabcut := models.FileTypeFabcut
	files, err = store.ListProcessedFiles(ctx, models.FileFilter{FileType: &fabcut})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *SQLiteStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, NewSQLiteStoreFromDB(db, zap.NewNop())
}

func TestSQLiteInsertIfAbsentConflictReportsNotInserted(t *testing.T) {
	mock, store := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO dispatch_data .* ON CONFLICT \(dedup_key\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.InsertIfAbsent(context.Background(), newRecord(models.FileTypeAssy, "J-1"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreErrors(t *testing.T) {
	mock, store := setupMockStore(t)
	record := newRecord(models.FileTypeAssy, "J-1")
	dbErr := errors.New("database is locked")

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(record.DuplicateKey().Hash()).
		WillReturnError(dbErr)
	_, err := store.Exists(context.Background(), record.DuplicateKey())
	assert.ErrorIs(t, err, dbErr)

	mock.ExpectExec(`INSERT INTO dispatch_data`).WillReturnError(dbErr)
	_, err = store.InsertIfAbsent(context.Background(), record)
	assert.ErrorIs(t, err, dbErr)

	mock.ExpectQuery(`SELECT\s+file_name`).WillReturnError(dbErr)
	_, err = store.ListProcessedFiles(context.Background(), models.FileFilter{})
	assert.ErrorIs(t, err, dbErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}
