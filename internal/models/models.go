package models

import (
	"fmt"
	"strings"
	"time"
)

type FileType string

const (
	FileTypeAssy   FileType = "Assy"
	FileTypeFabcut FileType = "Fabcut"
	FileTypeLP     FileType = "LP"
	FileTypeSewDC  FileType = "SEW-DC"
	FileTypeSewFB  FileType = "SEW-FB"
)

// sewDCStorageValue is how SEW-DC rows are written to and filtered in the store.
const sewDCStorageValue = "DC-Sew"

// AllFileTypes lists the supported layouts in detection order.
var AllFileTypes = []FileType{FileTypeAssy, FileTypeFabcut, FileTypeLP, FileTypeSewDC, FileTypeSewFB}

// DBValue returns the value persisted in the file_type column.
func (ft FileType) DBValue() string {
	if ft == FileTypeSewDC {
		return sewDCStorageValue
	}
	return string(ft)
}

func (ft FileType) IsValid() bool {
	for _, known := range AllFileTypes {
		if ft == known {
			return true
		}
	}
	return false
}

// ParseFileType accepts a display value such as "SEW-DC".
func ParseFileType(value string) (FileType, error) {
	ft := FileType(value)
	if !ft.IsValid() {
		return "", fmt.Errorf("unknown file type %q", value)
	}
	return ft, nil
}

// FileTypeFromDB maps a stored file_type column back to its display value.
func FileTypeFromDB(value string) (FileType, error) {
	if value == sewDCStorageValue {
		return FileTypeSewDC, nil
	}
	return ParseFileType(value)
}

// DetectFileType returns the first allowed type whose display value is
// contained in the file name.
func DetectFileType(fileName string, allowed []FileType) (FileType, bool) {
	for _, ft := range allowed {
		if strings.Contains(fileName, string(ft)) {
			return ft, true
		}
	}
	return "", false
}

type ProcessingStatus string

const (
	StatusSuccess   ProcessingStatus = "success"
	StatusError     ProcessingStatus = "error"
	StatusDuplicate ProcessingStatus = "duplicate"
	StatusSkipped   ProcessingStatus = "skipped"
)

// DispatchRecord is the canonical row shared by all five layouts. Dates are
// kept in their canonical text forms (YYYY-MM-DD, YYYY-MM-DD HH:MM:SS).
// Nil pointers mark fields that are absent for the layout or undetermined.
type DispatchRecord struct {
	FileType               string           `json:"file_type"`
	WorkCell               string           `json:"work_cell"`
	JobNumber              string           `json:"job_number"`
	PartNumber             string           `json:"part_number"`
	Comments               *string          `json:"comments"`
	JobQty                 *float64         `json:"job_qty"`
	BalQty                 *float64         `json:"bal_qty"`
	Code                   string           `json:"code"`
	ProdDate               string           `json:"prod_date"`
	EstComplDate           *string          `json:"est_compl_date"`
	AndOn                  *string          `json:"and_on"`
	MPc                    *float64         `json:"m_pc"`
	ProdHr                 *float64         `json:"prod_hr"`
	ReportStartDate        string           `json:"report_start_date"`
	ReportEndDate          string           `json:"report_end_date"`
	ReportDepartment       string           `json:"report_department"`
	ReportCreationDatetime *string          `json:"report_creation_datetime"`
	UploadDate             time.Time        `json:"upload_date"`
	FileName               string           `json:"file_name"`
	ProcessingStatus       ProcessingStatus `json:"processing_status"`
}

// StoredRecord is a DispatchRecord read back from the store.
type StoredRecord struct {
	ID int64 `json:"id"`
	DispatchRecord
}

// FileProcessingSummary is the per-file outcome of one ingestion run.
type FileProcessingSummary struct {
	FileName        string    `json:"file_name"`
	FileType        FileType  `json:"file_type"`
	TotalRows       int       `json:"total_rows"`
	SuccessfulRows  int       `json:"successful_rows"`
	DuplicateRows   int       `json:"duplicate_rows"`
	ErrorRows       int       `json:"error_rows"`
	SkippedRows     int       `json:"skipped_rows"`
	UploadDate      time.Time `json:"upload_date"`
	Checksum        string    `json:"checksum,omitempty"`
	ReportStartDate string    `json:"report_start_date,omitempty"`
	ReportEndDate   string    `json:"report_end_date,omitempty"`
}

func NewFileProcessingSummary(fileName string, fileType FileType, uploadDate time.Time) *FileProcessingSummary {
	return &FileProcessingSummary{
		FileName:   fileName,
		FileType:   fileType,
		UploadDate: uploadDate,
	}
}

type ProcessingResponse struct {
	FileName string                 `json:"file_name"`
	Status   ProcessingStatus       `json:"status"`
	Message  string                 `json:"message"`
	Summary  *FileProcessingSummary `json:"summary,omitempty"`
}

// FileFilter narrows the processed-files listing by upload date.
type FileFilter struct {
	FileType  *FileType
	StartDate *time.Time
	EndDate   *time.Time
}

// RecordFilter narrows the record listing by production date and identifiers.
type RecordFilter struct {
	FileType   *FileType
	StartDate  *time.Time
	EndDate    *time.Time
	WorkCell   string
	JobNumber  string
	PartNumber string
	Limit      int
	Offset     int
}

const (
	DefaultRecordLimit = 100
	MaxRecordLimit     = 1000
)

// Normalize applies the listing defaults and rejects out-of-range paging.
func (f *RecordFilter) Normalize() error {
	if f.Limit == 0 {
		f.Limit = DefaultRecordLimit
	}
	if f.Limit < 0 || f.Limit > MaxRecordLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxRecordLimit, f.Limit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", f.Offset)
	}
	return nil
}
