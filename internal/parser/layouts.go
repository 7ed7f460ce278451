package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/normalize"
)

var ErrMissingColumn = errors.New("missing column")

// FileContext carries the per-file values stamped on every record.
type FileContext struct {
	Metadata
	ReportEndDate string
	FileName      string
	UploadDate    time.Time
}

// Adapter knows where one report layout keeps each canonical field.
type Adapter interface {
	FileType() models.FileType
	ExtractMetadata(reader *csv.Reader) (Metadata, error)
	IsBlank(row []string) bool
	ProdDate(row []string) (string, bool)
	ReportCreationDatetime(row []string) *string
	// MapRow returns (nil, nil) for rows that are skipped: blank rows and rows
	// without a usable production date.
	MapRow(row []string, fc FileContext) (*models.DispatchRecord, error)
}

// absent marks a canonical field the layout does not carry.
const absent = -1

// columns holds 0-based raw column indexes. The blank check inspects
// [BlankFrom, BlankTo).
type columns struct {
	WorkCell         int
	JobNumber        int
	PartNumber       int
	Comments         int
	JobQty           int
	BalQty           int
	Code             int
	ProdDate         int
	EstComplDate     int
	AndOn            int
	MPc              int
	ProdHr           int
	CreationDatetime int
	BlankFrom        int
	BlankTo          int
}

var assyColumns = columns{
	WorkCell: 19, JobNumber: 20, PartNumber: 21, Comments: absent,
	JobQty: 22, BalQty: 23, Code: 24, ProdDate: 25,
	EstComplDate: 26, AndOn: 27, MPc: 28, ProdHr: 29, CreationDatetime: 30,
	BlankFrom: 20, BlankTo: 30,
}

var fabcutColumns = columns{
	WorkCell: 16, JobNumber: 17, PartNumber: 18, Comments: absent,
	JobQty: 19, BalQty: 20, Code: 21, ProdDate: 22,
	EstComplDate: absent, AndOn: absent, MPc: 23, ProdHr: 24, CreationDatetime: 25,
	BlankFrom: 17, BlankTo: 25,
}

var lpColumns = columns{
	WorkCell: 18, JobNumber: 19, PartNumber: 20, Comments: 21,
	JobQty: 22, BalQty: 23, Code: 24, ProdDate: 25,
	EstComplDate: absent, AndOn: absent, MPc: 26, ProdHr: 27, CreationDatetime: 28,
	BlankFrom: 19, BlankTo: 28,
}

// SEW-DC and SEW-FB exports share one arrangement.
var sewColumns = columns{
	WorkCell: 17, JobNumber: 18, PartNumber: 19, Comments: absent,
	JobQty: 20, BalQty: 21, Code: 22, ProdDate: 23,
	EstComplDate: absent, AndOn: absent, MPc: 24, ProdHr: 25, CreationDatetime: 26,
	BlankFrom: 18, BlankTo: 26,
}

var adapters = map[models.FileType]Adapter{
	models.FileTypeAssy:   &tableAdapter{fileType: models.FileTypeAssy, cols: assyColumns},
	models.FileTypeFabcut: &tableAdapter{fileType: models.FileTypeFabcut, cols: fabcutColumns},
	models.FileTypeLP:     &tableAdapter{fileType: models.FileTypeLP, cols: lpColumns},
	models.FileTypeSewDC:  &tableAdapter{fileType: models.FileTypeSewDC, cols: sewColumns},
	models.FileTypeSewFB:  &tableAdapter{fileType: models.FileTypeSewFB, cols: sewColumns},
}

// ForFileType returns the adapter for a layout.
func ForFileType(ft models.FileType) (Adapter, error) {
	adapter, ok := adapters[ft]
	if !ok {
		return nil, fmt.Errorf("no adapter for file type %q", ft)
	}
	return adapter, nil
}

type tableAdapter struct {
	fileType models.FileType
	cols     columns
}

func (a *tableAdapter) FileType() models.FileType {
	return a.fileType
}

func (a *tableAdapter) ExtractMetadata(reader *csv.Reader) (Metadata, error) {
	return ReadMetadata(reader)
}

func (a *tableAdapter) IsBlank(row []string) bool {
	for i := a.cols.BlankFrom; i < a.cols.BlankTo && i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return false
		}
	}
	return true
}

func (a *tableAdapter) ProdDate(row []string) (string, bool) {
	if a.cols.ProdDate >= len(row) {
		return "", false
	}
	return normalize.ParseDate(row[a.cols.ProdDate])
}

func (a *tableAdapter) ReportCreationDatetime(row []string) *string {
	if a.cols.CreationDatetime >= len(row) {
		return nil
	}
	parsed, ok := normalize.ParseDatetime(row[a.cols.CreationDatetime])
	if !ok {
		return nil
	}
	return &parsed
}

func (a *tableAdapter) MapRow(row []string, fc FileContext) (*models.DispatchRecord, error) {
	if a.IsBlank(row) {
		return nil, nil
	}

	fields := rowFields{row: row}
	rawProdDate := fields.text(a.cols.ProdDate, "prod_date")
	if fields.err != nil {
		return nil, fields.err
	}
	prodDate, ok := normalize.ParseDate(rawProdDate)
	if !ok {
		return nil, nil
	}

	record := &models.DispatchRecord{
		FileType:               a.fileType.DBValue(),
		WorkCell:               fields.text(a.cols.WorkCell, "work_cell"),
		JobNumber:              fields.text(a.cols.JobNumber, "job_number"),
		PartNumber:             fields.text(a.cols.PartNumber, "part_number"),
		Comments:               fields.optionalText(a.cols.Comments, "comments"),
		JobQty:                 normalize.NumberPtr(fields.text(a.cols.JobQty, "job_qty")),
		BalQty:                 normalize.NumberPtr(fields.text(a.cols.BalQty, "bal_qty")),
		Code:                   fields.text(a.cols.Code, "code"),
		ProdDate:               prodDate,
		EstComplDate:           fields.optionalDate(a.cols.EstComplDate, "est_compl_date"),
		AndOn:                  fields.optionalText(a.cols.AndOn, "and_on"),
		MPc:                    fields.optionalNumber(a.cols.MPc, "m_pc"),
		ProdHr:                 fields.optionalNumber(a.cols.ProdHr, "prod_hr"),
		ReportStartDate:        fc.ReportStartDate,
		ReportEndDate:          fc.ReportEndDate,
		ReportDepartment:       fc.ReportDepartment,
		ReportCreationDatetime: a.ReportCreationDatetime(row),
		UploadDate:             fc.UploadDate,
		FileName:               fc.FileName,
		ProcessingStatus:       models.StatusSuccess,
	}
	if fields.err != nil {
		return nil, fields.err
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// rowFields reads cells from a row and keeps the first out-of-range error,
// so a record can be assembled in one expression and checked once.
type rowFields struct {
	row []string
	err error
}

func (f *rowFields) text(index int, name string) string {
	if index >= len(f.row) {
		if f.err == nil {
			f.err = fmt.Errorf("%w: %s (index %d, row has %d columns)", ErrMissingColumn, name, index, len(f.row))
		}
		return ""
	}
	return f.row[index]
}

func (f *rowFields) optionalText(index int, name string) *string {
	if index == absent {
		return nil
	}
	value := f.text(index, name)
	return &value
}

func (f *rowFields) optionalNumber(index int, name string) *float64 {
	if index == absent {
		return nil
	}
	return normalize.NumberPtr(f.text(index, name))
}

// optionalDate only interprets non-empty cells; an unparseable date is absent.
func (f *rowFields) optionalDate(index int, name string) *string {
	if index == absent {
		return nil
	}
	raw := f.text(index, name)
	if raw == "" {
		return nil
	}
	parsed, ok := normalize.ParseDate(raw)
	if !ok {
		return nil
	}
	return &parsed
}
