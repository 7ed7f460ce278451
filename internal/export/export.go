package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/normalize"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Dispatch Data"

// Header is the column order shared by both export formats.
var Header = []string{
	"id", "file_type", "work_cell", "job_number", "part_number", "comments",
	"job_qty", "bal_qty", "code", "prod_date", "est_compl_date", "and_on",
	"m_pc", "prod_hr", "report_start_date", "report_end_date", "report_department",
	"report_creation_datetime", "upload_date", "file_name", "processing_status",
}

func rowValues(r models.StoredRecord) []interface{} {
	return []interface{}{
		r.ID,
		r.FileType,
		r.WorkCell,
		r.JobNumber,
		r.PartNumber,
		stringValue(r.Comments),
		floatValue(r.JobQty),
		floatValue(r.BalQty),
		r.Code,
		r.ProdDate,
		stringValue(r.EstComplDate),
		stringValue(r.AndOn),
		floatValue(r.MPc),
		floatValue(r.ProdHr),
		r.ReportStartDate,
		r.ReportEndDate,
		r.ReportDepartment,
		stringValue(r.ReportCreationDatetime),
		r.UploadDate.Format(normalize.DatetimeLayout),
		r.FileName,
		string(r.ProcessingStatus),
	}
}

// WriteXLSX writes records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []models.StoredRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, name := range Header {
		header[i] = name
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rowValues(record)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []models.StoredRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}

	for _, record := range records {
		values := rowValues(record)
		row := make([]string, len(values))
		for i, value := range values {
			row[i] = formatCell(value)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func stringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
