package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/prodreports/dispatch-ingestion/internal/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// dateExpr casts a stored timestamp/date column to a calendar date.
func (d dialect) dateExpr(column string) string {
	if d == dialectPostgres {
		return column + "::date"
	}
	return "DATE(" + column + ")"
}

// dateArg renders a filter bound. SQLite compares canonical text, Postgres
// binds a DATE.
func (d dialect) dateArg(t time.Time) any {
	if d == dialectPostgres {
		return t
	}
	return t.Format("2006-01-02")
}

type whereBuilder struct {
	dialect dialect
	clauses []string
	args    []any
}

// add appends a condition written with a single "?" placeholder.
func (b *whereBuilder) add(condition string, arg any) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, strings.Replace(condition, "?", b.dialect.placeholder(len(b.args)), 1))
}

func (b *whereBuilder) next() string {
	return b.dialect.placeholder(len(b.args) + 1)
}

func (b *whereBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func buildInsertQuery(d dialect) string {
	placeholders := make([]string, len(insertColumns))
	for i := range insertColumns {
		placeholders[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf(
		`INSERT INTO dispatch_data (%s) VALUES (%s) ON CONFLICT (dedup_key) DO NOTHING`,
		strings.Join(insertColumns, ", "), strings.Join(placeholders, ", "))
}

func buildExistsQuery(d dialect) string {
	return fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM dispatch_data WHERE dedup_key = %s)`, d.placeholder(1))
}

func buildFilesQuery(d dialect, filter models.FileFilter) (string, []any) {
	b := whereBuilder{dialect: d}
	if filter.FileType != nil {
		b.add("file_type = ?", filter.FileType.DBValue())
	}
	if filter.StartDate != nil {
		b.add(d.dateExpr("upload_date")+" >= ?", d.dateArg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		b.add(d.dateExpr("upload_date")+" <= ?", d.dateArg(*filter.EndDate))
	}

	query := `
	SELECT
		file_name,
		file_type,
		COUNT(*) AS total_rows,
		SUM(CASE WHEN processing_status = 'success' THEN 1 ELSE 0 END) AS successful_rows,
		SUM(CASE WHEN processing_status = 'duplicate' THEN 1 ELSE 0 END) AS duplicate_rows,
		SUM(CASE WHEN processing_status = 'error' THEN 1 ELSE 0 END) AS error_rows,
		SUM(CASE WHEN processing_status = 'skipped' THEN 1 ELSE 0 END) AS skipped_rows,
		MAX(upload_date) AS upload_date,
		MIN(report_start_date) AS report_start_date,
		MAX(report_end_date) AS report_end_date
	FROM dispatch_data` + b.where() + `
	GROUP BY file_name, file_type
	ORDER BY MAX(upload_date) DESC`

	return query, b.args
}

func buildRecordsQuery(d dialect, filter models.RecordFilter) (string, []any) {
	b := whereBuilder{dialect: d}
	if filter.FileType != nil {
		b.add("file_type = ?", filter.FileType.DBValue())
	}
	if filter.StartDate != nil {
		b.add("prod_date >= ?", d.dateArg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		b.add("prod_date <= ?", d.dateArg(*filter.EndDate))
	}
	if filter.WorkCell != "" {
		b.add("work_cell = ?", filter.WorkCell)
	}
	if filter.JobNumber != "" {
		b.add("job_number = ?", filter.JobNumber)
	}
	if filter.PartNumber != "" {
		b.add("part_number = ?", filter.PartNumber)
	}

	query := fmt.Sprintf(`SELECT %s FROM dispatch_data%s ORDER BY prod_date DESC, id DESC LIMIT %s`,
		strings.Join(selectColumns, ", "), b.where(), b.next())
	b.args = append(b.args, filter.Limit)
	query += " OFFSET " + b.next()
	b.args = append(b.args, filter.Offset)

	return query, b.args
}
