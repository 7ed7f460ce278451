package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prodreports/dispatch-ingestion/internal/normalize"
)

// MetadataRows is the number of report header rows preceding the data rows.
const MetadataRows = 2

var (
	ErrMetadataUnavailable    = errors.New("failed to extract metadata")
	ErrInvalidReportStartDate = errors.New("invalid report start date")
	ErrMissingDepartment      = errors.New("missing department information")
)

// Metadata is read once per file from the two header rows.
type Metadata struct {
	ReportStartDate  string
	ReportDepartment string
}

// NewReader returns a reader for the report exports: rows have varying
// widths and free-text cells may carry stray quotes.
func NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ReadMetadata consumes the two header rows. Row 1 column 1 holds the report
// start date, row 2 column 2 the department.
func ReadMetadata(reader *csv.Reader) (Metadata, error) {
	first, err := reader.Read()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: reading report start row: %v", ErrMetadataUnavailable, err)
	}
	if len(first) < 2 {
		return Metadata{}, fmt.Errorf("%w: report start row has %d columns", ErrMetadataUnavailable, len(first))
	}

	startDate, ok := normalize.ParseDate(first[1])
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidReportStartDate, first[1])
	}

	second, err := reader.Read()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: reading department row: %v", ErrMetadataUnavailable, err)
	}
	if len(second) < 3 {
		return Metadata{}, fmt.Errorf("%w: department row has %d columns", ErrMetadataUnavailable, len(second))
	}

	department := second[2]
	if strings.TrimSpace(department) == "" {
		return Metadata{}, ErrMissingDepartment
	}

	return Metadata{ReportStartDate: startDate, ReportDepartment: department}, nil
}

// SkipMetadata advances past the header rows without interpreting them and
// returns the line the last header row ends on.
func SkipMetadata(reader *csv.Reader) (int, error) {
	var (
		row []string
		err error
	)
	for i := 0; i < MetadataRows; i++ {
		if row, err = reader.Read(); err != nil {
			return 0, fmt.Errorf("%w: skipping header row %d: %v", ErrMetadataUnavailable, i+1, err)
		}
	}
	_, end := RecordLines(reader, row)
	return end, nil
}

// RecordLines returns the first and last line of row, the record most
// recently returned by reader.
func RecordLines(reader *csv.Reader, row []string) (int, int) {
	if len(row) == 0 {
		return 0, 0
	}
	start, _ := reader.FieldPos(0)
	last := len(row) - 1
	end, _ := reader.FieldPos(last)
	return start, end + strings.Count(row[last], "\n")
}

// LineCounter counts the lines of the input read through it. encoding/csv
// drops empty lines; record positions compared with the count recover them.
type LineCounter struct {
	r        io.Reader
	newlines int
	last     byte
	read     bool
}

func NewLineCounter(r io.Reader) *LineCounter {
	return &LineCounter{r: r}
}

func (c *LineCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read = true
		c.last = p[n-1]
		for _, b := range p[:n] {
			if b == '\n' {
				c.newlines++
			}
		}
	}
	return n, err
}

// Lines is the number of lines read so far, including an unterminated
// final line.
func (c *LineCounter) Lines() int {
	if c.read && c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}
