package models

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prodreports/dispatch-ingestion/pkg/checksum"
)

// ErrValidation is wrapped by every invariant violation reported by Validate.
var ErrValidation = errors.New("validation failed")

// absentMarker encodes a nil field in the duplicate key. It cannot be produced
// by a CSV cell, so an absent value never equals an empty string.
const absentMarker = "\x00"

// Validate checks the record invariants enforced before persistence.
func (r *DispatchRecord) Validate() error {
	if r.JobQty == nil {
		return fmt.Errorf("%w: job_qty is required", ErrValidation)
	}
	if r.BalQty == nil {
		return fmt.Errorf("%w: bal_qty is required", ErrValidation)
	}
	if r.ProdDate == "" {
		return fmt.Errorf("%w: prod_date is required", ErrValidation)
	}
	if r.ReportCreationDatetime == nil {
		return fmt.Errorf("%w: report_creation_datetime is required", ErrValidation)
	}

	quantities := []struct {
		name  string
		value *float64
	}{
		{"job_qty", r.JobQty},
		{"bal_qty", r.BalQty},
		{"m_pc", r.MPc},
		{"prod_hr", r.ProdHr},
	}
	for _, q := range quantities {
		if q.value != nil && *q.value < 0 {
			return fmt.Errorf("%w: %s cannot be negative, got %v", ErrValidation, q.name, *q.value)
		}
	}
	return nil
}

// DuplicateKey is the subset of a record that identifies the same production
// fact across files and re-uploads.
type DuplicateKey struct {
	FileType     string
	WorkCell     string
	JobNumber    string
	PartNumber   string
	JobQty       *float64
	BalQty       *float64
	Code         string
	ProdDate     string
	EstComplDate *string
	AndOn        *string
	MPc          *float64
	ProdHr       *float64
}

func (r *DispatchRecord) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		FileType:     r.FileType,
		WorkCell:     r.WorkCell,
		JobNumber:    r.JobNumber,
		PartNumber:   r.PartNumber,
		JobQty:       r.JobQty,
		BalQty:       r.BalQty,
		Code:         r.Code,
		ProdDate:     r.ProdDate,
		EstComplDate: r.EstComplDate,
		AndOn:        r.AndOn,
		MPc:          r.MPc,
		ProdHr:       r.ProdHr,
	}
}

// Hash returns the value stored in the dedup_key column.
func (k DuplicateKey) Hash() string {
	return checksum.CalculateHash([]string{
		k.FileType,
		k.WorkCell,
		k.JobNumber,
		k.PartNumber,
		encodeFloat(k.JobQty),
		encodeFloat(k.BalQty),
		k.Code,
		k.ProdDate,
		encodeString(k.EstComplDate),
		encodeString(k.AndOn),
		encodeFloat(k.MPc),
		encodeFloat(k.ProdHr),
	})
}

func encodeFloat(v *float64) string {
	if v == nil {
		return absentMarker
	}
	if *v == 0 {
		// "(0)" parses to negative zero
		return "0"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func encodeString(v *string) string {
	if v == nil {
		return absentMarker
	}
	return *v
}
