package models

import (
	"encoding/json"
	"fmt"
)

// AppError describes a data row that could not be turned into a record.
type AppError struct {
	FileName string
	Row      int
	Message  string
	Err      error
	Record   *DispatchRecord
}

func (e *AppError) Error() string {
	var recordDetails string
	if e.Record != nil {
		recordJSON, err := json.Marshal(e.Record)
		if err != nil {
			recordDetails = "failed to marshal record to JSON"
		} else {
			recordDetails = string(recordJSON)
		}
	}

	location := e.FileName
	if e.Row > 0 {
		location = fmt.Sprintf("%s row %d", e.FileName, e.Row)
	}

	if e.Err != nil {
		if recordDetails != "" {
			return fmt.Sprintf("%s: %s - %v - Record: %s", location, e.Message, e.Err, recordDetails)
		}
		return fmt.Sprintf("%s: %s - %v", location, e.Message, e.Err)
	}

	if recordDetails != "" {
		return fmt.Sprintf("%s: %s - Record: %s", location, e.Message, recordDetails)
	}

	return fmt.Sprintf("%s: %s", location, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}
