package server

import (
	"net/http"
)

func SetupRoutes(apiPrefix string, dispatchHandler *DispatchService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", dispatchHandler.Health)
	mux.HandleFunc("POST "+apiPrefix+"/files/upload/{file_type}", dispatchHandler.UploadFile)
	mux.HandleFunc("POST "+apiPrefix+"/files/upload-multiple/{file_type}", dispatchHandler.UploadMultipleFiles)
	mux.HandleFunc("GET "+apiPrefix+"/data/files", dispatchHandler.GetProcessedFiles)
	mux.HandleFunc("GET "+apiPrefix+"/data/records", dispatchHandler.GetRecords)
	mux.HandleFunc("GET "+apiPrefix+"/data/records/export", dispatchHandler.ExportRecords)

	return mux
}
