package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prodreports/dispatch-ingestion/internal/config"
	"github.com/prodreports/dispatch-ingestion/internal/export"
	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/prodreports/dispatch-ingestion/internal/normalize"
	"go.uber.org/zap"
)

// maxMemory is the part of a multipart body kept in memory; the rest spills
// to temporary files.
const maxMemory = 32 << 20

// RecordReader answers the listing endpoints.
type RecordReader interface {
	ListProcessedFiles(ctx context.Context, filter models.FileFilter) ([]models.FileProcessingSummary, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.StoredRecord, error)
}

// FileIngester processes a saved upload under its original name.
type FileIngester interface {
	ProcessFileAs(ctx context.Context, filePath, fileName string, fileType models.FileType) (*models.FileProcessingSummary, error)
}

type DispatchService struct {
	config   config.Config
	store    RecordReader
	ingester FileIngester
	logger   *zap.Logger
}

func NewDispatchService(cfg config.Config, store RecordReader, ingester FileIngester, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{config: cfg, store: store, ingester: ingester, logger: logger}
}

func (h *DispatchService) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app_name":    h.config.AppName,
		"status":      "healthy",
		"api_version": h.config.APIV1Str,
	})
}

func (h *DispatchService) UploadFile(w http.ResponseWriter, r *http.Request) {
	fileType, ok := h.uploadFileType(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "Missing 'file' form field", http.StatusBadRequest)
		return
	}

	header := files[0]
	if header.Size > h.config.MaxUploadSize {
		http.Error(w, fmt.Sprintf("File too large. Maximum size is %d bytes", h.config.MaxUploadSize), http.StatusBadRequest)
		return
	}

	response, err := h.ingest(r.Context(), header, fileType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error processing file: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *DispatchService) UploadMultipleFiles(w http.ResponseWriter, r *http.Request) {
	fileType, ok := h.uploadFileType(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "Missing 'files' form field", http.StatusBadRequest)
		return
	}

	responses := make([]models.ProcessingResponse, 0, len(files))
	for _, header := range files {
		fileName := filepath.Base(header.Filename)
		if header.Size > h.config.MaxUploadSize {
			h.logger.Warn("upload exceeds size limit", zap.String("file", fileName), zap.Int64("size", header.Size))
			responses = append(responses, models.ProcessingResponse{
				FileName: fileName,
				Status:   models.StatusError,
				Message:  fmt.Sprintf("File too large. Maximum size is %d bytes", h.config.MaxUploadSize),
			})
			continue
		}

		response, err := h.ingest(r.Context(), header, fileType)
		if err != nil {
			responses = append(responses, models.ProcessingResponse{
				FileName: fileName,
				Status:   models.StatusError,
				Message:  err.Error(),
			})
			continue
		}
		responses = append(responses, *response)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *DispatchService) uploadFileType(w http.ResponseWriter, r *http.Request) (models.FileType, bool) {
	fileType, err := models.ParseFileType(r.PathValue("file_type"))
	if err != nil || !h.config.IsAllowed(fileType) {
		http.Error(w, fmt.Sprintf("Invalid file type %q", r.PathValue("file_type")), http.StatusBadRequest)
		return "", false
	}
	return fileType, true
}

// ingest saves the upload under a unique name, processes it and removes it.
func (h *DispatchService) ingest(ctx context.Context, header *multipart.FileHeader, fileType models.FileType) (*models.ProcessingResponse, error) {
	fileName := filepath.Base(header.Filename)

	path, err := h.saveUpload(header)
	if err != nil {
		h.logger.Error("failed to save upload", zap.String("file", fileName), zap.Error(err))
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to delete temporary file", zap.String("path", path), zap.Error(err))
		}
	}()

	summary, err := h.ingester.ProcessFileAs(ctx, path, fileName, fileType)
	if err != nil {
		return nil, err
	}
	return &models.ProcessingResponse{
		FileName: fileName,
		Status:   models.StatusSuccess,
		Message:  "File processed successfully",
		Summary:  summary,
	}, nil
}

func (h *DispatchService) saveUpload(header *multipart.FileHeader) (string, error) {
	if err := h.config.EnsureUploadFolder(); err != nil {
		return "", err
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("error opening upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(h.config.UploadFolder, uuid.NewString()+"_"+filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("error saving file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func (h *DispatchService) GetProcessedFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		filter models.FileFilter
		err    error
	)
	if filter.FileType, err = parseFileTypeParam(query.Get("file_type")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.StartDate, err = parseDateParam("start_date", query.Get("start_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.EndDate, err = parseDateParam("end_date", query.Get("end_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	files, err := h.store.ListProcessedFiles(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list processed files", zap.Error(err))
		http.Error(w, "Error retrieving file list", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *DispatchService) GetRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r, models.DefaultRecordLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.store.ListRecords(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list records", zap.Error(err))
		http.Error(w, "Error retrieving dispatch records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ExportRecords streams the filtered records as an xlsx (default) or csv
// attachment. Without an explicit limit the maximum page is exported.
func (h *DispatchService) ExportRecords(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		http.Error(w, "Invalid 'format'. Use xlsx or csv.", http.StatusBadRequest)
		return
	}

	filter, err := parseRecordFilter(r, models.MaxRecordLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.store.ListRecords(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list records for export", zap.Error(err))
		http.Error(w, "Error retrieving dispatch records", http.StatusInternalServerError)
		return
	}

	fileName := fmt.Sprintf("dispatch_data_%s.%s", time.Now().Format("20060102_150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		err = export.WriteCSV(w, records)
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, records)
	}
	if err != nil {
		h.logger.Error("failed to write export", zap.String("format", format), zap.Error(err))
	}
}

func parseRecordFilter(r *http.Request, defaultLimit int) (models.RecordFilter, error) {
	query := r.URL.Query()
	filter := models.RecordFilter{
		WorkCell:   query.Get("work_cell"),
		JobNumber:  query.Get("job_number"),
		PartNumber: query.Get("part_number"),
		Limit:      defaultLimit,
	}

	var err error
	if filter.FileType, err = parseFileTypeParam(query.Get("file_type")); err != nil {
		return filter, err
	}
	if filter.StartDate, err = parseDateParam("start_date", query.Get("start_date")); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseDateParam("end_date", query.Get("end_date")); err != nil {
		return filter, err
	}
	if value := query.Get("limit"); value != "" {
		if filter.Limit, err = strconv.Atoi(value); err != nil || filter.Limit == 0 {
			return filter, fmt.Errorf("invalid 'limit': %q", value)
		}
	}
	if value := query.Get("offset"); value != "" {
		if filter.Offset, err = strconv.Atoi(value); err != nil {
			return filter, fmt.Errorf("invalid 'offset': %q", value)
		}
	}
	return filter, filter.Normalize()
}

func parseFileTypeParam(value string) (*models.FileType, error) {
	if value == "" {
		return nil, nil
	}
	ft, err := models.ParseFileType(value)
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func parseDateParam(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	date, err := time.Parse(normalize.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' format. Use YYYY-MM-DD", name)
	}
	return &date, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
