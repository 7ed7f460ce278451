package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prodreports/dispatch-ingestion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProcessor is a mock implementation of the Processor interface.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) ProcessFile(ctx context.Context, filePath string, fileType models.FileType) (*models.FileProcessingSummary, error) {
	args := m.Called(ctx, filePath, fileType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FileProcessingSummary), args.Error(1)
}

func createBatchDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestIngestionService_ScanForFiles(t *testing.T) {
	dir := createBatchDir(t, map[string]string{
		"Fabcut 09-30.csv":  "a",
		"Assy 09-30.CSV":    "b",
		"notes.txt":         "c",
		"archive/LP 1.csv":  "d",
		"Paint shop.csv":    "e",
		"SEW-DC report.csv": "f",
	})
	service := NewIngestionService(new(MockProcessor), nil, nil)

	t.Run("DetectsTypes", func(t *testing.T) {
		files, err := service.ScanForFiles(dir, nil)
		require.NoError(t, err)
		require.Len(t, files, 5)

		byName := make(map[string]models.FileType)
		for _, f := range files {
			byName[filepath.Base(f.Path)] = f.FileType
		}
		assert.Equal(t, models.FileTypeAssy, byName["Assy 09-30.CSV"])
		assert.Equal(t, models.FileTypeFabcut, byName["Fabcut 09-30.csv"])
		assert.Equal(t, models.FileTypeLP, byName["LP 1.csv"])
		assert.Equal(t, models.FileTypeSewDC, byName["SEW-DC report.csv"])
		assert.Equal(t, models.FileType(""), byName["Paint shop.csv"])
	})

	t.Run("Override", func(t *testing.T) {
		override := models.FileTypeSewFB
		files, err := service.ScanForFiles(filepath.Join(dir, "Paint shop.csv"), &override)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, models.FileTypeSewFB, files[0].FileType)
	})

	t.Run("AllowedTypesRestrictDetection", func(t *testing.T) {
		restricted := NewIngestionService(new(MockProcessor), []models.FileType{models.FileTypeLP}, nil)
		files, err := restricted.ScanForFiles(filepath.Join(dir, "Assy 09-30.CSV"), nil)
		require.NoError(t, err)
		assert.Equal(t, models.FileType(""), files[0].FileType)
	})

	t.Run("PathNotFound", func(t *testing.T) {
		_, err := service.ScanForFiles(filepath.Join(dir, "missing"), nil)
		assert.Error(t, err)
	})
}

func TestIngestionService_Execute(t *testing.T) {
	dir := createBatchDir(t, map[string]string{
		"Assy 1.csv":     "same content",
		"Assy 2.csv":     "same content",
		"Fabcut 1.csv":   "other content",
		"LP broken.csv":  "broken content",
		"Unknown 1.csv":  "whatever",
		"ignored.report": "not a csv",
	})
	summary := &models.FileProcessingSummary{FileName: "Assy 1.csv", SuccessfulRows: 3}
	fatal := errors.New("failed to extract metadata")

	processor := new(MockProcessor)
	processor.On("ProcessFile", mock.Anything, filepath.Join(dir, "Assy 1.csv"), models.FileTypeAssy).Return(summary, nil).Once()
	processor.On("ProcessFile", mock.Anything, filepath.Join(dir, "Fabcut 1.csv"), models.FileTypeFabcut).
		Return(&models.FileProcessingSummary{FileName: "Fabcut 1.csv"}, nil).Once()
	processor.On("ProcessFile", mock.Anything, filepath.Join(dir, "LP broken.csv"), models.FileTypeLP).Return(nil, fatal).Once()

	responses, err := NewIngestionService(processor, nil, nil).Execute(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, responses, 5)

	assert.Equal(t, "Assy 1.csv", responses[0].FileName)
	assert.Equal(t, models.StatusSuccess, responses[0].Status)
	assert.Same(t, summary, responses[0].Summary)

	assert.Equal(t, "Assy 2.csv", responses[1].FileName)
	assert.Equal(t, models.StatusSkipped, responses[1].Status)
	assert.Contains(t, responses[1].Message, "Assy 1.csv")

	assert.Equal(t, models.StatusSuccess, responses[2].Status)

	assert.Equal(t, "LP broken.csv", responses[3].FileName)
	assert.Equal(t, models.StatusError, responses[3].Status)
	assert.Contains(t, responses[3].Message, fatal.Error())
	assert.Nil(t, responses[3].Summary)

	assert.Equal(t, "Unknown 1.csv", responses[4].FileName)
	assert.Equal(t, models.StatusSkipped, responses[4].Status)

	processor.AssertExpectations(t)
}

func TestIngestionService_ExecuteWithOverride(t *testing.T) {
	dir := createBatchDir(t, map[string]string{"export.csv": "content"})
	override := models.FileTypeSewDC

	processor := new(MockProcessor)
	processor.On("ProcessFile", mock.Anything, filepath.Join(dir, "export.csv"), models.FileTypeSewDC).
		Return(&models.FileProcessingSummary{}, nil).Once()

	responses, err := NewIngestionService(processor, nil, nil).Execute(context.Background(), dir, &override)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, models.StatusSuccess, responses[0].Status)
	processor.AssertExpectations(t)

	invalid := models.FileType("Paint")
	_, err = NewIngestionService(processor, nil, nil).Execute(context.Background(), dir, &invalid)
	assert.Error(t, err)
}

func TestIngestionService_ExecuteStopsOnCancel(t *testing.T) {
	dir := createBatchDir(t, map[string]string{"Assy 1.csv": "a", "Assy 2.csv": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := new(MockProcessor)
	responses, err := NewIngestionService(processor, nil, nil).Execute(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, responses)
	processor.AssertNotCalled(t, "ProcessFile", mock.Anything, mock.Anything, mock.Anything)
}
