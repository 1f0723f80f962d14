package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pdfrag/internal/config"
	"pdfrag/models"
	"pdfrag/services"
	"pdfrag/utils"
)

// HandleIngest accepts one or more PDFs under the "pdfs" multipart field,
// persists them to the working directory and runs the ingestion pipeline
// synchronously. Each run fully replaces the previous corpus.
func HandleIngest(cfg *config.Config, ingestion *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", err.Error())
			return
		}

		files := form.File["pdfs"]
		if len(files) == 0 {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No PDF files provided", nil)
			return
		}

		// Each upload batch gets its own directory so stored filenames keep
		// their original names for provenance.
		uploadDir := filepath.Join(cfg.FileStorageDir, "uploads", uuid.NewString())
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		var paths []string
		for _, header := range files {
			path, err := savePDF(cfg, uploadDir, header)
			if err != nil {
				os.RemoveAll(uploadDir)
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf", err.Error(), gin.H{"file": header.Filename})
				return
			}
			paths = append(paths, path)
		}

		result, err := ingestion.Ingest(c.Request.Context(), paths)
		if err != nil {
			if errors.Is(err, services.ErrNoChunks) {
				utils.RespondWithUnprocessable(c, "no_extractable_text", "No text could be extracted from any of the uploaded files")
				return
			}
			utils.RespondWithInternalError(c, "Ingestion failed", err.Error())
			return
		}

		c.JSON(http.StatusOK, models.IngestResponse{
			Message: fmt.Sprintf("Ingested %d chunks from %d file(s)", result.TotalChunks, result.FilesIngested),
			Result:  *result,
		})
	}
}

// savePDF validates one uploaded file and writes it to the upload directory.
func savePDF(cfg *config.Config, uploadDir string, header *multipart.FileHeader) (string, error) {
	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "", fmt.Errorf("only PDF files are allowed, got %q", name)
	}
	if header.Size > cfg.MaxFileSize {
		return "", fmt.Errorf("file %q exceeds the maximum size of %d bytes", name, cfg.MaxFileSize)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open uploaded file %q", name)
	}
	defer file.Close()

	// Sniff the magic bytes without loading the whole file.
	headerBuf := make([]byte, 5)
	if _, err := io.ReadFull(file, headerBuf); err != nil {
		return "", fmt.Errorf("cannot read file header of %q", name)
	}
	if string(headerBuf[:4]) != "%PDF" {
		return "", fmt.Errorf("file %q does not appear to be a valid PDF", name)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %q for saving", name)
	}

	path := filepath.Join(uploadDir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to open destination for %q", name)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
		return "", fmt.Errorf("failed to save %q", name)
	}
	return path, nil
}
