package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/logger"
	"pdfrag/internal/telemetry"
	"pdfrag/models"
)

// PageOCR is the per-page OCR fallback boundary.
type PageOCR interface {
	Enabled() bool
	ExtractPage(ctx context.Context, pdfPath string, pageNumber int) (string, error)
}

// PDFExtractor produces per-page text from a PDF, trying direct extraction
// first and falling back to OCR for pages that yield nothing usable. A page
// where both fail contributes an empty string; extraction never aborts the
// file because of a single bad page.
type PDFExtractor struct {
	ocr     PageOCR
	metrics *telemetry.Metrics
}

func NewPDFExtractor(ocr PageOCR, metrics *telemetry.Metrics) *PDFExtractor {
	return &PDFExtractor{ocr: ocr, metrics: metrics}
}

// Extract returns the text of every page in order, 1-indexed.
func (e *PDFExtractor) Extract(ctx context.Context, filePath string) ([]models.PageText, error) {
	start := time.Now()

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > 200<<20 { // 200MB safety cap
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pageCount := reader.NumPage()
	pages := make([]models.PageText, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := e.extractPage(reader, i)
		if strings.TrimSpace(text) != "" {
			logger.Debug("Extracted page text directly", "file", filePath, "page", i, "chars", len(text))
		} else {
			text = e.ocrFallback(ctx, filePath, i)
		}

		pages = append(pages, models.PageText{PageNumber: i, Text: text})
	}

	if e.metrics != nil {
		e.metrics.ExtractionTime.Record(ctx, time.Since(start).Seconds())
	}
	return pages, nil
}

// extractPage pulls the plain text of a single page. Errors degrade to an
// empty string so the OCR fallback gets its chance.
func (e *PDFExtractor) extractPage(reader *pdf.Reader, pageNumber int) string {
	page := reader.Page(pageNumber)
	if page.V.IsNull() {
		return ""
	}

	fonts := make(map[string]*pdf.Font)
	text, err := page.GetPlainText(fonts)
	if err != nil {
		logger.Warn("Direct text extraction failed", "page", pageNumber, "error", err)
		return ""
	}
	return text
}

// ocrFallback asks the OCR service for the page. Any OCR failure is treated
// as "no text for this page", never as a fatal error.
func (e *PDFExtractor) ocrFallback(ctx context.Context, filePath string, pageNumber int) string {
	if e.ocr == nil || !e.ocr.Enabled() {
		logger.Warn("Page has no extractable text and OCR is disabled", "file", filePath, "page", pageNumber)
		return ""
	}

	logger.Info("No text found, trying OCR", "file", filePath, "page", pageNumber)
	text, err := e.ocr.ExtractPage(ctx, filePath, pageNumber)
	if err != nil {
		logger.Warn("OCR fallback failed", "file", filePath, "page", pageNumber, "error", err)
		return ""
	}
	if strings.TrimSpace(text) != "" {
		logger.Info("Extracted page text with OCR", "file", filePath, "page", pageNumber, "chars", len(text))
	}
	return text
}
