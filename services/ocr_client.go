package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"pdfrag/internal/config"
)

// OCRClient talks to the external OCR service used as a fallback when direct
// PDF text extraction yields nothing for a page. The service is a black box:
// it renders the requested page and returns recognized text.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
	enabled    bool
}

// ocrPageResponse is the OCR service's answer for a single page.
type ocrPageResponse struct {
	Success bool    `json:"success"`
	Text    string  `json:"text"`
	Page    int     `json:"page"`
	Quality float64 `json:"quality_score"`
	Error   string  `json:"error,omitempty"`
}

type ocrHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewOCRClient creates a new OCR client
func NewOCRClient(cfg *config.Config) *OCRClient {
	timeout := time.Duration(cfg.OCRTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OCRClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.OCRServiceURL,
		enabled:    cfg.OCRServiceEnabled,
	}
}

// Enabled reports whether the OCR fallback is configured on.
func (c *OCRClient) Enabled() bool {
	return c.enabled
}

// IsHealthy checks if the OCR service is up and has its model loaded.
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var health ocrHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return health.Status == "healthy" && health.ModelLoaded, nil
}

// ExtractPage sends the PDF and a 1-indexed page number, returning the
// recognized text for that page. An empty string with nil error means the
// service ran but found nothing readable.
func (c *OCRClient) ExtractPage(ctx context.Context, pdfPath string, pageNumber int) (string, error) {
	fileData, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(fileData)); err != nil {
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}
	writer.WriteField("page", strconv.Itoa(pageNumber))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr/page", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if !ocrResp.Success {
		return "", fmt.Errorf("OCR processing failed: %s", ocrResp.Error)
	}

	return ocrResp.Text, nil
}
