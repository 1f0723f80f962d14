package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pdfrag/internal/config"
)

func newOCRTestClient(t *testing.T, handler http.Handler) (*OCRClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOCRClient(&config.Config{
		OCRServiceURL:     srv.URL,
		OCRServiceEnabled: true,
		OCRTimeout:        5,
	})
	return client, srv
}

func TestOCRClientHealth(t *testing.T) {
	client, _ := newOCRTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "model_loaded": true})
	}))

	healthy, err := client.IsHealthy(context.Background())
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if !healthy {
		t.Fatal("expected healthy service")
	}
}

func TestOCRClientExtractPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0600); err != nil {
		t.Fatal(err)
	}

	client, _ := newOCRTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/page" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("page"); got != "2" {
			t.Errorf("page field = %q, want 2", got)
		}
		json.NewEncoder(w).Encode(ocrPageResponse{Success: true, Text: "recognized text", Page: 2})
	}))

	text, err := client.ExtractPage(context.Background(), path, 2)
	if err != nil {
		t.Fatalf("extract page failed: %v", err)
	}
	if text != "recognized text" {
		t.Fatalf("text = %q", text)
	}
}

func TestOCRClientFailureIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0600); err != nil {
		t.Fatal(err)
	}

	client, _ := newOCRTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ocrPageResponse{Success: false, Error: "render error"})
	}))

	if _, err := client.ExtractPage(context.Background(), path, 1); err == nil {
		t.Fatal("expected error from unsuccessful OCR response")
	}
}
