package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"pdfrag/internal/config"
	"pdfrag/models"
	"pdfrag/services"
)

type stubExtractor struct {
	pages []models.PageText
}

func (s *stubExtractor) Extract(context.Context, string) ([]models.PageText, error) {
	return s.pages, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type stubIndex struct {
	records []models.VectorRecord
	hits    []models.SearchHit
}

func (s *stubIndex) EnsureCollection(context.Context) error { return nil }
func (s *stubIndex) ReplaceAll(_ context.Context, records []models.VectorRecord) error {
	s.records = records
	return nil
}
func (s *stubIndex) Search(context.Context, []float32, int) ([]models.SearchHit, error) {
	return s.hits, nil
}
func (s *stubIndex) CountPoints(context.Context) (int, error) { return len(s.records), nil }

type stubGenerator struct{ answer string }

func (s stubGenerator) Generate(context.Context, string) (string, error) { return s.answer, nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		FileStorageDir: t.TempDir(),
		MaxFileSize:    1 << 20,
		ChunkSize:      500,
		ChunkOverlap:   50,
		TopK:           5,
	}
}

func testRouter(t *testing.T, cfg *config.Config, index *stubIndex, extractor services.Extractor, answer string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chunker, err := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	ingestion := services.NewIngestionService(extractor, chunker, stubEmbedder{}, index, nil)
	retrieval := services.NewRetrievalService(stubEmbedder{}, index, stubGenerator{answer: answer}, cfg.TopK, nil)

	router := gin.New()
	SetupRoutes(router, cfg, ingestion, retrieval, index)
	return router
}

func multipartPDF(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fw, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestHealthListsOperations(t *testing.T) {
	router := testRouter(t, testConfig(t), &stubIndex{}, &stubExtractor{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Status     string   `json:"status"`
		Operations []string `json:"operations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || len(body.Operations) == 0 {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestIngestRejectsNonPDFFilename(t *testing.T) {
	router := testRouter(t, testConfig(t), &stubIndex{}, &stubExtractor{}, "")

	buf, contentType := multipartPDF(t, "pdfs", "notes.txt", []byte("%PDF-1.4 whatever"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", buf)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_pdf") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestIngestRejectsBadMagicBytes(t *testing.T) {
	router := testRouter(t, testConfig(t), &stubIndex{}, &stubExtractor{}, "")

	buf, contentType := multipartPDF(t, "pdfs", "fake.pdf", []byte("GIF89a not a pdf"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", buf)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIngestRejectsMissingFiles(t *testing.T) {
	router := testRouter(t, testConfig(t), &stubIndex{}, &stubExtractor{}, "")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.Close()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIngestHappyPath(t *testing.T) {
	index := &stubIndex{}
	extractor := &stubExtractor{pages: []models.PageText{{PageNumber: 1, Text: "hello retrieval world"}}}
	router := testRouter(t, testConfig(t), index, extractor, "")

	buf, contentType := multipartPDF(t, "pdfs", "doc.pdf", []byte("%PDF-1.4 content"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", buf)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.TotalChunks != 1 || resp.Result.FilesIngested != 1 {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
	if len(index.records) != 1 {
		t.Fatalf("index not updated: %d records", len(index.records))
	}
	if index.records[0].Payload.SourceFile != "doc.pdf" {
		t.Fatalf("provenance lost: %q", index.records[0].Payload.SourceFile)
	}
}

func TestIngestNoExtractableTextIs422(t *testing.T) {
	extractor := &stubExtractor{pages: []models.PageText{{PageNumber: 1, Text: "  "}}}
	router := testRouter(t, testConfig(t), &stubIndex{}, extractor, "")

	buf, contentType := multipartPDF(t, "pdfs", "empty.pdf", []byte("%PDF-1.4"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", buf)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", w.Code, w.Body.String())
	}
}

func TestAskValidation(t *testing.T) {
	router := testRouter(t, testConfig(t), &stubIndex{}, &stubExtractor{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAskReturnsAnswerAndSources(t *testing.T) {
	index := &stubIndex{hits: []models.SearchHit{
		{ID: "1", Score: 0.8, Payload: models.ChunkPayload{
			Text: "chunk text", SourceFile: "doc.pdf", PageNumber: 2, ChunkID: "doc.pdf_p2_c0"}},
	}}
	router := testRouter(t, testConfig(t), index, &stubExtractor{}, "The answer [doc.pdf, 2].")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"What?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer == "" || resp.Sources.ChunksUsed != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Sources.Citations[0] != "doc.pdf (Page 2)" {
		t.Fatalf("citation = %q", resp.Sources.Citations[0])
	}
}

func TestStats(t *testing.T) {
	index := &stubIndex{records: []models.VectorRecord{{ID: "r1"}}}
	router := testRouter(t, testConfig(t), index, &stubExtractor{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Points != 1 {
		t.Fatalf("points = %d, want 1", resp.Points)
	}
}
