package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pdfrag/internal/logger"
	"pdfrag/models"
)

// QdrantStore is a REST client to Qdrant owning one named collection with
// cosine distance. An internal RWMutex serializes full-corpus replacement
// against searches, so a query never observes the transient empty window of
// a delete-then-upsert reload.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client

	mu sync.RWMutex
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant URL is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Collection returns the collection name this store owns.
func (s *QdrantStore) Collection() string {
	return s.collection
}

// ListCollections returns the names of all collections on the server.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.url+"/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist yet. Idempotent: an existing collection with the same schema is fine.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range names {
		if name == s.collection {
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	logger.Info("Created vector collection", "collection", s.collection, "dimension", s.dimension)
	return nil
}

// DeleteAllPoints removes every point in the collection. Deleting from an
// empty collection is a no-op, not an error.
func (s *QdrantStore) DeleteAllPoints(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAllLocked(ctx)
}

func (s *QdrantStore) deleteAllLocked(ctx context.Context) error {
	// An empty filter matches all points.
	body := map[string]any{
		"filter": map[string]any{},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	return s.do(ctx, http.MethodPost, url, body, nil)
}

// Upsert inserts or overwrites records by id.
func (s *QdrantStore) Upsert(ctx context.Context, records []models.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(ctx, records)
}

func (s *QdrantStore) upsertLocked(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	type point struct {
		ID      string              `json:"id"`
		Vector  []float32           `json:"vector"`
		Payload models.ChunkPayload `json:"payload"`
	}
	points := make([]point, len(records))
	for i, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("record %s has dimension %d, collection expects %d", rec.ID, len(rec.Vector), s.dimension)
		}
		points[i] = point{ID: rec.ID, Vector: rec.Vector, Payload: rec.Payload}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	return s.do(ctx, http.MethodPut, url, body, nil)
}

// ReplaceAll deletes every existing point and upserts the new batch while
// holding the write lock, so concurrent searches see either the old corpus or
// the new one, never the gap in between.
func (s *QdrantStore) ReplaceAll(ctx context.Context, records []models.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteAllLocked(ctx); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	if err := s.upsertLocked(ctx, records); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", len(records), err)
	}
	return nil
}

// Search returns up to topK nearest records by cosine similarity, best first.
// No relevance threshold is applied; filtering is the caller's concern.
// A missing collection means an empty corpus and yields zero results.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      json.RawMessage     `json:"id"`
			Score   float32             `json:"score"`
			Payload models.ChunkPayload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	err := s.do(ctx, http.MethodPost, url, body, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	hits := make([]models.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		var id string
		// Qdrant point ids may be strings or integers on the wire.
		if jerr := json.Unmarshal(r.ID, &id); jerr != nil {
			id = string(r.ID)
		}
		hits = append(hits, models.SearchHit{ID: id, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// CountPoints returns the exact number of points currently stored.
func (s *QdrantStore) CountPoints(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	err := s.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return 0, nil
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

// StatusError is a non-2xx response from Qdrant.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.Code, e.Body)
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: buf.String()}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
