package models

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// SourceAttribution is the per-chunk provenance returned with an answer.
type SourceAttribution struct {
	File      string  `json:"file"`
	Page      int     `json:"page"`
	ChunkID   string  `json:"chunk_id"`
	Relevance float64 `json:"relevance"` // percentage, one decimal
}

// SourcesBlock groups everything the answer was grounded on.
type SourcesBlock struct {
	ChunksUsed int                 `json:"chunks_used"`
	Details    []SourceAttribution `json:"details"`
	Files      []string            `json:"files"`     // deduplicated, ranked order of first appearance
	Citations  []string            `json:"citations"` // human-readable "file (Page N)"
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  SourcesBlock `json:"sources"`
}

// IngestResponse is the body of a successful POST /ingest.
type IngestResponse struct {
	Message string       `json:"message"`
	Result  IngestResult `json:"result"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Collection string        `json:"collection"`
	Points     int           `json:"points"`
	LastIngest *IngestResult `json:"last_ingest,omitempty"`
}
