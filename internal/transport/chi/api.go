package chi

// ErrorCode is a machine-readable error identifier in API responses.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeDimensionMismatch   ErrorCode = "dimension_mismatch"
	ErrorCodeCorpusNotFound      ErrorCode = "corpus_not_found"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeAlreadyExists       ErrorCode = "already_exists"
	ErrorCodeRateLimited         ErrorCode = "rate_limited"
	ErrorCodeEmbeddingProvider   ErrorCode = "embedding_provider_error"
	ErrorCodeChatProvider        ErrorCode = "chat_provider_error"
	ErrorCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrorCodeNotImplemented      ErrorCode = "not_implemented"
	ErrorCodeInternal            ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// WalkRequest is the body of POST /corpora/{corpus}/walk. Exactly one of
// Query and Vector must be set; unset numeric fields take server defaults.
type WalkRequest struct {
	Query          *string   `json:"query,omitempty"`
	Vector         []float32 `json:"vector,omitempty"`
	TopK           *int      `json:"top_k,omitempty"`
	MaxDepth       *int      `json:"max_depth,omitempty"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
	ScoreMode      *string   `json:"score_mode,omitempty"`
	IncludeVectors bool      `json:"include_vectors,omitempty"`
	Summarize      bool      `json:"summarize,omitempty"`
	Instruction    string    `json:"instruction,omitempty"`
}

// SearchRequest is the body of POST /corpora/{corpus}/search. Exactly one
// of Query and Vector must be set.
type SearchRequest struct {
	Query          *string   `json:"query,omitempty"`
	Vector         []float32 `json:"vector,omitempty"`
	TopK           *int      `json:"top_k,omitempty"`
	IncludeVectors bool      `json:"include_vectors,omitempty"`
}

// HitResponse is one search result.
type HitResponse struct {
	Text   string    `json:"text"`
	Score  float64   `json:"score"`
	Vector []float32 `json:"vector,omitempty"`
}

// SearchResponse lists hits by descending score.
type SearchResponse struct {
	Corpus string        `json:"corpus"`
	Hits   []HitResponse `json:"hits"`
}

// BatchWalkItem is one walk of POST /walks.
type BatchWalkItem struct {
	Corpus string `json:"corpus"`
	WalkRequest
}

// BatchWalkRequest is the body of POST /walks.
type BatchWalkRequest struct {
	Walks []BatchWalkItem `json:"walks"`
}

// StepResponse is one document of a walk trace.
type StepResponse struct {
	Text   string    `json:"text"`
	Score  float64   `json:"score"`
	Vector []float32 `json:"vector,omitempty"`
}

// WalkResponse is a completed walk.
type WalkResponse struct {
	Corpus  string         `json:"corpus"`
	Halt    string         `json:"halt"`
	Steps   []StepResponse `json:"steps"`
	Summary *string        `json:"summary,omitempty"`
}

// BatchWalkResult is one outcome of POST /walks: either Walk or Error is set.
type BatchWalkResult struct {
	Walk  *WalkResponse  `json:"walk,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// BatchWalkResponse keeps the order of the request's walks.
type BatchWalkResponse struct {
	Items     []BatchWalkResult `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// CreateCorpusRequest is the body of POST /corpora.
type CreateCorpusRequest struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// CorpusResponse describes one corpus. Counts and dimension are only set
// where the endpoint looks them up.
type CorpusResponse struct {
	Name          string `json:"name"`
	Dimensions    *int   `json:"dimensions,omitempty"`
	DocumentCount *int   `json:"document_count,omitempty"`
}

// CorpusListResponse is the body of GET /corpora.
type CorpusListResponse struct {
	Items []CorpusResponse `json:"items"`
}

// DocumentResponse is one stored document.
type DocumentResponse struct {
	ID     int64     `json:"id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
}

// DocumentListResponse is the body of GET /corpora/{corpus}/documents.
type DocumentListResponse struct {
	Items  []DocumentResponse `json:"items"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// AddDocumentsRequest is the body of POST /corpora/{corpus}/documents.
type AddDocumentsRequest struct {
	Texts []string `json:"texts"`
}

// AddDocumentsResponse reports an ingest.
type AddDocumentsResponse struct {
	Added   int   `json:"added"`
	FirstID int64 `json:"first_id"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	System         string   `json:"system,omitempty"`
	Prompt         string   `json:"prompt"`
	Temperature    *float32 `json:"temperature,omitempty"`
}

// ChatUsage reports token counts of one completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	ConversationID string    `json:"conversation_id"`
	ResponseID     string    `json:"response_id"`
	Content        string    `json:"content"`
	Usage          ChatUsage `json:"usage"`
}

// MessageResponse is one stored chat message.
type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageListResponse is the body of GET /conversations/{id}/messages.
type MessageListResponse struct {
	ConversationID string            `json:"conversation_id"`
	Items          []MessageResponse `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
