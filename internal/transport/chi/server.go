package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
	"github.com/kailas-cloud/semwalk/internal/logger"
	chatuc "github.com/kailas-cloud/semwalk/internal/usecase/chat"
	corpusuc "github.com/kailas-cloud/semwalk/internal/usecase/corpus"
	healthuc "github.com/kailas-cloud/semwalk/internal/usecase/health"
	walkuc "github.com/kailas-cloud/semwalk/internal/usecase/walk"
)

const (
	maxBatchSize    = 100
	maxIngestSize   = 1000
	maxRequestBytes = 16 << 20
	defaultPageSize = 100
)

// errorMapping maps a sentinel error to an HTTP status and error code.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// Server serves the HTTP API.
type Server struct {
	walks      *walkuc.Service
	corpora    *corpusuc.Service
	chat       *chatuc.Service
	health     *healthuc.Service
	defaults   domwalk.Defaults
	logger     *zap.Logger
	errorTable []errorMapping
}

// NewServer creates an HTTP API server. chat may be nil, in which case the
// chat endpoints answer 501.
func NewServer(
	walks *walkuc.Service,
	corpora *corpusuc.Service,
	chat *chatuc.Service,
	health *healthuc.Service,
	defaults domwalk.Defaults,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		walks:    walks,
		corpora:  corpora,
		chat:     chat,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	// Order matters: provider errors also match ErrProviderUnavailable.
	s.errorTable = []errorMapping{
		{domain.ErrInvalidWalk, http.StatusBadRequest, ErrorCodeValidationFailed},
		{domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed},
		{domain.ErrDimensionMismatch, http.StatusBadRequest, ErrorCodeDimensionMismatch},
		{domain.ErrCorpusNotFound, http.StatusNotFound, ErrorCodeCorpusNotFound},
		{domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict, ErrorCodeAlreadyExists},
		{domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited},
		{domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider},
		{domain.ErrChatProviderError, http.StatusBadGateway, ErrorCodeChatProvider},
		{domain.ErrProviderUnavailable, http.StatusServiceUnavailable, ErrorCodeProviderUnavailable},
		{domain.ErrNotImplemented, http.StatusNotImplemented, ErrorCodeNotImplemented},
	}
	return s
}

// Walk handles POST /corpora/{corpus}/walk.
func (s *Server) Walk(w http.ResponseWriter, r *http.Request) {
	corpus := chirouter.URLParam(r, "corpus")

	var req WalkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params, err := s.walkParams(corpus, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	res, err := s.walks.Walk(r.Context(), params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := walkToResponse(corpus, res, req.IncludeVectors)
	if req.Summarize {
		summary, err := s.walks.Summarize(r.Context(), res, req.Instruction)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		resp.Summary = &summary
	}

	writeJSON(w, http.StatusOK, resp)
}

// Search handles POST /corpora/{corpus}/search: one top-K lookup.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	corpus := chirouter.URLParam(r, "corpus")

	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var q domain.Query
	switch {
	case req.Query != nil && req.Vector != nil:
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "exactly one of query and vector must be set")
		return
	case req.Query != nil:
		q = domain.TextQuery{Text: *req.Query}
	case req.Vector != nil:
		q = domain.VectorQuery{Vector: domain.Embedding(req.Vector)}
	default:
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "query or vector is required")
		return
	}
	topK := s.defaults.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	resp, err := s.walks.Search(r.Context(), corpus, q, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits := make([]HitResponse, len(resp.Hits))
	for i, h := range resp.Hits {
		hits[i] = HitResponse{Text: h.Document.Text, Score: h.Score}
		if req.IncludeVectors {
			hits[i].Vector = h.Document.Embedding
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Corpus: corpus, Hits: hits})
}

// BatchWalk handles POST /walks. Walks run concurrently; each item reports
// its own result or error.
func (s *Server) BatchWalk(w http.ResponseWriter, r *http.Request) {
	var req BatchWalkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Walks) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "walks must not be empty")
		return
	}
	if len(req.Walks) > maxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("at most %d walks per batch", maxBatchSize))
		return
	}

	items := make([]BatchWalkResult, len(req.Walks))
	params := make([]domwalk.Params, 0, len(req.Walks))
	slots := make([]int, 0, len(req.Walks))
	for i := range req.Walks {
		p, err := s.walkParams(req.Walks[i].Corpus, &req.Walks[i].WalkRequest)
		if err != nil {
			items[i].Error = &ErrorResponse{Code: ErrorCodeValidationFailed, Message: err.Error()}
			continue
		}
		params = append(params, p)
		slots = append(slots, i)
	}

	outcomes, err := s.walks.WalkAll(r.Context(), params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	for j, o := range outcomes {
		i := slots[j]
		item := req.Walks[i]
		if o.Err != nil {
			_, code := s.classify(o.Err)
			items[i].Error = &ErrorResponse{Code: code, Message: safeDomainMessage(o.Err)}
			continue
		}
		wr := walkToResponse(item.Corpus, o.Result, item.IncludeVectors)
		if item.Summarize {
			summary, err := s.walks.Summarize(r.Context(), o.Result, item.Instruction)
			if err != nil {
				_, code := s.classify(err)
				items[i].Error = &ErrorResponse{Code: code, Message: safeDomainMessage(err)}
				continue
			}
			wr.Summary = &summary
		}
		items[i].Walk = &wr
	}

	resp := BatchWalkResponse{Items: items}
	for _, it := range items {
		if it.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCorpora handles GET /corpora.
func (s *Server) ListCorpora(w http.ResponseWriter, r *http.Request) {
	names, err := s.corpora.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]CorpusResponse, len(names))
	for i, n := range names {
		items[i] = CorpusResponse{Name: n}
	}
	writeJSON(w, http.StatusOK, CorpusListResponse{Items: items})
}

// CreateCorpus handles POST /corpora.
func (s *Server) CreateCorpus(w http.ResponseWriter, r *http.Request) {
	var req CreateCorpusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "Corpus name is required")
		return
	}

	if err := s.corpora.Create(r.Context(), req.Name, req.Dimensions); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/corpora/"+req.Name)
	zero := 0
	writeJSON(w, http.StatusCreated, CorpusResponse{Name: req.Name, DocumentCount: &zero})
}

// GetCorpus handles GET /corpora/{corpus}.
func (s *Server) GetCorpus(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "corpus")

	info, err := s.corpora.Info(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := CorpusResponse{Name: name, DocumentCount: &info.Count}
	if info.Dimension > 0 {
		resp.Dimensions = &info.Dimension
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDocuments handles GET /corpora/{corpus}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "corpus")
	query := r.URL.Query()

	var (
		offset, limit  *int
		includeVectors *bool
	)
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter offset")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter limit")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "include_vectors", query, &includeVectors); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter include_vectors")
		return
	}
	off, lim := 0, defaultPageSize
	if offset != nil {
		off = *offset
	}
	if limit != nil {
		lim = *limit
	}

	docs, err := s.corpora.Documents(r.Context(), name, off, lim)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		items[i] = DocumentResponse{ID: d.ID, Text: d.Text}
		if includeVectors != nil && *includeVectors {
			items[i].Vector = d.Embedding
		}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, Offset: off, Limit: lim})
}

// DeleteCorpus handles DELETE /corpora/{corpus}.
func (s *Server) DeleteCorpus(w http.ResponseWriter, r *http.Request) {
	if err := s.corpora.Drop(r.Context(), chirouter.URLParam(r, "corpus")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDocuments handles POST /corpora/{corpus}/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "corpus")

	var req AddDocumentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "texts must not be empty")
		return
	}
	if len(req.Texts) > maxIngestSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("at most %d texts per request", maxIngestSize))
		return
	}

	res, err := s.corpora.Ingest(r.Context(), name, req.Texts)
	if err != nil {
		if res.Added > 0 {
			logger.FromContext(r.Context(), s.logger).Warn("Partial ingest",
				zap.String("corpus", name),
				zap.Int("added", res.Added),
				zap.Error(err),
			)
		}
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(res.TotalTokens))
	writeJSON(w, http.StatusCreated, AddDocumentsResponse{Added: res.Added, FirstID: res.FirstID})
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "chat is not configured")
		return
	}

	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := s.chat.Complete(r.Context(), chatuc.Request{
		ConversationID: req.ConversationID,
		System:         req.System,
		Prompt:         req.Prompt,
		Temperature:    req.Temperature,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: reply.ConversationID,
		ResponseID:     reply.ResponseID,
		Content:        reply.Content,
		Usage: ChatUsage{
			PromptTokens:     reply.PromptTokens,
			CompletionTokens: reply.CompletionTokens,
		},
	})
}

// ListMessages handles GET /conversations/{id}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "chat is not configured")
		return
	}
	id := chirouter.URLParam(r, "id")

	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter limit")
		return
	}
	n := -1
	if limit != nil {
		if *limit < 1 {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be positive")
			return
		}
		n = *limit
	}

	msgs, err := s.chat.Messages(r.Context(), id, n)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		items[i] = MessageResponse{Role: string(m.Role), Content: m.Content}
	}
	writeJSON(w, http.StatusOK, MessageListResponse{ConversationID: id, Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// walkParams converts a request body into walk parameters, filling unset
// fields from the server defaults.
func (s *Server) walkParams(corpus string, req *WalkRequest) (domwalk.Params, error) {
	p := domwalk.Params{Corpus: corpus}

	switch {
	case req.Query != nil && req.Vector != nil:
		return p, errors.New("exactly one of query and vector must be set")
	case req.Query != nil:
		p.Query = domain.TextQuery{Text: *req.Query}
	case req.Vector != nil:
		p.Query = domain.VectorQuery{Vector: domain.Embedding(req.Vector)}
	default:
		return p, errors.New("query or vector is required")
	}

	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.MaxDepth != nil {
		p.MaxDepth = *req.MaxDepth
	}
	if req.ScoreThreshold != nil {
		p.Threshold = *req.ScoreThreshold
	}
	if req.ScoreMode != nil {
		m := domwalk.Mode(*req.ScoreMode)
		if !m.IsValid() {
			return p, fmt.Errorf("score_mode must be %q or %q", domwalk.RelativeToAnchor, domwalk.RelativeToPrevious)
		}
		p.Mode = m
	}

	p = s.defaults.Apply(p, req.ScoreThreshold != nil)
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func walkToResponse(corpus string, res domwalk.Result, includeVectors bool) WalkResponse {
	steps := make([]StepResponse, len(res.Trace))
	for i, st := range res.Trace {
		steps[i] = StepResponse{Text: st.Document.Text, Score: st.Score}
		if includeVectors {
			steps[i].Vector = st.Document.Embedding
		}
	}
	return WalkResponse{Corpus: corpus, Halt: string(res.Halt), Steps: steps}
}

// decodeBody decodes a JSON body and answers 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidWalk,
		domain.ErrInvalidInput,
		domain.ErrDimensionMismatch,
		domain.ErrCorpusNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrChatProviderError,
		domain.ErrProviderUnavailable,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			// Validation messages carry the offending field and are safe to return.
			if s == domain.ErrInvalidWalk || s == domain.ErrInvalidInput {
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// classify maps an error to its status and code via the error table.
func (s *Server) classify(err error) (int, ErrorCode) {
	for _, m := range s.errorTable {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrorCodeInternal
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := s.classify(err)
	if code == ErrorCodeInternal {
		logger.FromContext(r.Context(), s.logger).Error("unhandled domain error", zap.Error(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, safeDomainMessage(err))
}
