// Package crickrag is an adaptive question-answering engine for
// cricket data. It routes each question among a relational statistics
// database, a local document store, and web search, generates an
// answer with an LLM, and self-corrects with a bounded number of
// question rewrites.
package crickrag

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmreddy/crickrag/cache"
	"github.com/vmreddy/crickrag/grade"
	"github.com/vmreddy/crickrag/ingest"
	"github.com/vmreddy/crickrag/llm"
	"github.com/vmreddy/crickrag/metrics"
	"github.com/vmreddy/crickrag/statdb"
	"github.com/vmreddy/crickrag/vectorstore"
	"github.com/vmreddy/crickrag/websearch"
	"github.com/vmreddy/crickrag/workflow"
)

// askTimeout bounds one full workflow run including every rewrite cycle.
const askTimeout = 2 * time.Minute

// Engine wires the stores, the LLM providers, and the workflow
// controller into one question-answering service.
type Engine struct {
	cfg        Config
	store      *vectorstore.Store
	stats      *statdb.DB // nil when the statistics database is unreachable
	chat       llm.Provider
	embedder   llm.Provider
	grader     *grade.Grader
	searcher   *websearch.Client // nil when no search API key is configured
	answers    *cache.Cache      // nil when Redis is not configured
	controller *workflow.Controller
	splitter   *ingest.Splitter
	logger     *slog.Logger
}

// New builds an Engine from cfg. The statistics database and the
// answer cache are optional at startup: their connection failures are
// logged and degrade the engine rather than failing construction. The
// vector store and the LLM providers are required.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Chat.Provider == "" || cfg.Embedding.Provider == "" {
		return nil, fmt.Errorf("%w: chat and embedding providers are required", ErrInvalidConfig)
	}

	chat, err := llm.NewProvider(llm.Config(cfg.Chat))
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}
	embedder, err := llm.NewProvider(llm.Config(cfg.Embedding))
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	var grading llm.Provider
	if cfg.Grading.Provider != "" {
		grading, err = llm.NewProvider(llm.Config(cfg.Grading))
		if err != nil {
			return nil, fmt.Errorf("grading provider: %w", err)
		}
	}

	store, err := vectorstore.New(cfg.resolveVectorDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	var stats *statdb.DB
	stats, err = statdb.Open(ctx, statdb.Config(cfg.StatsDB))
	if err != nil {
		logger.Warn("statistics database unreachable, continuing without it",
			"host", cfg.StatsDB.Host, "error", err)
		stats = nil
	}

	var searcher *websearch.Client
	if cfg.Search.APIKey != "" {
		searcher = websearch.New(websearch.Config{
			APIKey:     cfg.Search.APIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    time.Duration(cfg.Search.TimeoutSec) * time.Second,
		})
	} else {
		logger.Info("web search not configured, fallback disabled")
	}

	var answers *cache.Cache
	if cfg.RedisAddr != "" {
		answers, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			logger.Warn("answer cache unreachable, continuing without it",
				"addr", cfg.RedisAddr, "error", err)
			answers = nil
		}
	}

	grader := grade.New(chat, grading, statdb.Schema)
	retriever := &storeRetriever{store: store, embedder: embedder, k: cfg.MaxResults}

	var stExec workflow.StatsExecutor
	if stats != nil {
		stExec = &statsExecutor{db: stats}
	}
	var search workflow.Searcher
	if searcher != nil {
		search = &searchClient{client: searcher}
	}

	controller := workflow.New(grader, stExec, retriever, search,
		workflow.Config{MaxRewrites: cfg.MaxRewrites}, logger)

	return &Engine{
		cfg:        cfg,
		store:      store,
		stats:      stats,
		chat:       chat,
		embedder:   embedder,
		grader:     grader,
		searcher:   searcher,
		answers:    answers,
		controller: controller,
		splitter:   ingest.NewSplitter(cfg.MaxChunkTokens, cfg.ChunkOverlap),
		logger:     logger,
	}, nil
}

// Ask answers a question through the full workflow. Accepted answers
// are served from and written to the cache when one is configured.
func (e *Engine) Ask(ctx context.Context, question string) (*workflow.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question must not be empty")
	}

	if cached := e.answers.Get(ctx, question); cached != nil {
		e.logger.Info("answer served from cache", "question", question)
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	ans, err := e.controller.Run(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}

	e.answers.Put(ctx, question, ans)
	e.logAnswer(ctx, question, ans)
	return ans, nil
}

// logAnswer records the exchange in the audit table, best effort.
func (e *Engine) logAnswer(ctx context.Context, question string, ans *workflow.Answer) {
	err := e.store.LogQuestion(ctx, vectorstore.QuestionLog{
		Question:    question,
		Answer:      ans.Text,
		Verdict:     string(ans.Verdict),
		Degraded:    ans.Degraded,
		Rewrites:    ans.Rewrites,
		Sources:     ans.Sources,
		TotalTokens: ans.TotalTokens,
	})
	if err != nil {
		e.logger.Warn("failed to log question", "error", err)
	}
}

// IngestResult summarises one document ingestion.
type IngestResult struct {
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
}

// IngestPDF extracts, chunks, embeds, and stores one PDF. Re-ingesting
// a path replaces its previous chunks.
func (e *Engine) IngestPDF(ctx context.Context, path string) (*IngestResult, error) {
	text, err := ingest.ExtractPDF(path)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(text))
	docID, err := e.store.UpsertDocument(ctx, vectorstore.Document{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentHash: hex.EncodeToString(sum[:]),
		Status:      "processing",
	})
	if err != nil {
		return nil, fmt.Errorf("registering document: %w", err)
	}
	if err := e.store.DeleteDocumentData(ctx, docID); err != nil {
		return nil, fmt.Errorf("clearing previous chunks: %w", err)
	}

	passages := e.splitter.Split(text)
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: no text extracted from %s", ErrUnsupportedFormat, path)
	}

	chunks := make([]vectorstore.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = vectorstore.Chunk{
			DocumentID:    docID,
			Content:       p,
			PositionInDoc: i,
			TokenCount:    ingest.EstimateTokens(p),
		}
	}
	chunkIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}

	metrics.RecordExternalCall("llm_embed")
	embeddings, err := e.embedder.Embed(ctx, passages)
	if err != nil {
		metrics.RecordExternalError("llm_embed")
		e.store.UpdateDocumentStatus(ctx, docID, "failed")
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	for i, emb := range embeddings {
		if err := e.store.InsertEmbedding(ctx, chunkIDs[i], emb); err != nil {
			e.store.UpdateDocumentStatus(ctx, docID, "failed")
			return nil, fmt.Errorf("storing embedding: %w", err)
		}
	}

	if err := e.store.UpdateDocumentStatus(ctx, docID, "ready"); err != nil {
		return nil, err
	}
	e.logger.Info("ingested document", "path", path, "chunks", len(passages))
	return &IngestResult{DocumentID: docID, Filename: filepath.Base(path), Chunks: len(passages)}, nil
}

// ListDocuments returns every registered document.
func (e *Engine) ListDocuments(ctx context.Context) ([]vectorstore.Document, error) {
	return e.store.ListDocuments(ctx)
}

// DeleteDocument removes a document and its chunks and embeddings.
func (e *Engine) DeleteDocument(ctx context.Context, id int64) error {
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
		}
		return err
	}
	return nil
}

// LoadStats bulk-loads a deliveries file (CSV or XLSX) into the
// statistics database, replacing the existing table.
func (e *Engine) LoadStats(ctx context.Context, path string) (int, error) {
	if e.stats == nil {
		return 0, ErrStatsDBUnavailable
	}
	return e.stats.LoadFile(ctx, path)
}

// StatsAvailable reports whether the statistics database was reachable
// at startup.
func (e *Engine) StatsAvailable() bool { return e.stats != nil }

// Close releases every held connection.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.answers.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.stats != nil {
		if err := e.stats.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// statsExecutor tags statistics query failures with ErrQueryFailed so
// callers can match on the taxonomy.
type statsExecutor struct {
	db workflow.StatsExecutor
}

func (s *statsExecutor) Query(ctx context.Context, query string) (*statdb.Result, error) {
	result, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return result, nil
}

// searchClient tags web search failures with ErrSearchFailed.
type searchClient struct {
	client workflow.Searcher
}

func (s *searchClient) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	results, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	return results, nil
}

// storeRetriever adapts the vector store plus the embedding provider
// to the workflow's Retriever.
type storeRetriever struct {
	store    *vectorstore.Store
	embedder llm.Provider
	k        int
}

func (r *storeRetriever) Retrieve(ctx context.Context, question string) ([]workflow.Document, error) {
	metrics.RecordExternalCall("llm_embed")
	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		metrics.RecordExternalError("llm_embed")
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	k := r.k
	if k <= 0 {
		k = 4
	}
	passages, err := r.store.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, err
	}
	docs := make([]workflow.Document, len(passages))
	for i, p := range passages {
		docs[i] = workflow.Document{
			Content:  p.Content,
			Source:   workflow.SourceDocument,
			Filename: p.Filename,
			Score:    p.Score,
		}
	}
	return docs, nil
}
