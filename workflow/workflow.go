// Package workflow implements the adaptive question-answering graph:
// route a question among the statistics database, the document store,
// and web search, generate an answer, and self-correct with a bounded
// number of question rewrites.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vmreddy/crickrag/grade"
	"github.com/vmreddy/crickrag/metrics"
	"github.com/vmreddy/crickrag/statdb"
	"github.com/vmreddy/crickrag/websearch"
)

// Judge is the set of LLM decisions the controller consults. It is
// satisfied by *grade.Grader.
type Judge interface {
	IsDatabaseQuestion(ctx context.Context, question string) (bool, int, error)
	GenerateSQL(ctx context.Context, question string) (string, int, error)
	GradeRelevance(ctx context.Context, question, passage string) (bool, int, error)
	Generate(ctx context.Context, question, contextStr string) (*grade.Generation, error)
	IsGrounded(ctx context.Context, contextStr, generation string) (bool, int, error)
	AddressesQuestion(ctx context.Context, question, generation string) (bool, int, error)
	Rewrite(ctx context.Context, question string) (string, int, error)
}

// StatsExecutor runs a read-only SQL query against the statistics
// database. Satisfied by *statdb.DB.
type StatsExecutor interface {
	Query(ctx context.Context, query string) (*statdb.Result, error)
}

// Retriever fetches candidate passages from the document store.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]Document, error)
}

// Searcher performs a web search. Satisfied by *websearch.Client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Config tunes the controller.
type Config struct {
	// MaxRewrites bounds the number of question rewrites before the
	// controller accepts whatever it has as a degraded answer.
	MaxRewrites int
}

// Controller drives one question through the graph. A nil stats
// executor means the statistics database is unavailable; a nil
// searcher means web search is not configured. Both are handled as
// permanent fallbacks, never as errors.
type Controller struct {
	judge     Judge
	stats     StatsExecutor
	retriever Retriever
	searcher  Searcher
	cfg       Config
	logger    *slog.Logger
}

// New builds a Controller. judge and retriever are required.
func New(judge Judge, stats StatsExecutor, retriever Retriever, searcher Searcher, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRewrites < 0 {
		cfg.MaxRewrites = 0
	}
	return &Controller{
		judge:     judge,
		stats:     stats,
		retriever: retriever,
		searcher:  searcher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the graph for one question. It returns an error only
// when answer generation itself fails; every external-source failure
// degrades into a routing fallback instead.
func (c *Controller) Run(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	s := &State{
		Question:         question,
		OriginalQuestion: question,
		DBAvailable:      c.stats != nil,
	}
	ans := &Answer{Verdict: VerdictPending}

	c.queryDatabase(ctx, s, ans)

	for {
		if !s.hasDatabaseResult() {
			c.retrieve(ctx, s, ans)
			c.gradeDocuments(ctx, s, ans)
		}

		if len(s.Documents) == 0 {
			if !s.TriedWebSearch && c.searcher != nil {
				c.searchWeb(ctx, s)
			} else if s.Rewrites < c.cfg.MaxRewrites {
				c.rewriteQuestion(ctx, s, ans)
				continue
			} else {
				// Nothing left to try. Generate from empty
				// context and accept the result as degraded.
				if err := c.generate(ctx, s, ans); err != nil {
					metrics.RecordQuestion(string(VerdictPending), time.Since(start))
					return nil, err
				}
				c.finish(s, ans, VerdictDegraded)
				metrics.RecordQuestion(string(ans.Verdict), time.Since(start))
				return ans, nil
			}
		}

		if err := c.generate(ctx, s, ans); err != nil {
			metrics.RecordQuestion(string(VerdictPending), time.Since(start))
			return nil, err
		}

		verdict := c.evaluate(ctx, s, ans)
		if verdict == VerdictAccepted {
			c.finish(s, ans, VerdictAccepted)
			metrics.RecordQuestion(string(ans.Verdict), time.Since(start))
			return ans, nil
		}
		if s.Rewrites >= c.cfg.MaxRewrites {
			c.logger.Warn("rewrite budget exhausted, accepting degraded answer",
				"verdict", verdict, "rewrites", s.Rewrites)
			c.finish(s, ans, VerdictDegraded)
			metrics.RecordQuestion(string(ans.Verdict), time.Since(start))
			return ans, nil
		}
		c.rewriteQuestion(ctx, s, ans)
		// A rejected generation discards its supporting documents;
		// the next cycle re-retrieves for the rewritten question.
		s.Documents = nil
	}
}

// queryDatabase is the entry node: classify the question, synthesize a
// SELECT, execute it. Any refusal or failure along the way falls
// through to document retrieval.
func (c *Controller) queryDatabase(ctx context.Context, s *State, ans *Answer) {
	defer metrics.ObserveNode("query_database", time.Now())

	if !s.DBAvailable {
		c.logger.Info("statistics database unavailable, routing to retrieval")
		return
	}

	isDB, tokens, err := c.judge.IsDatabaseQuestion(ctx, s.Question)
	ans.TotalTokens += tokens
	if err != nil {
		c.logger.Warn("question classification failed, routing to retrieval", "error", err)
		return
	}
	if !isDB {
		c.logger.Info("question not answerable from statistics database")
		return
	}
	s.IsDBQuestion = true

	query, tokens, err := c.judge.GenerateSQL(ctx, s.Question)
	ans.TotalTokens += tokens
	if err != nil {
		c.logger.Warn("query synthesis failed, routing to retrieval", "error", err)
		return
	}
	if query == "" {
		c.logger.Info("query synthesis declined, routing to retrieval")
		return
	}

	metrics.RecordExternalCall("statdb")
	result, err := c.stats.Query(ctx, query)
	if err != nil {
		metrics.RecordExternalError("statdb")
		c.logger.Warn("statistics query failed, routing to retrieval",
			"query", query, "error", err)
		return
	}
	if result.RowCount == 0 {
		c.logger.Info("statistics query returned no rows, routing to retrieval", "query", query)
		return
	}

	c.logger.Info("statistics query succeeded", "query", query, "rows", result.RowCount)
	s.Documents = append(s.Documents, Document{
		Content:  statdb.FormatAnswer(s.Question, result),
		Source:   SourceDatabase,
		SQLQuery: query,
		RowCount: result.RowCount,
	})
}

// retrieve replaces the working document set with passages from the
// vector store. Retrieval failure leaves the set empty.
func (c *Controller) retrieve(ctx context.Context, s *State, ans *Answer) {
	defer metrics.ObserveNode("retrieve", time.Now())

	metrics.RecordExternalCall("vectorstore")
	docs, err := c.retriever.Retrieve(ctx, s.Question)
	if err != nil {
		metrics.RecordExternalError("vectorstore")
		c.logger.Warn("retrieval failed", "error", err)
		s.Documents = nil
		return
	}
	c.logger.Info("retrieved passages", "count", len(docs))
	s.Documents = docs
}

// gradeDocuments filters the working set down to relevant documents.
// Database results bypass grading. A failed grading call drops the
// passage rather than the question.
func (c *Controller) gradeDocuments(ctx context.Context, s *State, ans *Answer) {
	defer metrics.ObserveNode("grade_documents", time.Now())

	if len(s.Documents) == 0 {
		return
	}
	total := len(s.Documents)
	kept := s.Documents[:0]
	for _, d := range s.Documents {
		if d.Source != SourceDocument {
			kept = append(kept, d)
			continue
		}
		relevant, tokens, err := c.judge.GradeRelevance(ctx, s.Question, d.Content)
		ans.TotalTokens += tokens
		if err != nil {
			c.logger.Warn("relevance grading failed, dropping passage",
				"filename", d.Filename, "error", err)
			continue
		}
		if relevant {
			kept = append(kept, d)
		}
	}
	c.logger.Info("graded documents", "kept", len(kept), "total", total)
	s.Documents = kept
}

// searchWeb runs a one-shot web search. The attempted flag is set even
// on failure so the graph never searches twice for one question.
func (c *Controller) searchWeb(ctx context.Context, s *State) {
	defer metrics.ObserveNode("web_search", time.Now())

	s.TriedWebSearch = true
	metrics.RecordExternalCall("websearch")
	results, err := c.searcher.Search(ctx, s.Question)
	if err != nil {
		metrics.RecordExternalError("websearch")
		c.logger.Warn("web search failed", "error", err)
		s.Documents = append(s.Documents, Document{
			Content: fmt.Sprintf("Web search was attempted but failed: %v", err),
			Source:  SourceWeb,
		})
		return
	}
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	c.logger.Info("web search succeeded", "results", len(results))
	s.Documents = append(s.Documents, Document{
		Content: websearch.FormatAsContext(results),
		Source:  SourceWeb,
		URLs:    urls,
	})
}

// generate produces an answer from the working document set.
func (c *Controller) generate(ctx context.Context, s *State, ans *Answer) error {
	defer metrics.ObserveNode("generate", time.Now())

	contextStr := buildContext(s.Documents)
	gen, err := c.judge.Generate(ctx, s.Question, contextStr)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}
	s.Generation = gen.Text
	ans.ModelUsed = gen.Model
	ans.PromptTokens += gen.PromptTokens
	ans.CompletionTokens += gen.CompletionTokens
	ans.TotalTokens += gen.TotalTokens
	c.logger.Info("generated answer", "model", gen.Model, "tokens", gen.TotalTokens)
	return nil
}

// evaluate grades the generation for groundedness and relevance. A
// grader failure counts as a pass so that a flaky grader cannot sink
// an otherwise usable answer.
func (c *Controller) evaluate(ctx context.Context, s *State, ans *Answer) Verdict {
	defer metrics.ObserveNode("evaluate", time.Now())

	contextStr := buildContext(s.Documents)
	grounded, tokens, err := c.judge.IsGrounded(ctx, contextStr, s.Generation)
	ans.TotalTokens += tokens
	if err != nil {
		c.logger.Warn("groundedness grading failed, accepting generation", "error", err)
		grounded = true
	}
	if !grounded {
		c.logger.Info("generation not grounded in documents")
		return VerdictRejectedHallucination
	}

	addresses, tokens, err := c.judge.AddressesQuestion(ctx, s.Question, s.Generation)
	ans.TotalTokens += tokens
	if err != nil {
		c.logger.Warn("answer grading failed, accepting generation", "error", err)
		addresses = true
	}
	if !addresses {
		c.logger.Info("generation does not address the question")
		return VerdictRejectedIrrelevant
	}
	return VerdictAccepted
}

// rewriteQuestion rephrases the working question for the next cycle.
// The rewrite counter increments even when the rewrite itself fails,
// so the budget always shrinks.
func (c *Controller) rewriteQuestion(ctx context.Context, s *State, ans *Answer) {
	defer metrics.ObserveNode("rewrite", time.Now())

	s.Rewrites++
	rewritten, tokens, err := c.judge.Rewrite(ctx, s.Question)
	ans.TotalTokens += tokens
	if err != nil {
		c.logger.Warn("question rewrite failed, keeping question", "error", err)
		return
	}
	c.logger.Info("rewrote question", "rewrite", s.Rewrites,
		"from", s.Question, "to", rewritten)
	s.Question = rewritten
}

// finish copies terminal state into the answer.
func (c *Controller) finish(s *State, ans *Answer, verdict Verdict) {
	ans.Text = s.Generation
	ans.Verdict = verdict
	ans.Degraded = verdict == VerdictDegraded
	ans.Rewrites = s.Rewrites
	ans.Question = s.Question
	ans.Sources = s.Documents
}

// buildContext joins document contents into the generation context.
func buildContext(docs []Document) string {
	if len(docs) == 0 {
		return "(no supporting context was found)"
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}
