// Package grade implements the workflow's LLM-backed judgment calls: the
// database-question classifier, the SQL synthesizer, the relevance and
// answer graders, the answer generator, and the question rewriter. Each is
// a single prompt call returning a short label or a rewritten string.
package grade

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmreddy/crickrag/llm"
)

// Grader bundles the prompt-call capabilities. The grading provider (a
// fast, cheap model) backs the yes/no calls; the chat provider backs
// generation, SQL synthesis, and rewriting.
type Grader struct {
	chat    llm.Provider
	grading llm.Provider
	schema  string
}

// New creates a Grader. If grading is nil, chat is used for every call.
func New(chat, grading llm.Provider, schema string) *Grader {
	if grading == nil {
		grading = chat
	}
	return &Grader{chat: chat, grading: grading, schema: schema}
}

// Generation is a generated answer with usage accounting.
type Generation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// IsDatabaseQuestion reports whether the question can be answered from the
// statistics database schema.
func (g *Grader) IsDatabaseQuestion(ctx context.Context, question string) (bool, int, error) {
	resp, err := g.grading.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(classifierPrompt, g.schema)},
			{Role: "user", Content: question},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, 0, fmt.Errorf("classifying question: %w", err)
	}
	return parseYesNo(resp.Content), resp.TotalTokens, nil
}

// GenerateSQL synthesizes a SELECT statement for the question. It returns
// "" when the model declines ('None') or produces anything that is not a
// SELECT.
func (g *Grader) GenerateSQL(ctx context.Context, question string) (string, int, error) {
	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(sqlSynthesizerPrompt, g.schema)},
			{Role: "user", Content: question},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", 0, fmt.Errorf("synthesizing query: %w", err)
	}

	query := strings.TrimSpace(resp.Content)
	query = strings.TrimPrefix(query, "```sql")
	query = strings.TrimPrefix(query, "```")
	query = strings.TrimSuffix(query, "```")
	query = strings.TrimSpace(query)

	if strings.EqualFold(query, "none") || !strings.HasPrefix(strings.ToLower(query), "select") {
		return "", resp.TotalTokens, nil
	}
	return query, resp.TotalTokens, nil
}

// GradeRelevance reports whether a retrieved passage is relevant to the
// question.
func (g *Grader) GradeRelevance(ctx context.Context, question, passage string) (bool, int, error) {
	resp, err := g.grading.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: relevancePrompt},
			{Role: "user", Content: fmt.Sprintf("Retrieved document:\n%s\n\nUser question: %s", passage, question)},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, 0, fmt.Errorf("grading relevance: %w", err)
	}
	return parseYesNo(resp.Content), resp.TotalTokens, nil
}

// Generate produces the final answer from the question and its context.
func (g *Grader) Generate(ctx context.Context, question, contextStr string) (*Generation, error) {
	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: generatorPrompt},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextStr, question)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	return &Generation{
		Text:             strings.TrimSpace(resp.Content),
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}, nil
}

// IsGrounded reports whether a generation is supported by its context.
func (g *Grader) IsGrounded(ctx context.Context, contextStr, generation string) (bool, int, error) {
	resp, err := g.grading.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: hallucinationPrompt},
			{Role: "user", Content: fmt.Sprintf("Facts:\n%s\n\nAnswer: %s", contextStr, generation)},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, 0, fmt.Errorf("grading groundedness: %w", err)
	}
	return parseYesNo(resp.Content), resp.TotalTokens, nil
}

// AddressesQuestion reports whether a generation answers the question.
func (g *Grader) AddressesQuestion(ctx context.Context, question, generation string) (bool, int, error) {
	resp, err := g.grading.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: answerPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\n\nAnswer: %s", question, generation)},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, 0, fmt.Errorf("grading answer: %w", err)
	}
	return parseYesNo(resp.Content), resp.TotalTokens, nil
}

// Rewrite reformulates the question for a better retrieval pass. On any
// failure or an empty rewrite it returns the original question unchanged.
func (g *Grader) Rewrite(ctx context.Context, question string) (string, int, error) {
	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: rewriterPrompt},
			{Role: "user", Content: question},
		},
		Temperature: 0,
	})
	if err != nil {
		return question, 0, fmt.Errorf("rewriting question: %w", err)
	}
	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Content), `"`))
	if rewritten == "" {
		return question, resp.TotalTokens, nil
	}
	return rewritten, resp.TotalTokens, nil
}

// parseYesNo interprets a short grader response. Anything whose first
// word is not "yes" counts as no.
func parseYesNo(content string) bool {
	c := strings.ToLower(strings.TrimSpace(content))
	fields := strings.Fields(c)
	if len(fields) == 0 {
		return false
	}
	return strings.Trim(fields[0], `"'.,!`) == "yes"
}
