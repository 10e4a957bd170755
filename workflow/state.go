package workflow

// Source tags a retrieval result with its provenance.
type Source string

const (
	// SourceDatabase marks rows from the statistics database.
	SourceDatabase Source = "stats_database"
	// SourceDocument marks a passage from the vector store.
	SourceDocument Source = "document"
	// SourceWeb marks web search snippets.
	SourceWeb Source = "web_search"
)

// Document is one retrieval result: structured rows, a document passage,
// or web snippets, distinguished by Source.
type Document struct {
	Content  string   `json:"content"`
	Source   Source   `json:"source"`
	Filename string   `json:"filename,omitempty"`  // document provenance
	Score    float64  `json:"score,omitempty"`     // document provenance
	SQLQuery string   `json:"sql_query,omitempty"` // database provenance
	RowCount int      `json:"row_count,omitempty"` // database provenance
	URLs     []string `json:"urls,omitempty"`      // web provenance
}

// Verdict is the evaluation outcome attached to an answer.
type Verdict string

const (
	VerdictPending               Verdict = "pending"
	VerdictAccepted              Verdict = "accepted"
	VerdictDegraded              Verdict = "accepted_degraded"
	VerdictRejectedHallucination Verdict = "rejected_hallucination"
	VerdictRejectedIrrelevant    Verdict = "rejected_irrelevant"
)

// State is the mutable record threading through the graph for one
// invocation. The attempted-source flags only ever flip from false to
// true; the rewrite counter only increments.
type State struct {
	Question         string
	OriginalQuestion string
	Documents        []Document
	IsDBQuestion     bool
	DBAvailable      bool
	TriedWebSearch   bool
	Rewrites         int
	Generation       string
}

// hasDatabaseResult reports whether a database-sourced document is present.
func (s *State) hasDatabaseResult() bool {
	for _, d := range s.Documents {
		if d.Source == SourceDatabase {
			return true
		}
	}
	return false
}

// Answer is the terminal result of a workflow invocation.
type Answer struct {
	Text             string     `json:"text"`
	Verdict          Verdict    `json:"verdict"`
	Degraded         bool       `json:"degraded"`
	Rewrites         int        `json:"rewrites"`
	Question         string     `json:"question"` // question the answer was generated for
	Sources          []Document `json:"sources"`
	ModelUsed        string     `json:"model_used,omitempty"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
}

// WebSearchUsed reports whether any source came from web search.
func (a *Answer) WebSearchUsed() bool {
	for _, d := range a.Sources {
		if d.Source == SourceWeb {
			return true
		}
	}
	return false
}
