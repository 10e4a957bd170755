package ingest

import "strings"

// Splitter breaks extracted text into overlapping passages sized for the
// embedding model.
type Splitter struct {
	maxTokens int
	overlap   int
}

// NewSplitter returns a Splitter with the given limits. Zero values fall
// back to 250-token passages with a 50-token overlap.
func NewSplitter(maxTokens, overlap int) *Splitter {
	if maxTokens <= 0 {
		maxTokens = 250
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = maxTokens / 5
	}
	return &Splitter{maxTokens: maxTokens, overlap: overlap}
}

// Split returns the passages of text in document order. Passage boundaries
// prefer paragraph breaks, falling back to a sliding word window for
// paragraphs that exceed the token budget on their own.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var passages []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			passages = append(passages, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if EstimateTokens(para) > s.maxTokens {
			flush()
			passages = append(passages, s.splitByWords(para)...)
			continue
		}

		if EstimateTokens(current.String())+EstimateTokens(para) > s.maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return passages
}

// splitByWords slides a word window over oversized text, carrying the
// configured token overlap between consecutive passages.
func (s *Splitter) splitByWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	// Roughly 0.75 words per token keeps the estimate conservative.
	wordsPerChunk := s.maxTokens * 3 / 4
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	overlapWords := s.overlap * 3 / 4

	var passages []string
	for start := 0; start < len(words); {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		passages = append(passages, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = end - overlapWords
		if start < 0 {
			start = 0
		}
	}
	return passages
}

// EstimateTokens approximates the token count of text. Four characters
// per token is close enough for chunk sizing across common tokenisers.
func EstimateTokens(text string) int {
	return len(text) / 4
}

