// Package chunker splits keynote text into ordered, token-bounded segments.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// charsPerToken is the fixed heuristic used to estimate model tokens.
const charsPerToken = 4

// Segment is an ordered slice of source text submitted for analysis.
type Segment struct {
	// Index is the zero-based position of the segment in the document.
	Index int
	// Text is the segment's sentences joined with single spaces.
	Text string
	// Tokens is the estimated token cost of Text.
	Tokens int
	// Sentences holds the sentences that make up Text, in source order.
	Sentences []string
	// Overlap is how many leading Sentences were carried over from the
	// previous segment.
	Overlap int
	// OverlapTokens is the estimated cost of the carried sentences.
	OverlapTokens int
}

// Fresh returns the sentences that did not appear in the previous segment.
func (s Segment) Fresh() []string {
	return s.Sentences[s.Overlap:]
}

// Config holds configuration for the chunker.
type Config struct {
	// Target size for each segment in estimated tokens
	TargetTokens int
	// Overlap carried into the next segment in estimated tokens
	OverlapTokens int
	// PreferSentenceBoundary selects sentence granularity. Sentences are the
	// only granularity implemented, so segments never cut a sentence.
	PreferSentenceBoundary bool
}

// DefaultConfig returns sensible defaults for chunking.
func DefaultConfig() Config {
	return Config{
		TargetTokens:           2000,
		OverlapTokens:          200,
		PreferSentenceBoundary: true,
	}
}

// Chunker splits text into overlapping segments.
type Chunker struct {
	config Config
}

// New creates a new chunker with the given config.
func New(config Config) *Chunker {
	return &Chunker{config: config}
}

// ChunkText splits text into segments.
//
// Sentences are accumulated until the next one would push the running cost
// over the target. The closed segment's trailing sentences, up to the overlap
// budget, seed the next segment. A sentence larger than the target is emitted
// whole in its own segment.
func (c *Chunker) ChunkText(text string) []Segment {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var segments []Segment
	var current []string
	var currentTokens int
	var carried, carriedTokens int

	flush := func() {
		sents := make([]string, len(current))
		copy(sents, current)
		joined := strings.TrimSpace(strings.Join(sents, " "))
		segments = append(segments, Segment{
			Index:         len(segments),
			Text:          joined,
			Tokens:        currentTokens,
			Sentences:     sents,
			Overlap:       carried,
			OverlapTokens: carriedTokens,
		})
	}

	for _, sent := range sentences {
		t := EstimateTokens(sent)

		if len(current) > 0 && currentTokens+t > c.config.TargetTokens {
			flush()

			tail, tailTokens := overlapTail(current, c.config.OverlapTokens)
			current = tail
			currentTokens = tailTokens
			carried = len(tail)
			carriedTokens = tailTokens
		}

		current = append(current, sent)
		currentTokens += t
	}

	if len(current) > 0 {
		flush()
	}

	return segments
}

// overlapTail walks backward through sentences collecting those whose
// cumulative cost stays within budget, and returns them in source order.
func overlapTail(sentences []string, budget int) ([]string, int) {
	var tokens int
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		t := EstimateTokens(sentences[i])
		if tokens+t > budget {
			break
		}
		tokens += t
		start = i
	}

	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail, tokens
}

// SplitSentences splits text after terminal punctuation followed by
// whitespace. Empty pieces are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	i := 0
	for i < len(text) {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			next := end
			for next < len(text) {
				r, size := utf8.DecodeRuneInString(text[next:])
				if !unicode.IsSpace(r) {
					break
				}
				next += size
			}
			if next > end {
				add(text[start:end])
				start = next
				i = next
				continue
			}
		}
		i++
	}
	add(text[start:])

	return sentences
}

// EstimateTokens estimates the model-token cost of s, never less than 1.
func EstimateTokens(s string) int {
	return max(1, utf8.RuneCountInString(s)/charsPerToken)
}
