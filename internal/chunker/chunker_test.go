package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedText(n int) string {
	sentences := make([]string, n)
	for i := range sentences {
		sentences[i] = fmt.Sprintf("Sentence number %d is here.", i)
	}
	return strings.Join(sentences, " ")
}

func TestChunker_ChunkText(t *testing.T) {
	t.Run("empty text returns no segments", func(t *testing.T) {
		c := New(DefaultConfig())
		assert.Empty(t, c.ChunkText(""))
		assert.Empty(t, c.ChunkText("   \n\t "))
	})

	t.Run("small text returns single segment", func(t *testing.T) {
		text := "Hello world. This is a small keynote."

		chunks := New(DefaultConfig()).ChunkText(text)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 0, chunks[0].Overlap)
	})

	t.Run("overlap carries trailing sentences", func(t *testing.T) {
		text := "One one. Two two. Thr thr. Fou fou. Fiv fiv."

		chunks := New(Config{TargetTokens: 4, OverlapTokens: 2}).ChunkText(text)
		require.Len(t, chunks, 4)

		assert.Equal(t, "One one. Two two.", chunks[0].Text)
		assert.Equal(t, "Two two. Thr thr.", chunks[1].Text)
		assert.Equal(t, "Thr thr. Fou fou.", chunks[2].Text)
		assert.Equal(t, "Fou fou. Fiv fiv.", chunks[3].Text)

		assert.Equal(t, 0, chunks[0].Overlap)
		for _, chunk := range chunks[1:] {
			assert.Equal(t, 1, chunk.Overlap)
			assert.Equal(t, 2, chunk.OverlapTokens)
			assert.Equal(t, 4, chunk.Tokens)
		}
	})

	t.Run("zero overlap carries nothing", func(t *testing.T) {
		text := "One one. Two two. Thr thr. Fou fou."

		chunks := New(Config{TargetTokens: 4, OverlapTokens: 0}).ChunkText(text)
		require.Len(t, chunks, 2)
		assert.Equal(t, "One one. Two two.", chunks[0].Text)
		assert.Equal(t, "Thr thr. Fou fou.", chunks[1].Text)
		assert.Equal(t, 0, chunks[1].Overlap)
	})

	t.Run("oversized sentence is emitted whole", func(t *testing.T) {
		big := strings.Repeat("x", 400) + "."
		text := "Short one. " + big + " Tail."

		chunks := New(Config{TargetTokens: 10, OverlapTokens: 0}).ChunkText(text)
		require.Len(t, chunks, 3)
		assert.Equal(t, "Short one.", chunks[0].Text)
		assert.Equal(t, big, chunks[1].Text)
		assert.Equal(t, "Tail.", chunks[2].Text)
		assert.Greater(t, chunks[1].Tokens, 10)
	})

	t.Run("oversized first sentence does not produce empty segment", func(t *testing.T) {
		big := strings.Repeat("y", 200) + "."

		chunks := New(Config{TargetTokens: 5, OverlapTokens: 2}).ChunkText(big)
		require.Len(t, chunks, 1)
		assert.Equal(t, big, chunks[0].Text)
	})

	t.Run("segment indices are sequential", func(t *testing.T) {
		chunks := New(Config{TargetTokens: 25, OverlapTokens: 8}).ChunkText(numberedText(60))
		require.Greater(t, len(chunks), 1)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Index)
		}
	})

	t.Run("no sentence is dropped", func(t *testing.T) {
		text := numberedText(75)

		for _, cfg := range []Config{
			{TargetTokens: 6, OverlapTokens: 0},
			{TargetTokens: 20, OverlapTokens: 6},
			{TargetTokens: 40, OverlapTokens: 30},
			{TargetTokens: 2000, OverlapTokens: 200},
		} {
			chunks := New(cfg).ChunkText(text)

			var rebuilt []string
			for _, chunk := range chunks {
				rebuilt = append(rebuilt, chunk.Fresh()...)
			}
			assert.Equal(t, SplitSentences(text), rebuilt, "config %+v", cfg)
		}
	})

	t.Run("overlap never exceeds budget", func(t *testing.T) {
		const budget = 13
		chunks := New(Config{TargetTokens: 30, OverlapTokens: budget}).ChunkText(numberedText(50))
		require.Greater(t, len(chunks), 2)

		for i := 1; i < len(chunks); i++ {
			prev, cur := chunks[i-1], chunks[i]
			carried := cur.Sentences[:cur.Overlap]

			var cost int
			for _, s := range carried {
				cost += EstimateTokens(s)
			}
			assert.LessOrEqual(t, cost, budget)
			assert.Equal(t, cost, cur.OverlapTokens)
			assert.Equal(t, prev.Sentences[len(prev.Sentences)-cur.Overlap:], carried)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		text := numberedText(40)
		c := New(Config{TargetTokens: 18, OverlapTokens: 5, PreferSentenceBoundary: true})

		assert.Equal(t, c.ChunkText(text), c.ChunkText(text))
	})

	t.Run("sentence boundary toggle does not split sentences", func(t *testing.T) {
		text := numberedText(20)
		on := New(Config{TargetTokens: 18, OverlapTokens: 5, PreferSentenceBoundary: true}).ChunkText(text)
		off := New(Config{TargetTokens: 18, OverlapTokens: 5, PreferSentenceBoundary: false}).ChunkText(text)

		assert.Equal(t, on, off)
	})
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"three sentences", "Hello world. How are you? Fine!", []string{"Hello world.", "How are you?", "Fine!"}},
		{"ellipsis", "Wait... what?", []string{"Wait...", "what?"}},
		{"no punctuation", "No punctuation here", []string{"No punctuation here"}},
		{"punctuation without space", "Version 1.2 shipped", []string{"Version 1.2 shipped"}},
		{"newline separated", "Line one.\nLine two.", []string{"Line one.", "Line two."}},
		{"trailing whitespace", "  Padded.  ", []string{"Padded."}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitSentences(tt.input))
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 1},
		{"abc", 1},
		{"abcdefgh", 2},
		{strings.Repeat("a", 40), 10},
		{"héllo wörld", 2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateTokens(tt.input))
		})
	}
}
