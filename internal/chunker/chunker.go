package chunker

import (
	"math"
	"strings"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/parser"
)

// Config controls the chunking behaviour.
type Config struct {
	MaxTokens int // Maximum estimated tokens per chunk.
	Overlap   int // Token overlap between consecutive chunks of a section.
}

type Chunker struct {
	cfg Config
}

// New returns a Chunker. Zero-value fields get defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxTokens {
		cfg.Overlap = cfg.MaxTokens / 8
	}
	return &Chunker{cfg: cfg}
}

// Split turns parsed sections into retrievable chunks. Chunks never span sections;
// consecutive chunks of one section share Overlap tokens of trailing text.
func (c *Chunker) Split(sections []parser.Section) []model.Chunk {
	var chunks []model.Chunk
	for _, sec := range sections {
		for _, frag := range c.splitContent(sec.Content) {
			chunks = append(chunks, model.Chunk{
				Position:   len(chunks),
				PageNumber: sec.PageNumber,
				Heading:    sec.Heading,
				Content:    frag,
				TokenCount: EstimateTokens(frag),
			})
		}
	}
	return chunks
}

func (c *Chunker) splitContent(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if EstimateTokens(text) <= c.cfg.MaxTokens {
		return []string{text}
	}

	var units []string
	for _, para := range splitParagraphs(text) {
		if EstimateTokens(para) <= c.cfg.MaxTokens {
			units = append(units, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if EstimateTokens(sent) <= c.cfg.MaxTokens {
				units = append(units, sent)
				continue
			}
			units = append(units, c.splitWords(sent)...)
		}
	}

	var fragments []string
	var current []string
	currentTokens := 0
	for _, u := range units {
		tokens := EstimateTokens(u)
		if currentTokens+tokens > c.cfg.MaxTokens && len(current) > 0 {
			frag := strings.Join(current, " ")
			fragments = append(fragments, frag)
			current = current[:0]
			currentTokens = 0
			if overlap := extractOverlap(frag, c.cfg.Overlap); overlap != "" && EstimateTokens(overlap)+tokens <= c.cfg.MaxTokens {
				current = append(current, overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}
		current = append(current, u)
		currentTokens += tokens
	}
	if len(current) > 0 {
		fragments = append(fragments, strings.Join(current, " "))
	}
	return fragments
}

// splitWords cuts an oversized sentence into word windows.
func (c *Chunker) splitWords(text string) []string {
	words := strings.Fields(text)
	size := int(float64(c.cfg.MaxTokens) / 1.3)
	if size < 1 {
		size = 1
	}
	var out []string
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

// EstimateTokens approximates the token count: tokens ~ words * 1.3.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences splits on . ? ! followed by whitespace or end of text.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// extractOverlap returns the trailing words of text worth at most maxTokens.
func extractOverlap(text string, maxTokens int) string {
	words := strings.Fields(text)
	maxWords := int(float64(maxTokens) / 1.3)
	if maxWords > len(words) {
		maxWords = len(words)
	}
	if maxWords <= 0 {
		return ""
	}
	return strings.Join(words[len(words)-maxWords:], " ")
}
