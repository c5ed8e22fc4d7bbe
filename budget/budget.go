// Package budget packs ranked retrieved passages into a prompt that fits a
// model's context window.
package budget

import (
	"fmt"
	"strings"
)

// DefaultBuffer is the token reserve kept for instructions and the answer.
const DefaultBuffer = 16000

const (
	contextHeader  = "[CONTEXT]\n"
	questionHeader = "\n[QUESTION]\n"
)

// Passage is one retrieved document.
type Passage struct {
	Title  string
	Source string
	Text   string
}

// Block renders the passage as it appears in the prompt.
func (p Passage) Block() string {
	return fmt.Sprintf("\n# %s \n## Lien: %s\n\n%s\n", p.Title, p.Source, p.Text)
}

// Builder assembles budgeted prompts.
type Builder struct {
	buffer    int
	estimator Estimator
}

type Option func(*Builder)

// WithBuffer overrides the reserved token count.
func WithBuffer(n int) Option {
	return func(b *Builder) { b.buffer = n }
}

// WithEstimator replaces the word-count heuristic.
func WithEstimator(e Estimator) Option {
	return func(b *Builder) { b.estimator = e }
}

func New(opts ...Option) *Builder {
	b := &Builder{buffer: DefaultBuffer, estimator: WordEstimator{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Count estimates the tokens of text with the builder's estimator.
func (b *Builder) Count(text string) int {
	return b.estimator.Count(text)
}

// Build packs passages in rank order until the next one would not fit in
// maxTotalTokens minus the buffer. Accepted passages are never reordered or
// removed to make room for later ones.
func (b *Builder) Build(question string, passages []Passage, maxTotalTokens int) string {
	remaining := b.available(question, maxTotalTokens)
	section, _ := b.pack(passages, remaining)
	return b.frame(section, question)
}

// BuildMulti packs one passage group per sub-question. The budget is split
// evenly across groups; a group is packed like Build within its share, and
// the first group whose section no longer fits the remaining total ends the
// packing.
func (b *Builder) BuildMulti(question string, groups [][]Passage, maxTotalTokens int) string {
	if len(groups) == 0 {
		return b.frame("", question)
	}
	remaining := b.available(question, maxTotalTokens)
	perGroup := remaining / len(groups)

	var sb strings.Builder
	for _, passages := range groups {
		section, cost := b.pack(passages, perGroup)
		if cost > remaining {
			break
		}
		sb.WriteString(section)
		remaining -= cost
	}
	return b.frame(sb.String(), question)
}

func (b *Builder) available(question string, maxTotalTokens int) int {
	n := maxTotalTokens - b.buffer - b.Count(contextHeader) - b.Count(questionHeader+question)
	if n < 0 {
		return 0
	}
	return n
}

func (b *Builder) pack(passages []Passage, limit int) (string, int) {
	var sb strings.Builder
	used := 0
	for _, p := range passages {
		block := p.Block()
		cost := b.Count(block)
		if used+cost > limit {
			break
		}
		sb.WriteString(block)
		used += cost
	}
	return sb.String(), used
}

func (b *Builder) frame(section, question string) string {
	return contextHeader + section + questionHeader + question
}
