package budget

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func passages(n, wordsEach int) []Passage {
	out := make([]Passage, n)
	for i := range out {
		out[i] = Passage{
			Title:  fmt.Sprintf("Title %d", i),
			Source: fmt.Sprintf("src-%d", i),
			Text:   words(wordsEach),
		}
	}
	return out
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 2},
		{"one two three", 4},
		{words(100), 133},
		{"  spaced \n\t out  ", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), "text %q", tt.text)
	}
}

func TestBuildWithinBudgetKeepsAllInOrder(t *testing.T) {
	b := New(WithBuffer(100))
	ps := passages(5, 20)

	prompt := b.Build("What is up?", ps, 10000)

	require.True(t, strings.HasPrefix(prompt, "[CONTEXT]\n"))
	require.True(t, strings.HasSuffix(prompt, "\n[QUESTION]\nWhat is up?"))
	last := -1
	for _, p := range ps {
		idx := strings.Index(prompt, p.Block())
		require.GreaterOrEqual(t, idx, 0, "missing %s", p.Title)
		assert.Greater(t, idx, last, "%s out of order", p.Title)
		last = idx
	}
}

func TestBuildNeverExceedsBudget(t *testing.T) {
	for _, maxTotal := range []int{16100, 16250, 16500, 17000, 20000} {
		b := New()
		ps := passages(200, 37)

		prompt := b.Build("Which passages matter?", ps, maxTotal)

		assert.LessOrEqual(t, EstimateTokens(prompt), maxTotal-DefaultBuffer, "max %d", maxTotal)
		assert.NotContains(t, prompt, ps[len(ps)-1].Block())
	}
}

func TestBuildStopsAtFirstOverflow(t *testing.T) {
	b := New(WithBuffer(0))
	ps := []Passage{
		{Title: "a", Source: "1", Text: words(10)},
		{Title: "b", Source: "2", Text: words(500)},
		{Title: "c", Source: "3", Text: words(1)},
	}

	prompt := b.Build("q", ps, 100)

	assert.Contains(t, prompt, ps[0].Block())
	assert.NotContains(t, prompt, ps[1].Block())
	assert.NotContains(t, prompt, ps[2].Block(), "no passage is tried after the first overflow")
}

func TestBuildMultiSplitsBudget(t *testing.T) {
	b := New(WithBuffer(0))
	groups := [][]Passage{passages(10, 30), passages(10, 30)}
	for i := range groups[1] {
		groups[1][i].Title = "second " + groups[1][i].Title
	}

	prompt := b.BuildMulti("q", groups, 400)

	assert.LessOrEqual(t, EstimateTokens(prompt), 400)
	assert.Contains(t, prompt, groups[0][0].Block())
	assert.Contains(t, prompt, groups[1][0].Block(), "each group gets its share")
	assert.NotContains(t, prompt, groups[0][9].Block())
}

func TestBuildMultiEmptyGroups(t *testing.T) {
	assert.Equal(t, "[CONTEXT]\n\n[QUESTION]\nq", New().BuildMulti("q", nil, 20000))
}

type fixedEstimator int

func (f fixedEstimator) Count(string) int { return int(f) }

func TestCustomEstimator(t *testing.T) {
	b := New(WithBuffer(0), WithEstimator(fixedEstimator(10)))

	// header and question take 20, leaving room for exactly 3 passages
	prompt := b.Build("q", passages(5, 1), 50)

	assert.Equal(t, 3, strings.Count(prompt, "## Lien:"))
}
