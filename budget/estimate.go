package budget

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts the tokens a text will cost in a prompt.
type Estimator interface {
	Count(text string) int
}

// WordEstimator approximates tokens as ceil(words * 1.33). It is a rough
// heuristic; use a TiktokenEstimator when an exact count matters.
type WordEstimator struct{}

func (WordEstimator) Count(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens returns ceil(word_count * 1.33).
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(strings.Fields(text))) * 1.33))
}

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding, e.g. "cl100k_base". The
// encoding file is downloaded on first use unless TIKTOKEN_CACHE_DIR holds it.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) Count(text string) int {
	return len(e.enc.Encode(text, nil, nil))
}
