// Package tokens estimates token counts for report text using tiktoken.
// The estimates are local approximations for display only; they never
// replace the counters a provider reports.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with the o200k_base encoding. Neither research
// backend publishes its tokenizer, so a common modern encoding gives both
// reports a comparable estimate.
type Estimator struct {
	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewEstimator creates a new estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) getCodec() (tokenizer.Codec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec != nil {
		return e.codec, nil
	}

	codec, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	e.codec = codec
	return codec, nil
}

// Count returns the estimated token count for text.
func (e *Estimator) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	codec, err := e.getCodec()
	if err != nil {
		return 0, err
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}
