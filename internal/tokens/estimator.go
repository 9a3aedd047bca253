package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/codefionn/evalkit/internal/logger"
)

const (
	// DefaultEncoding is used when no encoding is configured.
	DefaultEncoding = "cl100k_base"
	// HeuristicEncoding selects the rune heuristic without loading anything.
	HeuristicEncoding = "heuristic"
)

// Estimator counts tokens for report columns. The encoding is loaded lazily
// on first use; when it cannot be loaded every count is approximate.
type Estimator struct {
	encoding string

	once    sync.Once
	encoder *tiktoken.Tiktoken
	load    func(string) (*tiktoken.Tiktoken, error)
}

// NewEstimator creates an estimator for the named tiktoken encoding.
func NewEstimator(encoding string) *Estimator {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if encoding == HeuristicEncoding {
		return Heuristic()
	}
	return &Estimator{encoding: encoding, load: tiktoken.GetEncoding}
}

// Heuristic returns an estimator that never loads an encoding.
func Heuristic() *Estimator {
	return &Estimator{
		encoding: HeuristicEncoding,
		load: func(string) (*tiktoken.Tiktoken, error) {
			return nil, nil
		},
	}
}

func (e *Estimator) init() {
	e.once.Do(func() {
		encoder, err := e.load(e.encoding)
		if err != nil {
			logger.Warn("token encoding %s unavailable, using heuristic: %v", e.encoding, err)
			return
		}
		e.encoder = encoder
	})
}

// Approximate reports whether counts come from the rune heuristic.
func (e *Estimator) Approximate() bool {
	e.init()
	return e.encoder == nil
}

// Encoding returns the configured encoding name.
func (e *Estimator) Encoding() string {
	return e.encoding
}

// Count returns the number of tokens in text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}

	e.init()
	if e.encoder != nil {
		return len(e.encoder.Encode(text, nil, nil))
	}
	return approxCount(text)
}

// approxCount assumes roughly four characters per token.
func approxCount(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return (runes + 3) / 4
}
