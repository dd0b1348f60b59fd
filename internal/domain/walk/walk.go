// Package walk holds the value types of a drift walk: its parameters and the
// trace it produces.
package walk

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Parameter limits.
const (
	MinTopK     = 2
	MaxTopK     = 500
	MaxMaxDepth = 1000
)

// Mode selects what each candidate is scored against.
type Mode string

// Scoring modes.
const (
	// RelativeToAnchor scores every candidate against the first query's embedding.
	RelativeToAnchor Mode = "anchor"
	// RelativeToPrevious uses the provider's score against the previous step.
	RelativeToPrevious Mode = "previous"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == RelativeToAnchor || m == RelativeToPrevious
}

// HaltReason records why a walk stopped.
type HaltReason string

// Halt reasons. None of them is an error.
const (
	HaltDepthExhausted      HaltReason = "depth_exhausted"
	HaltBelowThreshold      HaltReason = "below_threshold"
	HaltCandidatesExhausted HaltReason = "candidates_exhausted"
)

// Params configures one walk.
type Params struct {
	Corpus    string
	Query     domain.Query
	TopK      int
	MaxDepth  int
	Threshold float64
	Mode      Mode
}

// Validate checks the parameters without touching any provider.
// Every failure wraps domain.ErrInvalidWalk.
func (p Params) Validate() error {
	if p.Corpus == "" {
		return fmt.Errorf("%w: corpus is required", domain.ErrInvalidWalk)
	}
	if domain.IsEmptyQuery(p.Query) {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidWalk)
	}
	if p.TopK < MinTopK || p.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between %d and %d", domain.ErrInvalidWalk, MinTopK, MaxTopK)
	}
	if p.MaxDepth < 1 || p.MaxDepth > MaxMaxDepth {
		return fmt.Errorf("%w: max_depth must be between 1 and %d", domain.ErrInvalidWalk, MaxMaxDepth)
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be finite", domain.ErrInvalidWalk)
	}
	if !p.Mode.IsValid() {
		return fmt.Errorf("%w: unknown score mode %q", domain.ErrInvalidWalk, p.Mode)
	}
	return nil
}

// Defaults fill the parameters a caller leaves unset.
type Defaults struct {
	TopK      int
	MaxDepth  int
	Threshold float64
	Mode      Mode
}

// StandardDefaults returns the built-in walk defaults.
func StandardDefaults() Defaults {
	return Defaults{TopK: 5, MaxDepth: 50, Threshold: 0.85, Mode: RelativeToPrevious}
}

// Apply returns p with zero-valued TopK, MaxDepth and Mode taken from d.
// Threshold is applied only when set is false, since 0 is a valid threshold.
func (d Defaults) Apply(p Params, thresholdSet bool) Params {
	if p.TopK == 0 {
		p.TopK = d.TopK
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.Mode == "" {
		p.Mode = d.Mode
	}
	if !thresholdSet {
		p.Threshold = d.Threshold
	}
	return p
}

// Step is one accepted document and the score it was accepted with.
type Step struct {
	Document domain.Document
	Score    float64
}

// Result is the ordered trace of accepted documents and why the walk stopped.
type Result struct {
	Trace []Step
	Halt  HaltReason
}

// Texts returns the trace documents' texts in walk order.
func (r Result) Texts() []string {
	out := make([]string, len(r.Trace))
	for i, s := range r.Trace {
		out[i] = s.Document.Text
	}
	return out
}
