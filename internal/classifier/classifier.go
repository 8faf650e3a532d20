package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/karavel-ai/compass/pkg/models"
)

// FastPathThreshold is the keyword-tier confidence above which the slow
// path is skipped. This is a latency/cost optimization, not a correctness
// requirement.
const FastPathThreshold = 0.8

// DefaultSlowPathTimeout bounds the generative classification call.
const DefaultSlowPathTimeout = 30 * time.Second

// Classifier runs the two-tier classification strategy.
type Classifier struct {
	catalogue []CapabilityProfile
	gen       GenerativeClassifier
	threshold float64
	timeout   time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCatalogue replaces the default capability catalogue.
func WithCatalogue(catalogue []CapabilityProfile) Option {
	return func(c *Classifier) {
		c.catalogue = catalogue
	}
}

// WithThreshold sets the fast-path confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) {
		c.threshold = threshold
	}
}

// WithSlowPathTimeout bounds the generative fallback call.
func WithSlowPathTimeout(timeout time.Duration) Option {
	return func(c *Classifier) {
		c.timeout = timeout
	}
}

// New creates a Classifier. The generative classifier may be nil, in which
// case only the keyword tier runs and ambiguous queries degrade the same
// way a failed generative call would.
func New(gen GenerativeClassifier, opts ...Option) *Classifier {
	c := &Classifier{
		catalogue: DefaultCatalogue,
		gen:       gen,
		threshold: FastPathThreshold,
		timeout:   DefaultSlowPathTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalogue returns the capability catalogue in use.
func (c *Classifier) Catalogue() []CapabilityProfile {
	return c.catalogue
}

// Classify turns a query into a typed classification. The keyword tier runs
// first; if its confidence clears the threshold the generative tier is never
// consulted. Otherwise the generative tier runs under a timeout, and any
// failure there degrades to the keyword result (if it matched anything) or
// to a safe unknown default. Classification never returns an error to the
// caller: failure is absorbed here, not propagated.
func (c *Classifier) Classify(ctx context.Context, query, correlationID string) Classification {
	fast := MatchKeywords(query, c.catalogue)
	if fast.Confidence > c.threshold {
		return fast
	}

	if c.gen == nil {
		return c.degrade(fast, "generative tier not configured")
	}

	slowCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slow, err := c.gen.Classify(slowCtx, query, c.catalogue)
	if err != nil {
		return c.degrade(fast, err.Error())
	}
	if slow == nil {
		return c.degrade(fast, "generative tier returned nothing")
	}

	slow.FastPath = false
	return *slow
}

// degrade produces the fallback classification after a slow-path failure.
// A keyword result with any confidence wins; otherwise the query routes to
// the navigator with middling confidence so the default executor can still
// offer guidance.
func (c *Classifier) degrade(fast Classification, cause string) Classification {
	if fast.Confidence > 0 {
		fast.Reasoning = fmt.Sprintf("%s (generative fallback unavailable: %s)", fast.Reasoning, cause)
		return fast
	}
	return Classification{
		Intent:              models.IntentUnknown,
		SuggestedCapability: models.CapabilityNavigator,
		Confidence:          0.5,
		Reasoning:           fmt.Sprintf("classification failed: %s", cause),
		FastPath:            false,
	}
}
