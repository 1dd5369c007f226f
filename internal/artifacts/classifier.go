package artifacts

// Outcome is the result of classifying a finished session's output.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// DefaultMinBytes is the minimum artifact size treated as real output.
// The threshold is a heuristic placeholder, not a load-bearing constant;
// it exists so a session that only emitted a banner or a partial line is
// not mistaken for a successful run.
const DefaultMinBytes = 256

// Classifier decides whether a finished session produced a usable
// artifact. It is an interface so the size heuristic can later be swapped
// for an exit-code or sentinel-file contract without touching the callers.
type Classifier interface {
	Classify(slug, jobID string) (Outcome, error)
}

// SizeClassifier marks a job completed when its artifact exists and
// clears a minimum-content threshold.
type SizeClassifier struct {
	Store    *Dir
	MinBytes int64
}

// NewSizeClassifier creates a classifier over the given store. A
// non-positive minBytes falls back to DefaultMinBytes.
func NewSizeClassifier(store *Dir, minBytes int64) *SizeClassifier {
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	return &SizeClassifier{Store: store, MinBytes: minBytes}
}

// Classify inspects the expected artifact location
func (c *SizeClassifier) Classify(slug, jobID string) (Outcome, error) {
	size, exists, err := c.Store.Size(slug, jobID)
	if err != nil {
		return OutcomeFailed, err
	}
	if !exists || size < c.MinBytes {
		return OutcomeFailed, nil
	}
	return OutcomeCompleted, nil
}
