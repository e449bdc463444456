package analysis

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNilDetector is returned when registering a nil detector.
	ErrNilDetector = errors.New("nil detector")

	// ErrDuplicateDetector is returned when a detector name is already
	// registered.
	ErrDuplicateDetector = errors.New("duplicate detector name")
)

// Registry holds the detectors the analyzer runs, ordered by descending
// priority with name as the tiebreak so iteration is deterministic.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]Detector
	ordered []Detector // nil when stale
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Detector)}
}

// Register adds a detector. Nil detectors and duplicate names are
// rejected.
func (r *Registry) Register(d Detector) error {
	if d == nil {
		return ErrNilDetector
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDetector, name)
	}
	r.byName[name] = d
	r.ordered = nil
	return nil
}

// Detectors returns all detectors sorted by descending priority, then
// by name. The sorted slice is cached until the next registration.
func (r *Registry) Detectors() []Detector {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ordered == nil {
		r.ordered = make([]Detector, 0, len(r.byName))
		for _, d := range r.byName {
			r.ordered = append(r.ordered, d)
		}
		sort.Slice(r.ordered, func(i, j int) bool {
			if r.ordered[i].Priority() != r.ordered[j].Priority() {
				return r.ordered[i].Priority() > r.ordered[j].Priority()
			}
			return r.ordered[i].Name() < r.ordered[j].Name()
		})
	}

	out := make([]Detector, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Count returns the number of registered detectors.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Clear removes every detector.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]Detector)
	r.ordered = nil
}

// Options configures the default detector set.
type Options struct {
	// WarnOnWildcards enables the wildcard-import warning.
	WarnOnWildcards bool

	// WildcardWarn receives wildcard-import warnings. Defaults to slog.
	WildcardWarn func(filepath string, line int, message string)

	// Classifier decides which files are test modules. Defaults to the
	// standard pytest conventions.
	Classifier TestFileClassifier

	// Warnings receives dynamic-pattern warnings. Defaults to a
	// discarding sink.
	Warnings WarningSink
}

// DefaultRegistry builds a registry with the full detector set: the
// import family, the structural detectors, and the dynamic-pattern
// detectors.
func DefaultRegistry(opts Options) *Registry {
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.Warnings == nil {
		opts.Warnings = discardSink{}
	}

	r := NewRegistry()
	detectors := []Detector{
		NewImportDetector(),
		NewWildcardImportDetector(opts.WarnOnWildcards, opts.WildcardWarn),
		NewConditionalImportDetector(),
		NewFunctionDefinitionDetector(),
		NewClassDefinitionDetector(),
		NewVariableDefinitionDetector(),
		NewFunctionCallDetector(),
		NewClassInheritanceDetector(),
	}
	detectors = append(detectors, DynamicPatternDetectors(opts.Classifier, opts.Warnings)...)

	for _, d := range detectors {
		// Names are fixed constants; registration cannot fail here.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}
