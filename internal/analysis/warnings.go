package analysis

import (
	"sync"

	"github.com/quarry-dev/quarry/internal/symbols"
)

// WarningSink receives dynamic-pattern warnings as detectors find them.
// Warnings never enter the relationship graph.
type WarningSink interface {
	Report(w symbols.DynamicPatternWarning)
}

// WarningList collects warnings in memory. Safe for concurrent use.
type WarningList struct {
	mu       sync.Mutex
	warnings []symbols.DynamicPatternWarning
}

// NewWarningList creates an empty list.
func NewWarningList() *WarningList {
	return &WarningList{}
}

// Report appends a warning.
func (l *WarningList) Report(w symbols.DynamicPatternWarning) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, w)
}

// All returns a copy of the collected warnings.
func (l *WarningList) All() []symbols.DynamicPatternWarning {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]symbols.DynamicPatternWarning, len(l.warnings))
	copy(out, l.warnings)
	return out
}

// ForFile returns the warnings recorded for one file.
func (l *WarningList) ForFile(path string) []symbols.DynamicPatternWarning {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []symbols.DynamicPatternWarning
	for _, w := range l.warnings {
		if w.Filepath == path {
			out = append(out, w)
		}
	}
	return out
}

// Clear drops all collected warnings.
func (l *WarningList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = nil
}

// ClearFile drops the warnings recorded for one file, keeping the rest.
// Used on re-analysis so stale warnings do not accumulate.
func (l *WarningList) ClearFile(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.warnings[:0]
	for _, w := range l.warnings {
		if w.Filepath != path {
			kept = append(kept, w)
		}
	}
	l.warnings = kept
}

// discardSink drops every warning.
type discardSink struct{}

func (discardSink) Report(symbols.DynamicPatternWarning) {}
