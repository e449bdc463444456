package symbols

// PatternType classifies a dynamic source construct that defeats static
// resolution and is flagged rather than resolved.
type PatternType string

const (
	PatternDynamicDispatch PatternType = "dynamic_dispatch"
	PatternMonkeyPatching  PatternType = "monkey_patching"
	PatternExecEval        PatternType = "exec_eval"
	PatternDecorator       PatternType = "decorator"
	PatternMetaclass       PatternType = "metaclass"
)

// Severity grades a dynamic pattern warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DynamicPatternWarning reports a single dynamic construct. Warnings are
// ephemeral: they are reported to a sink during analysis and never stored
// in the relationship graph.
type DynamicPatternWarning struct {
	PatternType  PatternType       `json:"patternType"`
	Filepath     string            `json:"filepath"`
	LineNumber   int               `json:"lineNumber"`
	Message      string            `json:"message"`
	Severity     Severity          `json:"severity"`
	IsTestModule bool              `json:"isTestModule"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
