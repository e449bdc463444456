package symbols

import "time"

// --- Enums ---

// Kind classifies a symbol definition.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindVariable Kind = "variable"
)

// ReferenceKind classifies a symbol reference.
type ReferenceKind string

const (
	RefImport          ReferenceKind = "import"
	RefFunctionCall    ReferenceKind = "function_call"
	RefClassReference  ReferenceKind = "class_reference"
	RefAttributeAccess ReferenceKind = "attribute_access"
)

// --- Models ---

// Definition is one symbol defined in a source file. Immutable once
// created; owned by the FileSymbolData that produced it.
type Definition struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	LineStart   int      `json:"lineStart"` // 1-based, inclusive
	LineEnd     int      `json:"lineEnd"`
	Signature   string   `json:"signature,omitempty"`
	Decorators  []string `json:"decorators,omitempty"`
	Docstring   string   `json:"docstring,omitempty"` // first line only
	ParentClass string   `json:"parentClass,omitempty"` // set iff this is a method
}

// Reference is one use of a symbol name in a source file. ResolvedModule
// and ResolvedSymbol are set during detection only when the target is
// locally resolvable (stdlib and relative imports); everything else is
// resolved cross-file by the relationship builder.
//
// Metadata values are always strings, never structured, because they
// cross the JSON serialization boundary.
type Reference struct {
	Kind           ReferenceKind     `json:"kind"`
	Name           string            `json:"name"` // as written, possibly dotted
	LineNumber     int               `json:"lineNumber"`
	CallerContext  string            `json:"callerContext,omitempty"` // enclosing function/method qualified name
	ResolvedModule string            `json:"resolvedModule,omitempty"`
	ResolvedSymbol string            `json:"resolvedSymbol,omitempty"`
	IsConditional  bool              `json:"isConditional,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// FileSymbolData is the extraction result for one file: every definition
// and reference found by the detector pipeline. One instance per file per
// extraction; replaced wholesale on re-extraction, never mutated in place
// by resolution.
type FileSymbolData struct {
	Filepath    string       `json:"filepath"`
	Definitions []Definition `json:"definitions"`
	References  []Reference  `json:"references"`
	ParseTime   time.Time    `json:"parseTime"`
	IsValid     bool         `json:"isValid"` // false when the parse failed
}
