package graph

import (
	"sort"
	"strings"
	"sync"

	"github.com/quarry-dev/quarry/internal/symbols"
)

// DefinitionEntry pairs a definition with the file that declared it.
type DefinitionEntry struct {
	File       string             `json:"file"`
	Definition symbols.Definition `json:"definition"`
}

// Builder is the phase-2 component: it accumulates FileSymbolData
// across many files, indexes every definition by symbol name, and
// resolves references into relationships.
//
// Duplicate names are legal: a name's bucket keeps (file, definition)
// pairs sorted by file path, and resolution takes the first match.
// Sorted-path-wins makes resolution independent of insertion timing, so
// parallel extraction and re-analysis of unchanged files resolve the
// same winner every run; AllDefinitionsFor exposes every candidate so a
// presentation layer can surface the ambiguity.
//
// All mutation and index reads are serialized by one mutex so file-level
// parallel extraction can share a Builder.
type Builder struct {
	mu       sync.RWMutex
	files    map[string]*symbols.FileSymbolData
	defIndex map[string][]DefinitionEntry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		files:    make(map[string]*symbols.FileSymbolData),
		defIndex: make(map[string][]DefinitionEntry),
	}
}

// AddFileData stores data and indexes its definitions. Data for an
// already-known filepath is replaced wholesale.
func (b *Builder) AddFileData(data *symbols.FileSymbolData) {
	if data == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.files[data.Filepath]; ok {
		b.removeLocked(data.Filepath)
	}

	b.files[data.Filepath] = data
	for _, def := range data.Definitions {
		b.defIndex[def.Name] = insertSorted(b.defIndex[def.Name], DefinitionEntry{
			File:       data.Filepath,
			Definition: def,
		})
	}
}

// insertSorted places e in its (file, line) position so bucket order
// never depends on when a file was added or re-added.
func insertSorted(bucket []DefinitionEntry, e DefinitionEntry) []DefinitionEntry {
	at := sort.Search(len(bucket), func(i int) bool {
		if bucket[i].File != e.File {
			return bucket[i].File > e.File
		}
		return bucket[i].Definition.LineStart > e.Definition.LineStart
	})
	bucket = append(bucket, DefinitionEntry{})
	copy(bucket[at+1:], bucket[at:])
	bucket[at] = e
	return bucket
}

// RemoveFileData drops a file's data and strips its definitions from
// every affected bucket, pruning buckets that become empty.
func (b *Builder) RemoveFileData(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(path)
}

func (b *Builder) removeLocked(path string) {
	data, ok := b.files[path]
	if !ok {
		return
	}
	delete(b.files, path)

	for _, def := range data.Definitions {
		bucket := b.defIndex[def.Name]
		kept := bucket[:0]
		for _, e := range bucket {
			if e.File != path {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(b.defIndex, def.Name)
		} else {
			b.defIndex[def.Name] = kept
		}
	}
}

// FileData returns the stored extraction result for path.
func (b *Builder) FileData(path string) (*symbols.FileSymbolData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.files[path]
	return data, ok
}

// Files returns the sorted list of filepaths with stored data.
func (b *Builder) Files() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.files))
	for path := range b.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// BuildRelationships resolves every stored reference across all files,
// in sorted file order for determinism.
func (b *Builder) BuildRelationships() []Relationship {
	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := make([]string, 0, len(b.files))
	for path := range b.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []Relationship
	for _, path := range paths {
		out = append(out, b.buildForFileLocked(path)...)
	}
	return out
}

// BuildRelationshipsForFile resolves only the references of one file.
func (b *Builder) BuildRelationshipsForFile(path string) []Relationship {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buildForFileLocked(path)
}

func (b *Builder) buildForFileLocked(path string) []Relationship {
	data, ok := b.files[path]
	if !ok {
		return nil
	}
	out := make([]Relationship, 0, len(data.References))
	for _, ref := range data.References {
		out = append(out, b.resolveLocked(path, ref))
	}
	return out
}

// resolveLocked turns one reference into a relationship. Resolution
// order: a target already resolved during detection is used verbatim;
// otherwise the reference name is stripped to its final dotted component
// and looked up in the definition index, where the lexicographically
// first file path wins; otherwise an <unresolved:NAME> sentinel is
// emitted.
func (b *Builder) resolveLocked(source string, ref symbols.Reference) Relationship {
	rel := Relationship{
		SourceFile:   source,
		Type:         MapReferenceKind(ref.Kind),
		LineNumber:   ref.LineNumber,
		SourceSymbol: ref.CallerContext,
		Metadata:     ref.Metadata,
	}

	switch {
	case ref.ResolvedModule != "":
		rel.TargetFile = ref.ResolvedModule
		rel.TargetSymbol = ref.ResolvedSymbol
	default:
		name := finalComponent(ref.Name)
		if entries := b.defIndex[name]; len(entries) > 0 {
			rel.TargetFile = entries[0].File
			rel.TargetSymbol = entries[0].Definition.Name
		} else {
			rel.TargetFile = UnresolvedTarget(name)
			rel.TargetSymbol = name
		}
	}

	// Target line resolution is a secondary lookup, only for real file
	// targets whose extraction data is present.
	if !IsMarkerTarget(rel.TargetFile) && rel.TargetSymbol != "" {
		if line, ok := b.definitionLineLocked(rel.TargetFile, rel.TargetSymbol); ok {
			rel.TargetLine = line
		}
	}

	return rel
}

func (b *Builder) definitionLineLocked(file, symbol string) (int, bool) {
	data, ok := b.files[file]
	if !ok {
		return 0, false
	}
	for _, def := range data.Definitions {
		if def.Name == symbol {
			return def.LineStart, true
		}
	}
	return 0, false
}

// LookupDefinition returns the resolved definition for name. With a
// non-empty targetFile only that file's bucket entries are considered;
// otherwise the first indexed match wins.
func (b *Builder) LookupDefinition(name, targetFile string) (DefinitionEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.defIndex[finalComponent(name)]
	for _, e := range entries {
		if targetFile == "" || e.File == targetFile {
			return e, true
		}
	}
	return DefinitionEntry{}, false
}

// AllDefinitionsFor returns every (file, definition) pair registered
// under name, in sorted file order, for ambiguity reporting.
func (b *Builder) AllDefinitionsFor(name string) []DefinitionEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]DefinitionEntry(nil), b.defIndex[finalComponent(name)]...)
}

// MapReferenceKind is the fixed reference-kind to relationship-kind
// table. Attribute access approximates to a function call; an unmapped
// kind defaults to import rather than erroring.
func MapReferenceKind(kind symbols.ReferenceKind) RelationshipType {
	switch kind {
	case symbols.RefImport:
		return RelImport
	case symbols.RefFunctionCall:
		return RelFunctionCall
	case symbols.RefClassReference:
		return RelClassInheritance
	case symbols.RefAttributeAccess:
		return RelFunctionCall
	default:
		return RelImport
	}
}

// finalComponent strips a dotted name to its last component.
func finalComponent(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
