package analysis

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// --- ImportDetector ---

// ImportDetector extracts `import X` and `from X import a, b` references.
// Stdlib modules, relative imports, and sibling modules are resolved
// during detection; everything else is left for the relationship builder.
// Imports inside `if` arms and wildcard imports belong to the conditional
// and wildcard detectors respectively.
type ImportDetector struct{}

// NewImportDetector creates the detector.
func NewImportDetector() *ImportDetector { return &ImportDetector{} }

func (d *ImportDetector) Name() string  { return "import" }
func (d *ImportDetector) Priority() int { return 100 }

func (d *ImportDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	_, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRefs(path, refs), nil
}

func (d *ImportDetector) ExtractSymbols(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	switch node.Kind() {
	case "import_statement":
		if inConditionalScope(node) {
			return nil, nil, nil
		}
		return nil, parsePlainImport(node, path, tree), nil
	case "import_from_statement":
		if inConditionalScope(node) || isWildcardImport(node) {
			return nil, nil, nil
		}
		return nil, parseFromImport(node, path, tree), nil
	default:
		return nil, nil, nil
	}
}

// --- WildcardImportDetector ---

// WildcardImportDetector extracts `from X import *`. Wildcard imports
// defeat per-symbol resolution, so the reference carries a wildcard
// metadata flag and, when enabled, a logged warning.
type WildcardImportDetector struct {
	warnEnabled bool
	warn        func(filepath string, line int, message string)
}

// NewWildcardImportDetector creates the detector. A nil warn function
// falls back to slog.
func NewWildcardImportDetector(warnEnabled bool, warn func(filepath string, line int, message string)) *WildcardImportDetector {
	if warn == nil {
		warn = func(filepath string, line int, message string) {
			slog.Warn("wildcard import", "file", filepath, "line", line, "detail", message)
		}
	}
	return &WildcardImportDetector{warnEnabled: warnEnabled, warn: warn}
}

func (d *WildcardImportDetector) Name() string  { return "wildcard-import" }
func (d *WildcardImportDetector) Priority() int { return 95 }

func (d *WildcardImportDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	_, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRefs(path, refs), nil
}

func (d *WildcardImportDetector) ExtractSymbols(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "import_from_statement" || !isWildcardImport(node) {
		return nil, nil, nil
	}

	module := fromImportModule(node, tree)
	if module == "" {
		return nil, nil, nil
	}

	line := pysrc.Line(node)
	if d.warnEnabled {
		d.warn(path, line, "from "+module+" import * defeats symbol-level resolution")
	}

	resolved := resolveModule(path, module)
	if resolved == "" {
		resolved = graph.ModuleTarget(module)
	}

	ref := symbols.Reference{
		Kind:           symbols.RefImport,
		Name:           module,
		LineNumber:     line,
		ResolvedModule: resolved,
		ResolvedSymbol: "*",
		IsConditional:  inConditionalScope(node),
		Metadata:       map[string]string{"wildcard": "true"},
	}
	if ref.IsConditional {
		ref.Metadata["condition"] = guardCondition(node, tree)
	}
	return nil, []symbols.Reference{ref}, nil
}

// --- ConditionalImportDetector ---

// ConditionalImportDetector extracts imports that sit in the immediate
// body of an `if` arm (the TYPE_CHECKING / version-guard idiom). The scan
// is deliberately non-recursive: an import nested deeper than the arm's
// first statement level is handled when its own `if` node is visited.
type ConditionalImportDetector struct{}

// NewConditionalImportDetector creates the detector.
func NewConditionalImportDetector() *ConditionalImportDetector {
	return &ConditionalImportDetector{}
}

func (d *ConditionalImportDetector) Name() string  { return "conditional-import" }
func (d *ConditionalImportDetector) Priority() int { return 90 }

func (d *ConditionalImportDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	_, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRefs(path, refs), nil
}

func (d *ConditionalImportDetector) ExtractSymbols(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "if_statement" {
		return nil, nil, nil
	}

	var refs []symbols.Reference

	condition := "else"
	if cond := node.ChildByFieldName("condition"); cond != nil {
		condition = pysrc.DescribeExpr(cond, tree.Source)
	}
	if body := node.ChildByFieldName("consequence"); body != nil {
		refs = append(refs, importsInBlock(body, path, tree, condition)...)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "elif_clause":
			condition := "elif"
			if cond := child.ChildByFieldName("condition"); cond != nil {
				condition = pysrc.DescribeExpr(cond, tree.Source)
			}
			if body := child.ChildByFieldName("consequence"); body != nil {
				refs = append(refs, importsInBlock(body, path, tree, condition)...)
			}
		case "else_clause":
			if body := child.ChildByFieldName("body"); body != nil {
				refs = append(refs, importsInBlock(body, path, tree, "else")...)
			}
		}
	}

	return nil, refs, nil
}

// importsInBlock extracts the imports among a block's direct children,
// marking each conditional and recording the guarding condition.
func importsInBlock(block *tree_sitter.Node, path string, tree *pysrc.Tree, condition string) []symbols.Reference {
	var refs []symbols.Reference
	for i := uint(0); i < block.ChildCount(); i++ {
		child := block.Child(i)
		if child == nil {
			continue
		}

		var parsed []symbols.Reference
		switch child.Kind() {
		case "import_statement":
			parsed = parsePlainImport(child, path, tree)
		case "import_from_statement":
			if isWildcardImport(child) {
				continue
			}
			parsed = parseFromImport(child, path, tree)
		default:
			continue
		}

		for _, ref := range parsed {
			ref.IsConditional = true
			if ref.Metadata == nil {
				ref.Metadata = make(map[string]string, 1)
			}
			ref.Metadata["condition"] = condition
			refs = append(refs, ref)
		}
	}
	return refs
}

// --- shared import parsing ---

// inConditionalScope reports whether a statement sits directly inside an
// `if` arm.
func inConditionalScope(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "block" {
		return false
	}
	grand := parent.Parent()
	if grand == nil {
		return false
	}
	switch grand.Kind() {
	case "if_statement", "elif_clause", "else_clause":
		return true
	}
	return false
}

// guardCondition describes the `if` arm a conditional statement sits
// in, using the same labels the conditional import detector records.
func guardCondition(node *tree_sitter.Node, tree *pysrc.Tree) string {
	block := node.Parent()
	if block == nil {
		return ""
	}
	arm := block.Parent()
	if arm == nil {
		return ""
	}
	switch arm.Kind() {
	case "if_statement", "elif_clause":
		if cond := arm.ChildByFieldName("condition"); cond != nil {
			return pysrc.DescribeExpr(cond, tree.Source)
		}
		return "elif"
	case "else_clause":
		return "else"
	}
	return ""
}

// isWildcardImport reports whether a from-import ends in `*`.
func isWildcardImport(node *tree_sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "wildcard_import" {
			return true
		}
	}
	return false
}

// parsePlainImport extracts `import X[, Y] [as Z]` references. Each
// imported module resolves to a stdlib marker, a probed local path, or
// an external-module marker.
func parsePlainImport(node *tree_sitter.Node, path string, tree *pysrc.Tree) []symbols.Reference {
	line := pysrc.Line(node)
	var refs []symbols.Reference

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		var module, alias string
		switch child.Kind() {
		case "dotted_name":
			module = pysrc.Text(child, tree.Source)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			module = pysrc.Text(name, tree.Source)
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = pysrc.Text(a, tree.Source)
			}
		default:
			continue
		}
		if module == "" {
			continue
		}

		resolved := resolveModule(path, module)
		if resolved == "" {
			resolved = graph.ModuleTarget(module)
		}

		ref := symbols.Reference{
			Kind:           symbols.RefImport,
			Name:           module,
			LineNumber:     line,
			ResolvedModule: resolved,
		}
		if alias != "" {
			ref.Metadata = map[string]string{"alias": alias}
		}
		refs = append(refs, ref)
	}
	return refs
}

// parseFromImport extracts `from X import a [as b], c` references, one
// per imported name. Names from modules that are not locally resolvable
// keep an empty ResolvedModule for the relationship builder to resolve
// against the cross-file definition index.
func parseFromImport(node *tree_sitter.Node, path string, tree *pysrc.Tree) []symbols.Reference {
	module := fromImportModule(node, tree)
	if module == "" {
		return nil
	}

	line := pysrc.Line(node)
	resolved := resolveModule(path, module)
	moduleNode := node.ChildByFieldName("module_name")

	var refs []symbols.Reference
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
			continue // the module path, not an imported name
		}

		var name, alias string
		switch child.Kind() {
		case "dotted_name":
			name = pysrc.Text(child, tree.Source)
		case "aliased_import":
			n := child.ChildByFieldName("name")
			if n == nil {
				continue
			}
			name = pysrc.Text(n, tree.Source)
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = pysrc.Text(a, tree.Source)
			}
		default:
			continue
		}
		if name == "" {
			continue
		}

		qualified := module + "." + name
		if strings.HasSuffix(module, ".") {
			// Relative module paths already end in a dot.
			qualified = module + name
		}

		ref := symbols.Reference{
			Kind:           symbols.RefImport,
			Name:           qualified,
			LineNumber:     line,
			ResolvedModule: resolved,
			ResolvedSymbol: name,
			Metadata:       map[string]string{"module": module},
		}
		if alias != "" {
			ref.Metadata["alias"] = alias
		}
		refs = append(refs, ref)
	}
	return refs
}

// fromImportModule returns the module path of a from-import, including
// any leading dots of a relative import.
func fromImportModule(node *tree_sitter.Node, tree *pysrc.Tree) string {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && (child.Kind() == "dotted_name" || child.Kind() == "relative_import") {
				moduleNode = child
				break
			}
		}
	}
	if moduleNode == nil {
		return ""
	}
	return pysrc.Text(moduleNode, tree.Source)
}

// resolveModule resolves a module path during detection. It returns a
// stdlib marker, a probed file path, an unresolved marker for a relative
// import whose target does not exist, or "" when resolution is left to
// the relationship builder.
func resolveModule(fromFile, module string) string {
	if IsStdlibModule(module) {
		return graph.StdlibTarget(module)
	}

	if strings.HasPrefix(module, ".") {
		if resolved, ok := resolveRelative(fromFile, module); ok {
			return resolved
		}
		return graph.UnresolvedTarget(strings.TrimLeft(module, "."))
	}

	// Sibling module: a.py or a/__init__.py next to the importing file.
	base := filepath.Join(filepath.Dir(fromFile), strings.ReplaceAll(module, ".", string(filepath.Separator)))
	if resolved, ok := probeFile(base); ok {
		return resolved
	}
	return ""
}

// resolveRelative resolves a leading-dot import against the importing
// file's directory. One dot is the current package, each further dot
// ascends one level.
func resolveRelative(fromFile, module string) (string, bool) {
	dots := 0
	for _, c := range module {
		if c != '.' {
			break
		}
		dots++
	}

	baseDir := filepath.Dir(fromFile)
	for i := 1; i < dots; i++ {
		baseDir = filepath.Dir(baseDir)
	}

	modulePart := module[dots:]
	if modulePart == "" {
		// Bare `from . import x` targets the package itself.
		return probeFile(filepath.Join(baseDir, "__init__"))
	}

	relPath := strings.ReplaceAll(modulePart, ".", string(filepath.Separator))
	return probeFile(filepath.Join(baseDir, relPath))
}

// probeFile checks base.py, then base/__init__.py.
func probeFile(base string) (string, bool) {
	for _, candidate := range []string{base + ".py", filepath.Join(base, "__init__.py")} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
