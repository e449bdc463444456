package mcptools

import (
	"fmt"
	"strings"
)

// renderFileContext formats a context block suitable for injecting
// alongside a file's contents.
func renderFileContext(ctx FileContextOutput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Context: %s\n", ctx.Path)
	if ctx.Unparseable {
		b.WriteString("(file could not be parsed; information may be stale)\n")
	}

	if len(ctx.Definitions) > 0 {
		b.WriteString("\n## Defines\n")
		for _, def := range ctx.Definitions {
			line := fmt.Sprintf("- %s %s (line %d)", def.Kind, def.Name, def.Line)
			if def.ParentClass != "" {
				line = fmt.Sprintf("- %s %s.%s (line %d)", def.Kind, def.ParentClass, def.Name, def.Line)
			}
			b.WriteString(line + "\n")
			if def.Docstring != "" {
				fmt.Fprintf(&b, "  %s\n", def.Docstring)
			}
		}
	}

	if len(ctx.Dependencies) > 0 {
		b.WriteString("\n## Depends on\n")
		for _, rel := range ctx.Dependencies {
			if rel.Symbol != "" {
				fmt.Fprintf(&b, "- %s (%s %s, line %d)\n", rel.File, rel.Type, rel.Symbol, rel.Line)
			} else {
				fmt.Fprintf(&b, "- %s (%s, line %d)\n", rel.File, rel.Type, rel.Line)
			}
		}
	}

	if len(ctx.Dependents) > 0 {
		b.WriteString("\n## Used by\n")
		for _, rel := range ctx.Dependents {
			fmt.Fprintf(&b, "- %s (%s, line %d)\n", rel.File, rel.Type, rel.Line)
		}
	}

	if len(ctx.Warnings) > 0 {
		b.WriteString("\n## Dynamic patterns\n")
		for _, w := range ctx.Warnings {
			fmt.Fprintf(&b, "- [%s] line %d: %s\n", w.Severity, w.Line, w.Message)
		}
	}

	return b.String()
}
