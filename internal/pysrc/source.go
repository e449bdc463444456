package pysrc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

var (
	// ErrTooLarge reports a file above the configured line limit. Such
	// files are skipped, not treated as parse failures.
	ErrTooLarge = errors.New("file exceeds line limit")

	// ErrUnparseable reports source that tree-sitter could not parse
	// into an error-free tree.
	ErrUnparseable = errors.New("source is not parseable")
)

// SourceFile is one loaded source file ready for parsing.
type SourceFile struct {
	Path    string
	Content []byte
	Lines   int
}

// LoadFile reads a source file, enforcing maxLines (0 disables the
// limit). Content that is not valid UTF-8 is re-decoded as Latin-1 so a
// stray byte in an otherwise fine file does not abort analysis.
func LoadFile(path string, maxLines int) (*SourceFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := countLines(content)
	if maxLines > 0 && lines > maxLines {
		return nil, fmt.Errorf("%w: %s has %d lines (limit %d)", ErrTooLarge, path, lines, maxLines)
	}

	if !utf8.Valid(content) {
		content = decodeLatin1(content)
	}

	return &SourceFile{Path: path, Content: content, Lines: lines}, nil
}

// countLines counts newline bytes plus one for a non-empty final line.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// decodeLatin1 maps each byte to the corresponding Unicode code point.
// Every byte sequence is valid Latin-1, so this fallback cannot fail.
func decodeLatin1(content []byte) []byte {
	out := make([]byte, 0, len(content))
	for _, b := range content {
		out = utf8.AppendRune(out, rune(b))
	}
	return out
}
