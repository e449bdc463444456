package analysis

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

// Pytest configuration is untrusted project input; these limits keep a
// hostile config from degrading the classifier.
const (
	maxConfigBytes   = 1 << 20
	maxPatterns      = 100
	maxPatternLength = 200
)

// TestFileClassifier decides whether a path is a test module. Dynamic
// pattern detectors use it to suppress WARNING-severity output in tests.
type TestFileClassifier interface {
	IsTestFile(path string) bool
}

// Classifier matches paths against pytest-style test locations: test
// directories plus file-name glob patterns.
type Classifier struct {
	dirs     []string
	patterns []string
}

// DefaultClassifier returns the conventional pytest layout: a tests/
// directory, test_*.py, *_test.py, and conftest.py.
func DefaultClassifier() *Classifier {
	return &Classifier{
		dirs:     []string{"tests"},
		patterns: []string{"test_*.py", "*_test.py", "conftest.py"},
	}
}

// NewClassifier discovers pytest configuration under projectRoot
// (pytest.ini, pyproject.toml, setup.cfg, tox.ini, in pytest's own
// precedence order) and falls back to DefaultClassifier when none
// configures test discovery.
func NewClassifier(projectRoot string) *Classifier {
	loaders := []struct {
		file string
		load func(data []byte) (dirs, patterns []string, ok bool)
	}{
		{"pytest.ini", loadINIPytest("pytest")},
		{"pyproject.toml", loadPyprojectPytest},
		{"setup.cfg", loadINIPytest("tool:pytest")},
		{"tox.ini", loadINIPytest("pytest")},
	}

	for _, l := range loaders {
		path := filepath.Join(projectRoot, l.file)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > maxConfigBytes {
			slog.Warn("pytest config exceeds size limit, ignoring", "file", path, "size", info.Size())
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		dirs, patterns, ok := l.load(data)
		if !ok {
			continue
		}

		c := &Classifier{
			dirs:     sanitizePatterns(dirs),
			patterns: sanitizePatterns(patterns),
		}
		// conftest.py is a pytest fixture module regardless of the
		// configured python_files patterns.
		c.patterns = append(c.patterns, "conftest.py")
		if len(c.dirs) == 0 && len(c.patterns) == 1 {
			continue // config present but configures nothing useful
		}
		if len(c.patterns) == 1 {
			c.patterns = append([]string{"test_*.py", "*_test.py"}, c.patterns...)
		}
		return c
	}

	return DefaultClassifier()
}

// IsTestFile reports whether path matches a test directory or file
// pattern.
func (c *Classifier) IsTestFile(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}

	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		for _, dir := range c.dirs {
			if segment == dir {
				return true
			}
		}
	}
	return false
}

// sanitizePatterns enforces the pattern limits: count, length, and no
// path traversal.
func sanitizePatterns(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if len(out) >= maxPatterns {
			slog.Warn("pytest config pattern count exceeds limit, truncating", "limit", maxPatterns)
			break
		}
		p = strings.TrimSpace(strings.Trim(p, "/"))
		if p == "" || len(p) > maxPatternLength || strings.Contains(p, "..") {
			continue
		}
		out = append(out, p)
	}
	return out
}

// loadINIPytest reads testpaths and python_files from an ini-style
// section ("pytest" in pytest.ini and tox.ini, "tool:pytest" in
// setup.cfg).
func loadINIPytest(section string) func(data []byte) ([]string, []string, bool) {
	return func(data []byte) ([]string, []string, bool) {
		cfg, err := ini.Load(data)
		if err != nil {
			return nil, nil, false
		}
		sec, err := cfg.GetSection(section)
		if err != nil {
			return nil, nil, false
		}
		dirs := strings.Fields(sec.Key("testpaths").String())
		patterns := strings.Fields(sec.Key("python_files").String())
		return dirs, patterns, len(dirs) > 0 || len(patterns) > 0
	}
}

// tomlStrings accepts both the string and array forms pytest allows for
// its list-valued options.
type tomlStrings []string

func (s *tomlStrings) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*s = strings.Fields(t)
	case []any:
		for _, item := range t {
			if str, ok := item.(string); ok {
				*s = append(*s, str)
			}
		}
	}
	return nil
}

// loadPyprojectPytest reads [tool.pytest.ini_options] from
// pyproject.toml.
func loadPyprojectPytest(data []byte) ([]string, []string, bool) {
	var doc struct {
		Tool struct {
			Pytest struct {
				IniOptions struct {
					Testpaths   tomlStrings `toml:"testpaths"`
					PythonFiles tomlStrings `toml:"python_files"`
				} `toml:"ini_options"`
			} `toml:"pytest"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, nil, false
	}
	opts := doc.Tool.Pytest.IniOptions
	return opts.Testpaths, opts.PythonFiles, len(opts.Testpaths) > 0 || len(opts.PythonFiles) > 0
}
