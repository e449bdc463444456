package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds project-level analysis settings loaded from quarry.yml.
type Config struct {
	// MaxFileLines skips files above this line count instead of parsing
	// them. 0 disables the limit.
	MaxFileLines int `yaml:"maxFileLines,omitempty"`

	// MaxTreeDepth bounds syntax-tree traversal; files that exceed it are
	// marked unparseable. 0 disables the bound.
	MaxTreeDepth int `yaml:"maxTreeDepth,omitempty"`

	// CacheCapacity is the maximum number of entries in the symbol cache.
	CacheCapacity int `yaml:"cacheCapacity,omitempty"`

	// CacheValidateHash enables content-hash validation of cache entries
	// in addition to the mtime check.
	CacheValidateHash bool `yaml:"cacheValidateHash,omitempty"`

	// CachePath is where the symbol cache is persisted between runs.
	// Empty disables persistence.
	CachePath string `yaml:"cachePath,omitempty"`

	// WarnOnWildcards logs a warning for every wildcard import found.
	WarnOnWildcards bool `yaml:"warnOnWildcards,omitempty"`

	// ExcludeDirs are directory names skipped during file discovery, in
	// addition to .gitignore rules.
	ExcludeDirs []string `yaml:"excludeDirs,omitempty"`

	// Workers bounds concurrent per-file extraction.
	Workers int `yaml:"workers,omitempty"`

	// DebounceMs is the watch-mode settle window in milliseconds.
	DebounceMs int `yaml:"debounceMs,omitempty"`
}

// Default returns the configuration used when no quarry.yml exists.
func Default() *Config {
	return &Config{
		MaxFileLines:  50000,
		MaxTreeDepth:  512,
		CacheCapacity: 1000,
		ExcludeDirs:   []string{".git", ".venv", "venv", "node_modules", "__pycache__", ".tox", ".mypy_cache"},
		Workers:       runtime.NumCPU(),
		DebounceMs:    2000,
	}
}

// Load attempts to read quarry.yml or quarry.yaml from the given
// directory, overlaying defaults. Returns defaults (not an error) if no
// config file exists.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"quarry.yml", "quarry.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, nil
}
