// Package config loads the optional mache.yaml file. Values resolve in three
// layers: built-in defaults, then the file, then command-line flags.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	mcerrors "mache/internal/errors"
	"mache/internal/validate"
)

const DefaultPath = "mache.yaml"

//go:embed config.schema.json
var schemaJSON []byte

var schema = validate.MustCompile("config", schemaJSON)

type Config struct {
	Extensions []string `yaml:"extensions"`
	Apply      Apply    `yaml:"apply"`
	Rebuild    Rebuild  `yaml:"rebuild"`
	Logging    Logging  `yaml:"logging"`
	History    History  `yaml:"history"`
	Git        Git      `yaml:"git"`
}

type Apply struct {
	Backend         string `yaml:"backend"`
	Fuzz            *int   `yaml:"fuzz"` // nil means exact matching
	PatchExecutable string `yaml:"patch_executable"`
	Workers         int    `yaml:"workers"` // 0 means one per CPU
}

type Rebuild struct {
	Context *int `yaml:"context"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type History struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type Git struct {
	Author string `yaml:"author"`
	Email  string `yaml:"email"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Extensions: []string{".java"},
		Apply: Apply{
			Backend:         "java",
			PatchExecutable: "patch",
		},
		Rebuild: Rebuild{Context: Int(3)},
		Logging: Logging{Level: "info"},
		History: History{Path: ".mache/history.db"},
		Git:     Git{Author: "Papier-mâché", Email: "paper@mache.gradle"},
	}
}

// Int returns a pointer to v for optional integer settings.
func Int(v int) *int { return &v }

// Load reads and validates the YAML file at path. With allowMissing a
// missing file yields the zero Config.
func Load(path string, allowMissing bool) (Config, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Config{}, mcerrors.InvalidArgument("config_path_empty", "config path is required")
	}
	content, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			if allowMissing {
				return Config{}, nil
			}
			return Config{}, mcerrors.Wrap(fmt.Errorf("read config: %w", err), mcerrors.CategoryInvalidArgument, "config_missing", "pass an existing file to -config or omit the flag")
		}
		return Config{}, mcerrors.IO(fmt.Errorf("read config: %w", err), "config_read_failed")
	}
	return Parse(content)
}

// Parse validates YAML content against the configuration schema and
// decodes it.
func Parse(content []byte) (Config, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}
	asJSON, err := yaml.YAMLToJSON(content)
	if err != nil {
		return Config{}, mcerrors.Wrap(fmt.Errorf("parse config: %w", err), mcerrors.CategoryInvalidArgument, "config_parse_failed", "")
	}
	if doc := strings.TrimSpace(string(asJSON)); doc == "null" || doc == "" {
		return Config{}, nil
	}
	if err := schema.JSON(asJSON); err != nil {
		return Config{}, mcerrors.Wrap(err, mcerrors.CategoryInvalidArgument, "config_invalid", "see the keys listed in mache.yaml documentation")
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, mcerrors.Wrap(fmt.Errorf("parse config: %w", err), mcerrors.CategoryInvalidArgument, "config_parse_failed", "")
	}
	return cfg, nil
}

// Merge overlays the set fields of over onto base. Empty strings, nil
// pointers and empty lists leave base unchanged.
func Merge(base, over Config) Config {
	out := base
	if len(over.Extensions) > 0 {
		out.Extensions = append([]string(nil), over.Extensions...)
	}
	if s := strings.TrimSpace(over.Apply.Backend); s != "" {
		out.Apply.Backend = s
	}
	if over.Apply.Fuzz != nil {
		out.Apply.Fuzz = Int(*over.Apply.Fuzz)
	}
	if s := strings.TrimSpace(over.Apply.PatchExecutable); s != "" {
		out.Apply.PatchExecutable = s
	}
	if over.Apply.Workers != 0 {
		out.Apply.Workers = over.Apply.Workers
	}
	if over.Rebuild.Context != nil {
		out.Rebuild.Context = Int(*over.Rebuild.Context)
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.History.Path); s != "" {
		out.History.Path = s
	}
	if over.History.Disabled {
		out.History.Disabled = true
	}
	if s := strings.TrimSpace(over.Git.Author); s != "" {
		out.Git.Author = s
	}
	if s := strings.TrimSpace(over.Git.Email); s != "" {
		out.Git.Email = s
	}
	return out
}

// Resolve loads path (a missing default file is fine) and merges it over
// the defaults.
func Resolve(path string) (Config, error) {
	allowMissing := path == ""
	if allowMissing {
		path = DefaultPath
	}
	file, err := Load(path, allowMissing)
	if err != nil {
		return Config{}, err
	}
	return Merge(Defaults(), file), nil
}
