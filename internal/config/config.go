package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"shimcheck/internal/payload"
	"shimcheck/internal/resolver"
	"shimcheck/internal/source"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGemRBIDir         = "sorbet/rbi/gems"
	DefaultDSLRBIDir         = "sorbet/rbi/dsl"
	DefaultShimRBIDir        = "sorbet/rbi/shims"
	DefaultAnnotationsRBIDir = "sorbet/rbi/annotations"
	DefaultTodoRBIFile       = "sorbet/rbi/todo.rbi"

	ScopeEditable = "editable"
	ScopeAll      = "all"
)

// Group names accepted in Order.
const (
	GroupPayload     = "payload"
	GroupTodo        = "todo"
	GroupShim        = "shim"
	GroupGem         = "gem"
	GroupDSL         = "dsl"
	GroupAnnotations = "annotations"
)

// DefaultOrder loads the payload first, then the editable groups, then the
// generated ones.
var DefaultOrder = []string{GroupPayload, GroupTodo, GroupShim, GroupGem, GroupDSL, GroupAnnotations}

type Config struct {
	GemRBIDir         string   `yaml:"gem_rbi_dir"`
	DSLRBIDir         string   `yaml:"dsl_rbi_dir"`
	ShimRBIDir        string   `yaml:"shim_rbi_dir"`
	AnnotationsRBIDir string   `yaml:"annotations_rbi_dir"`
	TodoRBIFile       string   `yaml:"todo_rbi_file"`
	Order             []string `yaml:"order"`
	Scope             string   `yaml:"scope"`
	Payload           struct {
		Enabled    bool     `yaml:"enabled"`
		Command    []string `yaml:"command"`
		MinVersion string   `yaml:"min_version"`
		BaseURL    string   `yaml:"base_url"`
	} `yaml:"payload"`
	Output struct {
		ReportJSON string `yaml:"report_json"`
		DB         string `yaml:"db"`
	} `yaml:"output"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		GemRBIDir:         DefaultGemRBIDir,
		DSLRBIDir:         DefaultDSLRBIDir,
		ShimRBIDir:        DefaultShimRBIDir,
		AnnotationsRBIDir: DefaultAnnotationsRBIDir,
		TodoRBIFile:       DefaultTodoRBIFile,
		Order:             append([]string(nil), DefaultOrder...),
		Scope:             ScopeEditable,
	}
	cfg.Payload.Enabled = true
	cfg.Payload.Command = []string{"srb"}
	cfg.Payload.MinVersion = payload.MinimumVersion
	cfg.Payload.BaseURL = payload.DefaultBaseURL
	return cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	dirs := map[string]*string{
		"SHIMCHECK_GEM_RBI_DIR":         &c.GemRBIDir,
		"SHIMCHECK_DSL_RBI_DIR":         &c.DSLRBIDir,
		"SHIMCHECK_SHIM_RBI_DIR":        &c.ShimRBIDir,
		"SHIMCHECK_ANNOTATIONS_RBI_DIR": &c.AnnotationsRBIDir,
		"SHIMCHECK_TODO_RBI_FILE":       &c.TodoRBIFile,
		"SHIMCHECK_SCOPE":               &c.Scope,
	}
	for key, dst := range dirs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SHIMCHECK_PAYLOAD"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SHIMCHECK_PAYLOAD %q: %w", v, err)
		}
		c.Payload.Enabled = enabled
	}
	if v := os.Getenv("SHIMCHECK_SORBET"); v != "" {
		c.Payload.Command = strings.Fields(v)
	}
	return nil
}

// Validate checks the scope and group order.
func (c *Config) Validate() error {
	if c.Scope != ScopeEditable && c.Scope != ScopeAll {
		return fmt.Errorf("invalid scope %q: want %q or %q", c.Scope, ScopeEditable, ScopeAll)
	}
	seen := map[string]bool{}
	for _, name := range c.Order {
		if !isGroupName(name) {
			return fmt.Errorf("unknown group %q in order", name)
		}
		if seen[name] {
			return fmt.Errorf("group %q listed twice in order", name)
		}
		seen[name] = true
	}
	if len(c.Payload.Command) == 0 {
		return errors.New("payload command must not be empty")
	}
	return nil
}

func isGroupName(name string) bool {
	for _, g := range DefaultOrder {
		if g == name {
			return true
		}
	}
	return false
}

// Groups builds the source groups in configured order. Groups missing from
// Order follow in default order.
func (c *Config) Groups() []source.Group {
	all := map[string]source.Group{
		GroupPayload:     {Name: GroupPayload, Label: "Sorbet payload", Provenance: resolver.CanonicalReference, Enabled: c.Payload.Enabled},
		GroupTodo:        {Name: GroupTodo, Label: "TODO RBI", Provenance: resolver.PendingReview, Path: c.TodoRBIFile, Enabled: true, Editable: true},
		GroupShim:        {Name: GroupShim, Label: "shim RBIs", Provenance: resolver.LocalOverride, Path: c.ShimRBIDir, Enabled: true, Editable: true},
		GroupGem:         {Name: GroupGem, Label: "gem RBIs", Provenance: resolver.GeneratedFromDiscovery, Path: c.GemRBIDir, Enabled: true},
		GroupDSL:         {Name: GroupDSL, Label: "DSL RBIs", Provenance: resolver.GeneratedFromDynamicRules, Path: c.DSLRBIDir, Enabled: true},
		GroupAnnotations: {Name: GroupAnnotations, Label: "annotations RBIs", Provenance: resolver.GeneratedFromAnnotation, Path: c.AnnotationsRBIDir, Enabled: true},
	}

	var groups []source.Group
	used := map[string]bool{}
	for _, name := range append(append([]string(nil), c.Order...), DefaultOrder...) {
		g, ok := all[name]
		if !ok || used[name] {
			continue
		}
		used[name] = true
		groups = append(groups, g)
	}
	return groups
}

// EditablePaths names the groups operators prune, shims first, for the
// remediation message.
func (c *Config) EditablePaths() []string {
	return []string{c.ShimRBIDir, c.TodoRBIFile}
}
