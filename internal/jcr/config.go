package jcr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage types.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// DefaultWorkspace is the workspace used when the configuration names none.
const DefaultWorkspace = "default"

// Configuration describes one repository. It is read from JSON or YAML:
//
//	{
//	  "name": "multiref",
//	  "storage": {"type": "memory"},
//	  "workspaces": {"default": "default"},
//	  "nodeTypes": ["sramp.cue"],
//	  "query": {"enabled": true}
//	}
type Configuration struct {
	Name       string          `yaml:"name" validate:"required"`
	Storage    StorageConfig   `yaml:"storage"`
	Workspaces WorkspaceConfig `yaml:"workspaces"`
	// NodeTypes lists CUE schema files registered when the repository
	// starts. Relative paths resolve against BaseDir.
	NodeTypes []string    `yaml:"nodeTypes" validate:"dive,required"`
	Query     QueryConfig `yaml:"query"`

	// BaseDir is the directory of the configuration file, if read from one.
	BaseDir string `yaml:"-"`
}

// StorageConfig selects where node content lives.
type StorageConfig struct {
	Type string `yaml:"type" validate:"oneof=memory file"`
	Path string `yaml:"path" validate:"required_if=Type file"`
}

// WorkspaceConfig names the workspaces created at startup.
type WorkspaceConfig struct {
	Default    string   `yaml:"default" validate:"required"`
	Predefined []string `yaml:"predefined" validate:"dive,required"`
}

// QueryConfig toggles query support.
type QueryConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// QueryEnabled reports whether queries may be created. Defaults to true.
func (c *Configuration) QueryEnabled() bool {
	return c.Query.Enabled == nil || *c.Query.Enabled
}

// WorkspaceNames returns the default workspace followed by the predefined
// ones, without duplicates.
func (c *Configuration) WorkspaceNames() []string {
	names := []string{c.Workspaces.Default}
	for _, ws := range c.Workspaces.Predefined {
		if ws != c.Workspaces.Default {
			names = append(names, ws)
		}
	}
	return names
}

// NodeTypePaths returns NodeTypes resolved against BaseDir.
func (c *Configuration) NodeTypePaths() []string {
	out := make([]string, len(c.NodeTypes))
	for i, p := range c.NodeTypes {
		if c.BaseDir != "" && !filepath.IsAbs(p) {
			p = filepath.Join(c.BaseDir, p)
		}
		out[i] = p
	}
	return out
}

// ReadConfiguration reads a configuration file. BaseDir is set to the
// file's directory.
func ReadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError(ErrCodeConfiguration, path, err, "read configuration")
	}
	cfg, err := ParseConfiguration(data)
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = filepath.Dir(path)
	return cfg, nil
}

// ParseConfiguration decodes JSON or YAML configuration. Unknown fields are
// an error. Defaults are applied; validation is left to Validate.
func ParseConfiguration(data []byte) (*Configuration, error) {
	cfg := &Configuration{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, wrapError(ErrCodeConfiguration, "", err, "parse configuration")
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Configuration) applyDefaults() {
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMemory
	}
	if c.Workspaces.Default == "" {
		c.Workspaces.Default = DefaultWorkspace
	}
}

// Severity grades a configuration problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is one configuration finding.
type Problem struct {
	Severity Severity
	Field    string
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s: %s", p.Severity, p.Field, p.Message)
}

// Problems collects configuration findings.
type Problems []Problem

// HasErrors reports whether any problem is an error.
func (ps Problems) HasErrors() bool {
	for _, p := range ps {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (ps Problems) String() string {
	lines := make([]string, len(ps))
	for i, p := range ps {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Struct tags cover single fields; the
// cross-field and filesystem rules are checked here.
func (c *Configuration) Validate() Problems {
	var problems Problems

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Problems{{Severity: SeverityError, Field: "configuration", Message: err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, Problem{
				Severity: SeverityError,
				Field:    fieldPath(fe.Namespace()),
				Message:  fieldMessage(fe),
			})
		}
	}

	seen := map[string]bool{c.Workspaces.Default: true}
	for _, ws := range c.Workspaces.Predefined {
		if seen[ws] {
			problems = append(problems, Problem{
				Severity: SeverityWarning,
				Field:    "workspaces.predefined",
				Message:  fmt.Sprintf("workspace %q listed more than once", ws),
			})
		}
		seen[ws] = true
	}

	if c.Storage.Type == StorageMemory && c.Storage.Path != "" {
		problems = append(problems, Problem{
			Severity: SeverityWarning,
			Field:    "storage.path",
			Message:  "ignored for memory storage",
		})
	}

	for i, p := range c.NodeTypePaths() {
		if c.NodeTypes[i] == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			problems = append(problems, Problem{
				Severity: SeverityError,
				Field:    fmt.Sprintf("nodeTypes[%d]", i),
				Message:  fmt.Sprintf("schema file %s: %v", p, errors.Unwrap(err)),
			})
		}
	}

	return problems
}

// fieldPath turns "Configuration.Storage.Type" into "storage.type".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.ReplaceAll(fe.Param(), " ", " is "))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
