package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/refjoin/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Namespaces map[string]string // prefix=uri bound before validation
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	NodeTypes []string                 `json:"node_types,omitempty"`
	Errors    []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema.cue|schema-dir>",
		Short: "Validate node type definitions",
		Long: `Validate CUE node type definitions without starting a repository.

Files are registered in name order against a fresh registry, so a file
may use the namespaces and supertypes of the files before it.

Examples:
  refjoin validate testdata/schema/sramp.cue
  refjoin validate ./schema --namespace ex=http://example.com/ns
  refjoin validate ./schema --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringToStringVar(&opts.Namespaces, "namespace", nil, "namespace binding prefix=uri (repeatable)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSchema(path)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loadResult.Files), path)

	reg := schema.NewRegistry()
	prefixes := make([]string, 0, len(opts.Namespaces))
	for p := range opts.Namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if err := reg.RegisterNamespace(p, opts.Namespaces[p]); err != nil {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
	}

	var validationErrors []schema.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			ve := schema.ValidationError{Code: loadErr.Code, Field: "load", Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				ve.Line = loadErr.Pos.Line()
			}
			validationErrors = append(validationErrors, ve)
		}
	}

	var nodeTypes []string
	for _, f := range loadResult.Files {
		formatter.VerboseLog("Validating %s (%d node types)", f.Path, len(f.Definitions.NodeTypes))
		err := reg.RegisterNodeTypes(f.Definitions, false)
		var regErr *schema.RegistrationError
		switch {
		case errors.As(err, &regErr):
			validationErrors = append(validationErrors, regErr.Errors...)
		case err != nil:
			validationErrors = append(validationErrors, schema.ValidationError{
				Code: ErrCodeGeneric, Field: f.Path, Message: err.Error(),
			})
		default:
			for _, nt := range f.Definitions.NodeTypes {
				nodeTypes = append(nodeTypes, nt.Name)
			}
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, nodeTypes)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, nodeTypes []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, NodeTypes: nodeTypes})
	}

	formatter.Passf("Schema valid (%d node types)", len(nodeTypes))
	if formatter.Verbose {
		for _, name := range nodeTypes {
			fmt.Fprintf(formatter.Writer, "  %s\n", name)
		}
	}
	return nil
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	formatter.Failf("Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
