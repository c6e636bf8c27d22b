package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/jcr"
	"github.com/roach88/refjoin/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Config    string
	Workspace string
}

// QueryOutput is the JSON payload of a query result.
type QueryOutput struct {
	Columns []string              `json:"columns"`
	Rows    []map[string][]string `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query --config <repository.json> <statement>",
		Short: "Run a JCR-SQL2 query against a repository",
		Long: `Start the repository described by a configuration file, run one
JCR-SQL2 statement against the saved content of a workspace, and print the
result.

Exit codes:
  0 - Query executed
  1 - Query failed at execution time
  2 - Command error (bad configuration, invalid query)

Examples:
  refjoin query --config repo.json "SELECT * FROM [sramp:baseArtifactType]"
  refjoin query --config repo.yaml --workspace archive --format json "..."`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to repository configuration (required)")
	cmd.Flags().StringVar(&opts.Workspace, "workspace", "", "workspace to query (default: the configured default)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runQuery(opts *QueryOptions, statement string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := formatter.Logger()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := jcr.ReadConfiguration(opts.Config)
	if err != nil {
		return outputQueryError(formatter, ErrCodeConfiguration, ExitCommandError, err)
	}
	problems := cfg.Validate()
	for _, p := range problems {
		logger.Warn("configuration problem", "problem", p.String())
	}
	if problems.HasErrors() {
		return outputQueryError(formatter, ErrCodeConfiguration, ExitCommandError, errors.New(problems.String()))
	}

	logger.Info("starting repository", "config", opts.Config, "storage", cfg.Storage.Type)
	repo, err := jcr.New(ctx, cfg, jcr.WithLogger(logger))
	if err != nil {
		return outputQueryError(formatter, ErrCodeRepository, ExitCommandError, err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("error closing repository", "error", closeErr)
		}
	}()

	session, err := repo.Login(ctx, opts.Workspace)
	if err != nil {
		return outputQueryError(formatter, ErrCodeRepository, ExitCommandError, err)
	}
	defer session.Logout()

	qm := session.Workspace().QueryManager()
	q, err := qm.CreateQuery(statement, jcr.JCRSQL2)
	if err != nil {
		return outputQueryError(formatter, queryErrorCode(err), ExitCommandError, err)
	}

	res, err := q.Execute(ctx)
	if err != nil {
		return outputQueryError(formatter, queryErrorCode(err), ExitFailure, err)
	}
	logger.Debug("query executed", "rows", res.Size(), "columns", len(res.Columns()))

	if formatter.Format == "json" {
		return formatter.Success(queryOutput(res))
	}
	fmt.Fprintln(formatter.Writer, res.String())
	fmt.Fprintf(formatter.Writer, "%d row(s)\n", res.Size())
	return nil
}

// queryOutput converts a result to its JSON form. Columns a row does not
// have are left out of that row.
func queryOutput(res *jcr.QueryResult) QueryOutput {
	out := QueryOutput{Columns: res.Columns(), Rows: make([]map[string][]string, 0, res.Size())}
	for _, row := range res.Rows() {
		m := make(map[string][]string, len(out.Columns))
		for _, c := range out.Columns {
			if row.Has(c) {
				m[c] = ir.Strings(row.Values(c))
			}
		}
		out.Rows = append(out.Rows, m)
	}
	return out
}

// queryErrorCode prefers the query error code (SYNTAX, UNKNOWN_PROPERTY,
// ...) over the repository code that wraps it.
func queryErrorCode(err error) string {
	var qe *queryir.QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	var re *jcr.RepositoryError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrCodeGeneric
}

func outputQueryError(formatter *OutputFormatter, code string, exit int, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}
