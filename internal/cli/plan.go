package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querykit/internal/aggregate"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/planner"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/querysql"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	RequestFlags
	Dialect string // overrides database.driver
}

// PlannedQuery is one compiled SQL statement.
type PlannedQuery struct {
	Name        string `json:"name"`
	SQL         string `json:"sql"`
	Args        []any  `json:"args,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// PlanResult lists every statement a request would run.
type PlanResult struct {
	Dialect  string         `json:"dialect"`
	Queries  []PlannedQuery `json:"queries"`
	Warnings []string       `json:"warnings,omitempty"`
}

type namedPlan struct {
	name string
	plan *queryir.Plan
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the SQL a request compiles to",
		Long: `Plan a request without running it and print every statement: the
primary query, the count query for paginated requests, and one query per
distinct and meta column.

Example:
  querykit plan --schema ./schema --root Order -f 'status:PAID' --sort total:desc --page 1 --size 20
  querykit plan --schema ./schema --root Order --meta 'total:sum:status' --dialect postgres`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	opts.RequestFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres); default from config")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, opts.Schema)
	if err != nil {
		return err
	}
	dialect := cfg.Database.Dialect
	if opts.Dialect != "" {
		if dialect, err = querysql.ParseDialect(opts.Dialect); err != nil {
			return WrapExitError(ExitCommandError, "invalid dialect", err)
		}
	}

	_, resolver, err := loadSchema(cfg.SchemaDir)
	if err != nil {
		return err
	}
	p := planner.New(resolver, cfg.Query)

	req, err := opts.build(cfg.Query)
	if err != nil {
		return outputRequestError(formatter, err)
	}
	plans, err := p.Build(req)
	if err != nil {
		return outputRequestError(formatter, err)
	}
	distinct, err := aggregate.DistinctColumns(p, req)
	if err != nil {
		return outputRequestError(formatter, err)
	}
	meta, err := aggregate.MetaColumns(p, req)
	if err != nil {
		return outputRequestError(formatter, err)
	}

	named := []namedPlan{{"primary", plans.Primary}}
	if plans.Count != nil {
		named = append(named, namedPlan{"count", plans.Count})
	}
	for _, col := range append(distinct, meta...) {
		named = append(named, namedPlan{col.Key, col.Plan})
	}

	compiler := querysql.NewCompiler(dialect)
	result := PlanResult{Dialect: string(dialect), Warnings: plans.Warnings}
	for _, n := range named {
		sql, args, err := compiler.Compile(n.plan)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile "+n.name, err)
		}
		fp, err := ir.Fingerprint(ir.DomainPlan, querysql.Statement(sql, args))
		if err != nil {
			return err
		}
		result.Queries = append(result.Queries, PlannedQuery{Name: n.name, SQL: sql, Args: args, Fingerprint: fp})
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	for _, q := range result.Queries {
		fmt.Fprintf(formatter.Writer, "-- %s\n%s\n\n", q.Name, querysql.Statement(q.SQL, q.Args))
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s\n", w)
	}
	return nil
}
