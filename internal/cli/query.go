package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
	"github.com/roach88/querykit/internal/querysql"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	RequestFlags
	Database string // SQLite path; overrides database.path
	DSN      string // PostgreSQL DSN; overrides database.dsn and selects postgres
	Metrics  string // file to write Prometheus metrics to after the query
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a request and print the page",
		Long: `Run a request against a database and print the page of rows with
its totals, distinct values and meta values.

Example:
  querykit query --schema ./schema --db shop.db --root Order -f 'status:IN:PAID,NEW' --page 1 --size 20
  querykit query --schema ./schema --dsn postgres://localhost/shop --root Order --meta 'total:sum:status'
  querykit query --schema ./schema --db shop.db --root Order --metrics querykit.prom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	opts.RequestFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics in text format to this file")
	cmd.MarkFlagsMutuallyExclusive("db", "dsn")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, opts.Schema)
	if err != nil {
		return err
	}
	switch {
	case opts.DSN != "":
		cfg.Database.Dialect = querysql.Postgres
		cfg.Database.DSN = opts.DSN
	case opts.Database != "":
		cfg.Database.Dialect = querysql.SQLite
		cfg.Database.Path = opts.Database
	}

	req, err := opts.build(cfg.Query)
	if err != nil {
		return outputRequestError(formatter, err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var engineOpts []engine.Option
	registry := prometheus.NewRegistry()
	if opts.Metrics != "" {
		engineOpts = append(engineOpts, engine.WithMetrics(engine.NewMetrics(registry)))
	}

	sess, err := openSession(ctx, cfg, engineOpts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	page, err := sess.engine.Find(ctx, req)
	if opts.Metrics != "" {
		// Failed queries are counted too, so write before checking err.
		if werr := prometheus.WriteToTextfile(opts.Metrics, registry); werr != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", werr)
		}
	}
	if err != nil {
		if engine.StageOf(err) != "" {
			_ = formatter.Error("E_QUERY_FAILED", err.Error(), nil)
			return WrapExitError(ExitCommandError, "query failed", err)
		}
		return outputRequestError(formatter, err)
	}

	if opts.Format == "json" {
		data, err := ir.MarshalCanonical(engine.Describe(page))
		if err != nil {
			return err
		}
		return formatter.JSON(CLIResponse{Status: "ok", Data: json.RawMessage(data), RequestID: page.RequestID})
	}
	return printPage(formatter, page)
}

func printPage(f *OutputFormatter, page *engine.Page[queryir.Row]) error {
	headers := rowLabels(page.Content)
	rows := make([][]string, len(page.Content))
	for i, row := range page.Content {
		rows[i] = make([]string, len(headers))
		for j, h := range headers {
			rows[i][j] = ir.Text(row.Get(h))
		}
	}
	if len(headers) > 0 {
		if err := f.Table(headers, rows); err != nil {
			return err
		}
	}

	if page.Paginated() {
		fmt.Fprintf(f.Writer, "page %d of %d (%d per page), %d total\n",
			page.PageNumber, page.TotalPages, page.PageSize, page.TotalItems)
	} else {
		fmt.Fprintf(f.Writer, "%d row(s)\n", page.TotalItems)
	}

	for _, key := range sortedKeys(page.DistinctValues) {
		fmt.Fprintf(f.Writer, "\n%s\n", key)
		values := page.DistinctValues[key]
		for _, v := range sortedKeys(values) {
			fmt.Fprintf(f.Writer, "  %q: %s\n", v, values[v])
		}
	}
	for _, key := range sortedKeys(page.MetaValues) {
		fmt.Fprintf(f.Writer, "\n%s\n", key)
		values := page.MetaValues[key]
		for _, label := range sortedKeys(values) {
			fmt.Fprintf(f.Writer, "  %q: %s\n", label, ir.Text(values[label]))
		}
	}
	for _, w := range page.Warnings {
		fmt.Fprintf(f.Writer, "warning: %s\n", w)
	}
	f.VerboseLog("request %s", page.RequestID)
	return nil
}

// rowLabels returns the labels of rows with "id" first and the rest
// sorted.
func rowLabels(rows []queryir.Row) []string {
	seen := map[string]bool{}
	var labels []string
	for _, row := range rows {
		for label := range row {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if (labels[i] == "id") != (labels[j] == "id") {
			return labels[i] == "id"
		}
		return labels[i] < labels[j]
	})
	return labels
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
