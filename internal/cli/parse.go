package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querykit/internal/config"
	"github.com/roach88/querykit/internal/filter"
	"github.com/roach88/querykit/internal/ir"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Schema string // optional; enables path checks
	Root   string
}

// ParseResult is the parsed filter tree.
type ParseResult struct {
	Filter string          `json:"filter"`
	Tree   json.RawMessage `json:"tree"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <term>...",
		Short: "Parse filter terms into a filter tree",
		Long: `Parse textual filter terms and print the resulting tree.

Terms are ANDed together. With --schema and --root, every path must
resolve from the root entity; permissive paths that do not are dropped.

Example:
  querykit parse 'status:IN:PAID,NEW' 'total:>=50'
  querykit parse --schema ./schema --root Order 'customer.name:Alice OR note:IS_EMPTY'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema for path checks")
	cmd.Flags().StringVar(&opts.Root, "root", "", "root entity for path checks")

	return cmd
}

func runParse(opts *ParseOptions, terms []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	parserOpts := []filter.Option{filter.WithSyntax(cfg.Query.Syntax)}
	if opts.Schema != "" {
		if opts.Root == "" {
			return NewExitError(ExitCommandError, "--root is required with --schema")
		}
		_, resolver, err := loadSchema(opts.Schema)
		if err != nil {
			return err
		}
		parserOpts = append(parserOpts, filter.WithResolver(resolver, opts.Root, cfg.Query.AllowDeepDive))
	}

	tree, err := filter.NewParser(parserOpts...).Parse(terms...)
	if err != nil {
		return outputRequestError(formatter, err)
	}

	if opts.Format == "json" {
		data, err := ir.MarshalCanonical(tree.Describe())
		if err != nil {
			return err
		}
		return formatter.Success(ParseResult{Filter: tree.Render(cfg.Query.Syntax), Tree: data})
	}

	fmt.Fprintln(formatter.Writer, tree.Render(cfg.Query.Syntax))
	printTree(formatter.Writer, tree, 0)
	return nil
}

// printTree writes an indented outline of c.
func printTree(w io.Writer, c *filter.Compound, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s\n", indent, c.Logic)
	for _, f := range c.Filters {
		values := make([]string, len(f.Values))
		for i, v := range f.Values {
			values[i] = fmt.Sprintf("%s(%s)", v.Kind(), ir.Text(v))
		}
		line := fmt.Sprintf("%s  %s %s", indent, f.Path, f.Operator)
		if f.Modifier != filter.ModNone {
			line += " " + f.Modifier.String()
		}
		if len(values) > 0 {
			line += " " + strings.Join(values, ", ")
		}
		fmt.Fprintln(w, line)
	}
	for _, ch := range c.Children {
		printTree(w, ch, depth+1)
	}
}

// outputRequestError reports a request that could not be parsed or
// planned. Coded query errors keep their code.
func outputRequestError(formatter *OutputFormatter, err error) error {
	code := string(ir.CodeOf(err))
	if code == "" {
		code = "E001"
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid request", err)
}
