// Command eprime2tabfile converts experiment log files into one
// tab-delimited table, optionally adding derived columns declared in a YAML
// definition file.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	eprime "github.com/ischwabacher/optimus-ep"
)

func main() {
	app := &cli.App{
		Name:      "eprime2tabfile",
		Usage:     "convert experiment log files to a tab-delimited table",
		ArgsUsage: "FILE [FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write output to `FILE` instead of stdout",
			},
			&cli.StringFlag{
				Name:    "columns",
				Aliases: []string{"c"},
				Usage:   "load column definitions from YAML `FILE`",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "sort rows by `EXPRESSION`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// columnDefs is the schema of the --columns YAML file. Counter predicates
// are column expressions; a result that is non-blank and non-zero counts as
// true.
type columnDefs struct {
	Columns  []string `yaml:"columns"`
	Computed []struct {
		Name       string `yaml:"name"`
		Expression string `yaml:"expression"`
	} `yaml:"computed"`
	Copydown []struct {
		Name   string `yaml:"name"`
		Source string `yaml:"source"`
	} `yaml:"copydown"`
	Counters []struct {
		Name      string  `yaml:"name"`
		Start     float64 `yaml:"start"`
		CountBy   float64 `yaml:"count_by"`
		CountWhen string  `yaml:"count_when"`
		ResetWhen string  `yaml:"reset_when"`
	} `yaml:"counters"`
	Sort string `yaml:"sort"`
}

func run(ctx *cli.Context) error {
	logger, err := newLogger(ctx.Bool("verbose"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx.NArg() == 0 {
		return cli.Exit("no input files", 1)
	}

	merged := eprime.NewTabularData()
	for _, path := range ctx.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		data, err := eprime.ParseAny(path, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("parsed input",
			zap.String("file", path),
			zap.Int("rows", len(data.Rows)),
			zap.Int("columns", len(data.Columns)))
		merged.Append(data)
	}

	cc := eprime.NewColumnCalculator()
	cc.SetData(merged)

	var defs columnDefs
	if path := ctx.String("columns"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &defs); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := applyDefs(cc, &defs); err != nil {
			return err
		}
	}
	if expr := ctx.String("sort"); expr != "" {
		defs.Sort = expr
	}
	if defs.Sort != "" {
		cc.SortExpression(defs.Sort)
	}

	result, err := realize(cc)
	if err != nil {
		return err
	}
	if len(defs.Columns) > 0 {
		result.SortColumns(defs.Columns)
	}
	logger.Info("writing output",
		zap.Int("rows", len(result.Rows)),
		zap.Int("columns", len(result.Columns)))

	out := os.Stdout
	if path := ctx.String("out"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	return eprime.NewWriter().Write(out, result)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// applyDefs registers the derived columns declared in the definition file.
func applyDefs(cc *eprime.ColumnCalculator, defs *columnDefs) error {
	for _, c := range defs.Computed {
		if err := cc.ComputedColumn(c.Name, c.Expression); err != nil {
			return err
		}
	}
	for _, c := range defs.Copydown {
		if err := cc.CopydownColumn(c.Name, c.Source); err != nil {
			return err
		}
	}
	for _, c := range defs.Counters {
		opts := eprime.CounterOptions{Start: c.Start}
		if c.CountBy != 0 {
			opts.CountBy = eprime.CountByDelta(c.CountBy)
		}
		if c.CountWhen != "" {
			opts.CountWhen = predicate(c.CountWhen)
		}
		if c.ResetWhen != "" {
			opts.ResetWhen = predicate(c.ResetWhen)
		}
		if err := cc.CounterColumn(c.Name, opts); err != nil {
			return err
		}
	}
	return nil
}

// predicate turns a column expression into a per-row predicate: the
// expression is substituted and evaluated for the row, and any non-blank,
// non-zero result counts as true. Evaluation failures count as false.
func predicate(expr string) func(*eprime.Row) bool {
	parsed := eprime.ParseExpression(expr)
	calc := eprime.NewCalculator()
	return func(r *eprime.Row) bool {
		text := parsed.String()
		for _, ref := range parsed.Columns() {
			v, err := r.Get(ref)
			if err != nil {
				return false
			}
			if v == "" {
				v = "0"
			}
			text = strings.ReplaceAll(text, "{"+ref+"}", v)
		}
		out, err := calc.Compute(text)
		if err != nil {
			return false
		}
		return out != "" && out != "0"
	}
}

// realize evaluates every cell in sort-key order. With no sort expression
// the key is constant and the stable sort keeps the original row order.
func realize(cc *eprime.ColumnCalculator) (*eprime.TabularData, error) {
	rows, err := cc.SortedRows()
	if err != nil {
		return nil, err
	}
	names := cc.Columns()
	out := eprime.NewTabularData()
	for _, name := range names {
		out.AddColumn(name)
	}
	for _, row := range rows {
		cells := make(map[string]string, len(names))
		for _, name := range names {
			v, err := row.Get(name)
			if err != nil {
				return nil, err
			}
			cells[name] = v
		}
		out.AddRow(cells, names)
	}
	return out, nil
}
