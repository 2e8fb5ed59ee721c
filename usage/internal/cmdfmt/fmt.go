// Package cmdfmt prints structured command output as a table or JSON.
package cmdfmt

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/viper"
)

const (
	OutputKey  = "output"
	ColumnsKey = "columns"
)

// OutputType controls how structured output is printed.
type OutputType string

const (
	OutputTable      OutputType = "table"
	OutputJSON       OutputType = "json"
	OutputJSONPretty OutputType = "json-pretty"
	// OutputNDJSON prints one object per line as soon as it is added.
	OutputNDJSON OutputType = "ndjson"
)

var OutputTypes = []OutputType{OutputTable, OutputJSON, OutputJSONPretty, OutputNDJSON}

// Printf is like fmt.Printf except it prints to stderr so stdout only carries structured output.
func Printf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}

// Options select the output type and the printed columns. Nil Columns prints the defaults, "all"
// prints everything.
type Options struct {
	Output  OutputType
	Columns []string
}

// OptionsFromViper reads the global output flags.
func OptionsFromViper() Options {
	opts := Options{Output: OutputType(viper.GetString(OutputKey))}
	if viper.IsSet(ColumnsKey) {
		opts.Columns = viper.GetStringSlice(ColumnsKey)
	}
	return opts
}

func (o Options) Validate() error {
	if o.Output != "" && !slices.Contains(OutputTypes, o.Output) {
		return fmt.Errorf("unsupported output type %q (must be one of %v)", o.Output, OutputTypes)
	}
	return nil
}

type printer interface {
	AppendRow(row table.Row, configs ...table.RowConfig)
	Render() string
	SetColumnConfigs(configs []table.ColumnConfig)
}

// Printomatic prints rows with a fixed set of columns. Call Flush once all rows were added.
type Printomatic struct {
	w         io.Writer
	printer   printer
	columns   []string
	printCols []string
	output    OutputType
	rows      int
}

// NewPrintomatic creates a Printomatic writing to w. Column names are lower case, spaces become
// underscores so they double as JSON keys.
func NewPrintomatic(w io.Writer, columns []string, defaultColumns []string, opts Options) *Printomatic {
	printCols := defaultColumns
	if len(opts.Columns) > 0 {
		printCols = opts.Columns
	}
	output := opts.Output
	if output == "" {
		output = OutputTable
	}
	normalize := func(in []string) []string {
		out := make([]string, len(in))
		for i, c := range in {
			out[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		return out
	}
	p := &Printomatic{
		w:         w,
		columns:   normalize(columns),
		printCols: normalize(printCols),
		output:    output,
	}
	p.replacePrinter()
	return p
}

func (p *Printomatic) replacePrinter() {
	switch p.output {
	case OutputJSON, OutputJSONPretty, OutputNDJSON:
		p.printer = newJSONPrinter(p.output == OutputJSONPretty, p.output == OutputNDJSON)
	default:
		// Spaces only, easy to parse with awk and friends.
		tbl := table.NewWriter()
		tbl.SetStyle(table.Style{
			Box: table.BoxStyle{PaddingRight: "  "},
			Format: table.FormatOptions{
				Header: text.FormatUpper,
			},
		})
		row := table.Row{}
		for _, h := range p.columns {
			row = append(row, h)
		}
		tbl.AppendHeader(row)
		p.printer = tbl
	}

	colCfg := make([]table.ColumnConfig, 0, len(p.columns))
	for i, name := range p.columns {
		hidden := !slices.Contains(p.printCols, name) && !slices.Contains(p.printCols, "all")
		colCfg = append(colCfg, table.ColumnConfig{Number: i + 1, Name: name, Hidden: hidden, Align: text.AlignLeft, AlignHeader: text.AlignLeft})
	}
	p.printer.SetColumnConfigs(colCfg)
}

// AddItem adds one row with a value for every column.
func (p *Printomatic) AddItem(fields ...any) {
	p.printer.AppendRow(fields)
	p.rows++
	if p.output == OutputNDJSON {
		fmt.Fprintln(p.w, p.printer.Render())
		p.replacePrinter()
	}
}

// Flush prints all rows not printed yet.
func (p *Printomatic) Flush() {
	if p.output == OutputNDJSON || p.rows == 0 {
		return
	}
	fmt.Fprintln(p.w, p.printer.Render())
	p.rows = 0
	p.replacePrinter()
}
