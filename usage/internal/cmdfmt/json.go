package cmdfmt

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

type jsonPrinter struct {
	columns []table.ColumnConfig
	rows    []map[string]any
	pretty  bool
	single  bool
}

// newJSONPrinter prints an array of objects, or a single object when single is set.
func newJSONPrinter(pretty bool, single bool) *jsonPrinter {
	return &jsonPrinter{rows: make([]map[string]any, 0, 1), pretty: pretty, single: single}
}

func (p *jsonPrinter) SetColumnConfigs(configs []table.ColumnConfig) {
	p.columns = configs
}

func (p *jsonPrinter) AppendRow(row table.Row, configs ...table.RowConfig) {
	if len(p.columns) != len(row) {
		panic(fmt.Sprintf("unable to print json, the number of columns %d does not match the number of values %d (this is likely a bug)", len(p.columns), len(row)))
	}
	item := make(map[string]any, len(row))
	for i, col := range p.columns {
		if !col.Hidden {
			item[col.Name] = row[i]
		}
	}
	p.rows = append(p.rows, item)
}

func (p *jsonPrinter) Render() string {
	var data any = p.rows
	if p.single {
		if len(p.rows) != 1 {
			panic(fmt.Sprintf("data contains %d rows but only one row can be printed at a time with ndjson (this is likely a bug)", len(p.rows)))
		}
		data = p.rows[0]
	}
	var out []byte
	var err error
	if p.pretty {
		out, err = json.MarshalIndent(data, "", " ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		panic("unable to marshal json (this is likely a bug): " + err.Error())
	}
	return string(out)
}
