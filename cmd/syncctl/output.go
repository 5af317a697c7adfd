package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printer writes command results in the selected format. Table output
// needs header and rows; json and yaml encode the value itself.
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", formatTable:
		format = formatTable
	case formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, yaml)", format)
	}
	return &printer{out: out, format: format}, nil
}

func (p *printer) print(v any, header table.Row, rows []table.Row) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(v)); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := table.NewWriter()
		tw.SetOutputMirror(p.out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(header)
		tw.AppendRows(rows)
		tw.Render()
		return nil
	}
}

// toPlain round-trips v through JSON so yaml output uses the json tags
// and time formatting of the API.
func toPlain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return v
	}
	return plain
}
