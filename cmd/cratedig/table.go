package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// Long artist and release names are cut at this width so rows stay on one line.
const maxColumnWidth = 48

type column struct {
	title string
	align columnAlignment
}

func left(title string) column  { return column{title: title} }
func right(title string) column { return column{title: title, align: alignRight} }

// Layouts for each listing the CLI prints.
var (
	historyColumns    = []column{left("Finished"), left("Release"), left("Outcome"), left("Provider"), right("Took"), left("Error")}
	transitionColumns = []column{left("Transition"), left("At"), right("After")}
	slotColumns       = []column{right("Slot"), left("State"), left("Active"), left("Release"), left("Status"), right("Tracks"), left("Provider"), left("Last Activity")}
	queueColumns      = []column{right("#"), left("Artist"), left("Release"), left("Year"), left("Force"), left("Queued"), left("Queue Key")}
	enqueueColumns    = []column{left("Artist"), left("Release"), left("Result"), left("Queue Key")}
)

// renderTable draws rows under columns. Short rows are padded and extra cells
// dropped.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, c := range columns {
		header[i] = c.title
		align := text.AlignLeft
		if c.align == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			WidthMax:         maxColumnWidth,
			WidthMaxEnforcer: text.Trim,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render() + "\n"
}
