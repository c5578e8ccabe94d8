package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// cellColorer picks colors for one cell; nil means plain output.
type cellColorer func(column int, value string) text.Colors

func renderTable(headers []string, rows [][]string, colorer cellColorer) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if colorer != nil {
				if colors := colorer(i, value); len(colors) > 0 {
					r[i] = colors.Sprint(value)
					continue
				}
			}
			r[i] = value
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}
