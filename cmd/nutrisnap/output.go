package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// printCard writes the result panel. Macros, ingredients and the summary are
// shown only for food.
func printCard(w io.Writer, rec domain.AnalysisRecord) {
	title := rec.Name
	if title == "" {
		title = "Analysis Result"
	}
	fmt.Fprintln(w, title)
	if rec.ShortReport != "" {
		fmt.Fprintln(w, rec.ShortReport)
	}
	if !rec.IsFood {
		return
	}
	fmt.Fprintf(w, "HEALTH SCORE: %d/100\n", rec.HealthScore)
	fmt.Fprintln(w, renderTable(
		[]string{"Calories", "Protein", "Carbs", "Fats"},
		[][]string{{strconv.Itoa(rec.Calories), grams(rec.Protein), grams(rec.Carbs), grams(rec.Fats)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))
	ingredients := "None"
	if len(rec.Ingredients) > 0 {
		ingredients = strings.Join(rec.Ingredients, ", ")
	}
	fmt.Fprintf(w, "Ingredients: %s\n", ingredients)
	if rec.HealthSummary != "" {
		fmt.Fprintf(w, "AI Analysis: %s\n", rec.HealthSummary)
	}
}

func grams(v int) string {
	return strconv.Itoa(v) + "g"
}
