// Package report renders segregation results for people and plotting tools.
//
// Compositions are printed as full compositions in atomic percent, the
// dependent element reconstructed. Undetermined temperatures are reported
// explicitly as "no data".
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/gbseg/internal/segregation"
)

// NoData marks a temperature without a determined boundary composition.
const NoData = "no data"

// Format selects a renderer.
type Format string

const (
	Table Format = "table"
	CSV   Format = "csv"
	JSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Table, CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want table, csv or json)", s)
	}
}

// Write renders series to w in the given format.
func Write(w io.Writer, series *segregation.ResultSeries, f Format) error {
	switch f {
	case Table:
		return WriteTable(w, series)
	case CSV:
		return WriteCSV(w, series)
	case JSON:
		return WriteJSON(w, series)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// WriteTable writes an aligned text table followed by a summary line.
func WriteTable(w io.Writer, series *segregation.ResultSeries) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header, rule := "T (K)\tSTATUS\tJ", "-----\t------\t-"
	for _, e := range series.Elements() {
		header += "\t" + string(e) + " (at.%)"
		rule += "\t------"
	}
	fmt.Fprintln(tw, header)
	fmt.Fprintln(tw, rule)

	for i := 0; i < series.Len(); i++ {
		o := series.At(i)
		row := fmt.Sprintf("%.1f\t%s\t%s", o.Temperature, o.Status, score(o.Score))
		if full, ok := series.Full(i); ok {
			for _, x := range full {
				row += fmt.Sprintf("\t%.3f", 100*x)
			}
		} else {
			row += strings.Repeat("\t"+NoData, len(series.Elements()))
		}
		fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nConverged: %d/%d, oracle evaluations: %d\n", series.Converged(), series.Len(), series.Evaluations())
	return err
}

// WriteCSV writes one row per temperature. Composition cells of undetermined
// temperatures hold NoData.
func WriteCSV(w io.Writer, series *segregation.ResultSeries) error {
	cw := csv.NewWriter(w)

	header := []string{"temperature", "status", "score", "evaluations", "seed"}
	for _, e := range series.Elements() {
		header = append(header, "x_"+string(e)+"_at_pct")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	for i := 0; i < series.Len(); i++ {
		o := series.At(i)
		rec := []string{
			strconv.FormatFloat(o.Temperature, 'g', -1, 64),
			o.Status.String(),
			score(o.Score),
			strconv.Itoa(o.Evaluations),
			o.Seed.String(),
		}
		if full, ok := series.Full(i); ok {
			for _, x := range full {
				rec = append(rec, strconv.FormatFloat(100*x, 'f', 6, 64))
			}
		} else {
			for range series.Elements() {
				rec = append(rec, NoData)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the series' JSON encoding, indented.
func WriteJSON(w io.Writer, series *segregation.ResultSeries) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(series); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}

func score(j float64) string {
	if math.IsInf(j, 0) || math.IsNaN(j) {
		return "inf"
	}
	return strconv.FormatFloat(j, 'g', 4, 64)
}
