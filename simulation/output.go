package simulation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"time", "setpoint", "measurement", "output", "p", "i", "d"}

// WriteCSV writes the trace as CSV with a header row
func WriteCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(csvHeader))
	for _, s := range res.Samples {
		row[0] = formatFloat(s.Time)
		row[1] = formatFloat(s.Setpoint)
		row[2] = formatFloat(s.Measurement)
		row[3] = formatFloat(s.Output)
		row[4] = formatFloat(s.Terms.P)
		row[5] = formatFloat(s.Terms.I)
		row[6] = formatFloat(s.Terms.D)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", s.Step, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteJSON writes the full result, trace and summary, as indented JSON
func WriteJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
