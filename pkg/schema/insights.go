package schema

import (
	"math"
	"time"
)

type NumericSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type TemporalRange struct {
	Column string    `json:"column"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// Insights are precomputed facts handed to the reasoning service alongside
// the sample, so totals do not depend on the model doing arithmetic.
type Insights struct {
	RowCount int              `json:"row_count"`
	Numeric  []NumericSummary `json:"numeric,omitempty"`
	Temporal []TemporalRange  `json:"temporal,omitempty"`
}

// Summarize computes per-column aggregates over every row of the result set
func Summarize(rs ResultSet, cols []Column) Insights {
	in := Insights{RowCount: len(rs.Rows)}

	for _, col := range cols {
		switch col.Type {
		case TypeNumeric:
			s := NumericSummary{Column: col.Name, Min: math.Inf(1), Max: math.Inf(-1)}
			for _, r := range rs.Rows {
				f, ok := ToFloat(r[col.Name])
				if !ok {
					continue
				}
				s.Count++
				s.Sum += f
				s.Min = math.Min(s.Min, f)
				s.Max = math.Max(s.Max, f)
			}
			if s.Count == 0 {
				continue
			}
			s.Mean = round2(s.Sum / float64(s.Count))
			s.Sum = round2(s.Sum)
			in.Numeric = append(in.Numeric, s)

		case TypeTemporal:
			var tr TemporalRange
			found := false
			for _, r := range rs.Rows {
				t, ok := ToTime(r[col.Name])
				if !ok {
					continue
				}
				if !found || t.Before(tr.From) {
					tr.From = t
				}
				if !found || t.After(tr.To) {
					tr.To = t
				}
				found = true
			}
			if found {
				tr.Column = col.Name
				in.Temporal = append(in.Temporal, tr)
			}
		}
	}
	return in
}

// Summary returns the numeric summary for a column
func (in Insights) Summary(column string) (NumericSummary, bool) {
	for _, s := range in.Numeric {
		if s.Column == column {
			return s, true
		}
	}
	return NumericSummary{}, false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
