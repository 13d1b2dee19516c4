package schema

import (
	"sort"
	"strings"
)

// ColumnType is the inferred kind of a column
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeTemporal    ColumnType = "temporal"
)

// Row is a single record keyed by column name
type Row map[string]interface{}

// ResultSet is an ordered batch of rows. Columns carries the column order,
// since Row maps do not preserve insertion order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewResultSet builds a result set. When columns is empty the column list is
// derived from the rows (sorted, so repeated calls agree).
func NewResultSet(columns []string, rows []Row) ResultSet {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, r := range rows {
			for k := range r {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}
	return ResultSet{Columns: columns, Rows: rows}
}

// Head returns a result set holding at most n rows
func (rs ResultSet) Head(n int) ResultSet {
	if n < 0 || n >= len(rs.Rows) {
		return rs
	}
	return ResultSet{Columns: rs.Columns, Rows: rs.Rows[:n]}
}

// Column is one entry of a schema profile
type Column struct {
	Name         string        `json:"name" yaml:"name"`
	Type         ColumnType    `json:"type" yaml:"type"`
	SampleValues []interface{} `json:"sample_values,omitempty" yaml:"sample_values,omitempty"`
}

// temporalKeywords mark a column as temporal by name alone
var temporalKeywords = []string{"date", "time", "created", "updated", "month", "year", "day"}

const (
	// representativeRows bounds how far we look for a non-empty value
	representativeRows = 5
	maxSampleValues    = 3
)

// Profile classifies every column of the result set, in column order.
// The first non-empty value among the leading rows is the representative.
func Profile(rs ResultSet) []Column {
	cols := make([]Column, 0, len(rs.Columns))
	for _, name := range rs.Columns {
		sample := representative(rs, name)
		cols = append(cols, Column{
			Name:         name,
			Type:         classify(name, sample),
			SampleValues: sampleValues(rs, name),
		})
	}
	return cols
}

func classify(name string, sample interface{}) ColumnType {
	if IsTemporalName(name) {
		return TypeTemporal
	}
	if _, ok := ToTime(sample); ok {
		return TypeTemporal
	}
	if _, ok := ToFloat(sample); ok {
		return TypeNumeric
	}
	return TypeCategorical
}

// IsTemporalName reports whether a column name carries a date/time keyword
func IsTemporalName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range temporalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func representative(rs ResultSet, name string) interface{} {
	for i, r := range rs.Rows {
		if i >= representativeRows {
			break
		}
		if v, ok := r[name]; ok && !isEmpty(v) {
			return v
		}
	}
	return nil
}

func sampleValues(rs ResultSet, name string) []interface{} {
	var out []interface{}
	seen := make(map[string]struct{})
	for _, r := range rs.Rows {
		v, ok := r[name]
		if !ok || isEmpty(v) {
			continue
		}
		key := NormalizeValue(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if len(out) == maxSampleValues {
			break
		}
	}
	return out
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Chartability summarizes whether a profile can back a chart
type Chartability struct {
	Chartable  bool
	Numeric    []string // numeric column names, in order
	Dimensions []string // categorical and temporal column names, in order
}

// Assess splits a profile into measures and dimensions. A profile with no
// numeric column or no categorical/temporal column is not chartable.
func Assess(cols []Column) Chartability {
	var c Chartability
	for _, col := range cols {
		switch col.Type {
		case TypeNumeric:
			c.Numeric = append(c.Numeric, col.Name)
		case TypeCategorical, TypeTemporal:
			c.Dimensions = append(c.Dimensions, col.Name)
		}
	}
	c.Chartable = len(c.Numeric) > 0 && len(c.Dimensions) > 0
	return c
}

// Find returns the profiled column with the given name
func Find(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names lists the column names of a profile
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
