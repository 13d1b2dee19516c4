package correlation

import (
	"sort"
	"strings"
	"unicode"

	"euno-analytics-be/pkg/schema"
)

const (
	DefaultMinOverlap = 0.2
	DefaultSampleSize = 100
)

// SourceSample is one data source as seen by the resolver: its profile plus a row sample
type SourceSample struct {
	SourceID string
	Name     string
	Columns  []schema.Column
	Rows     []schema.Row
}

type ColumnRef struct {
	SourceID string `json:"source_id"`
	Column   string `json:"column"`
}

// Key is a proposed join column between two sources. It is never applied by
// the resolver itself.
type Key struct {
	Name     string    `json:"name"`
	Left     ColumnRef `json:"left"`
	Right    ColumnRef `json:"right"`
	Overlap  float64   `json:"overlap"`
	Temporal bool      `json:"temporal"`
}

type Options struct {
	MinOverlap float64
	SampleSize int
}

type Resolver struct {
	opts Options
}

func NewResolver(opts Options) *Resolver {
	if opts.MinOverlap <= 0 || opts.MinOverlap > 1 {
		opts.MinOverlap = DefaultMinOverlap
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Resolver{opts: opts}
}

// Resolve proposes join keys across every pair of sources. Sources with no
// shared columns produce an empty, non-nil result.
func (r *Resolver) Resolve(sources []SourceSample) []Key {
	keys := []Key{}
	if len(sources) < 2 {
		return keys
	}

	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			keys = append(keys, r.pair(sources[i], sources[j])...)
		}
	}

	sort.SliceStable(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.Overlap != kb.Overlap {
			return ka.Overlap > kb.Overlap
		}
		if ka.Temporal != kb.Temporal {
			return ka.Temporal
		}
		if ka.Name != kb.Name {
			return ka.Name < kb.Name
		}
		if ka.Left.SourceID != kb.Left.SourceID {
			return ka.Left.SourceID < kb.Left.SourceID
		}
		return ka.Right.SourceID < kb.Right.SourceID
	})
	return keys
}

func (r *Resolver) pair(left, right SourceSample) []Key {
	var out []Key
	for _, lc := range left.Columns {
		ln := NormalizeName(lc.Name)
		if ln == "" {
			continue
		}
		for _, rc := range right.Columns {
			if NormalizeName(rc.Name) != ln {
				continue
			}
			overlap := Overlap(
				r.values(left.Rows, lc.Name),
				r.values(right.Rows, rc.Name),
			)
			if overlap <= 0 || overlap < r.opts.MinOverlap {
				continue
			}
			out = append(out, Key{
				Name:     ln,
				Left:     ColumnRef{SourceID: left.SourceID, Column: lc.Name},
				Right:    ColumnRef{SourceID: right.SourceID, Column: rc.Name},
				Overlap:  overlap,
				Temporal: lc.Type == schema.TypeTemporal || rc.Type == schema.TypeTemporal,
			})
		}
	}
	return out
}

func (r *Resolver) values(rows []schema.Row, column string) map[string]struct{} {
	set := make(map[string]struct{})
	for i, row := range rows {
		if i >= r.opts.SampleSize {
			break
		}
		v := schema.NormalizeValue(row[column])
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// NormalizeName lowercases a column name, strips punctuation and a trailing
// plural "s", so "Customer_IDs" and "customer id" both become "customerid".
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if len(n) > 3 && strings.HasSuffix(n, "s") && !strings.HasSuffix(n, "ss") {
		n = strings.TrimSuffix(n, "s")
	}
	return n
}

// Overlap is the Jaccard ratio of two value sets
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for v := range a {
		if _, ok := b[v]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
