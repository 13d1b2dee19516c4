package chart

import (
	"sort"

	"euno-analytics-be/pkg/schema"
)

// MaxPoints caps the series sent to the client
const MaxPoints = 50

// Shape fills spec.Data from the result set: y values are summed per
// distinct x, time axes are sorted chronologically for line and area charts,
// everything else keeps first-seen order.
func Shape(spec Spec, rs schema.ResultSet) Spec {
	type bucket struct {
		x  interface{}
		y  float64
		at int
	}

	buckets := make(map[string]*bucket)
	var order []*bucket
	for i, row := range rs.Rows {
		xv, ok := row[spec.XAxis]
		if !ok || xv == nil {
			continue
		}
		y, ok := schema.ToFloat(row[spec.YAxis])
		if !ok {
			continue
		}
		key := schema.NormalizeValue(xv)
		b, seen := buckets[key]
		if !seen {
			b = &bucket{x: xv, at: i}
			buckets[key] = b
			order = append(order, b)
		}
		b.y += y
	}

	if spec.Type == TypeLine || spec.Type == TypeArea {
		sort.SliceStable(order, func(i, j int) bool {
			ti, okI := schema.ToTime(order[i].x)
			tj, okJ := schema.ToTime(order[j].x)
			if okI && okJ {
				return ti.Before(tj)
			}
			return order[i].at < order[j].at
		})
	}

	if len(order) > MaxPoints {
		order = order[:MaxPoints]
	}

	spec.Data = make([]Point, len(order))
	for i, b := range order {
		spec.Data[i] = Point{X: b.x, Y: b.y}
	}
	return spec
}
