package correlation

import (
	"testing"

	"euno-analytics-be/pkg/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id string, cols []string, rows []schema.Row) SourceSample {
	rs := schema.NewResultSet(cols, rows)
	return SourceSample{SourceID: id, Name: id, Columns: schema.Profile(rs), Rows: rows}
}

func TestResolve_NoSharedColumnsReturnsEmpty(t *testing.T) {
	r := NewResolver(Options{})
	a := sample("a", []string{"product", "sales"}, []schema.Row{{"product": "x", "sales": 1}})
	b := sample("b", []string{"city", "visits"}, []schema.Row{{"city": "y", "visits": 2}})

	keys := r.Resolve([]SourceSample{a, b})
	require.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestResolve_SingleSourceReturnsEmpty(t *testing.T) {
	keys := NewResolver(Options{}).Resolve([]SourceSample{sample("a", []string{"x"}, nil)})
	require.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestResolve_RanksByOverlapThenTemporal(t *testing.T) {
	orders := sample("orders", []string{"Customer_ID", "order_date", "region"}, []schema.Row{
		{"Customer_ID": 1, "order_date": "2024-01-01", "region": "north"},
		{"Customer_ID": 2, "order_date": "2024-01-02", "region": "south"},
		{"Customer_ID": 3, "order_date": "2024-01-03", "region": "east"},
		{"Customer_ID": 4, "order_date": "2024-01-04", "region": "west"},
	})
	ads := sample("ads", []string{"customer id", "Order Date", "Region"}, []schema.Row{
		{"customer id": "1", "Order Date": "2024-01-01", "Region": "North"},
		{"customer id": "2", "Order Date": "2024-01-02", "Region": "South"},
		{"customer id": "9", "Order Date": "2024-01-05", "Region": "East"},
		{"customer id": "8", "Order Date": "2024-01-06", "Region": "West"},
	})

	keys := NewResolver(Options{}).Resolve([]SourceSample{orders, ads})

	require.Len(t, keys, 3)
	assert.Equal(t, "region", keys[0].Name)
	assert.Equal(t, 1.0, keys[0].Overlap)

	// customer id and order date tie at 2/6; the date column wins the tie
	assert.Equal(t, "orderdate", keys[1].Name)
	assert.True(t, keys[1].Temporal)
	assert.Equal(t, "customerid", keys[2].Name)
	assert.InDelta(t, 2.0/6.0, keys[2].Overlap, 1e-9)

	assert.Equal(t, ColumnRef{SourceID: "orders", Column: "Customer_ID"}, keys[2].Left)
	assert.Equal(t, ColumnRef{SourceID: "ads", Column: "customer id"}, keys[2].Right)
}

func TestResolve_DropsCandidatesBelowThreshold(t *testing.T) {
	a := sample("a", []string{"sku"}, []schema.Row{{"sku": "a"}, {"sku": "b"}, {"sku": "c"}, {"sku": "d"}})
	b := sample("b", []string{"SKU"}, []schema.Row{{"SKU": "a"}, {"SKU": "x"}, {"SKU": "y"}, {"SKU": "z"}})

	// 1 shared out of 7 distinct values
	assert.Empty(t, NewResolver(Options{MinOverlap: 0.2}).Resolve([]SourceSample{a, b}))
	assert.Len(t, NewResolver(Options{MinOverlap: 0.1}).Resolve([]SourceSample{a, b}), 1)
}

func TestResolve_SameNameNoValueOverlap(t *testing.T) {
	a := sample("a", []string{"id"}, []schema.Row{{"id": 1}})
	b := sample("b", []string{"id"}, []schema.Row{{"id": 2}})
	assert.Empty(t, NewResolver(Options{}).Resolve([]SourceSample{a, b}))
}

func TestResolve_RespectsSampleSize(t *testing.T) {
	var left, right []schema.Row
	for i := 0; i < 10; i++ {
		left = append(left, schema.Row{"code": i})
		right = append(right, schema.Row{"code": 100 + i})
	}
	// shared value sits beyond the sample
	left = append(left, schema.Row{"code": 500})
	right = append(right, schema.Row{"code": 500})

	r := NewResolver(Options{SampleSize: 10})
	assert.Empty(t, r.Resolve([]SourceSample{sample("a", []string{"code"}, left), sample("b", []string{"code"}, right)}))
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Customer_IDs": "customerid",
		"customer id":  "customerid",
		"Order-Date":   "orderdate",
		"sales":        "sale",
		"address":      "address",
		"id":           "id",
		"___":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestOverlap(t *testing.T) {
	set := func(vs ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, v := range vs {
			m[v] = struct{}{}
		}
		return m
	}
	assert.Equal(t, 0.0, Overlap(set(), set("a")))
	assert.Equal(t, 1.0, Overlap(set("a", "b"), set("b", "a")))
	assert.Equal(t, 0.5, Overlap(set("a", "b"), set("b")))
}
