package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func earningsOf(amounts ...string) []*Earning {
	out := make([]*Earning, len(amounts))
	for i, a := range amounts {
		out[i] = &Earning{ID: string(rune('a' + i)), Amount: decimal.RequireFromString(a)}
	}
	return out
}

func ids(es []*Earning) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestGreedySelect(t *testing.T) {
	cases := []struct {
		name    string
		amounts []string
		amount  string
		want    []string
		ok      bool
	}{
		{"first two of three", []string{"700", "700", "700"}, "1400", []string{"a", "b"}, true},
		{"no exact subset", []string{"700", "700", "700"}, "1500", nil, false},
		{"skips overshoot", []string{"500", "2000", "300"}, "800", []string{"a", "c"}, true},
		{"greedy misses subset", []string{"600", "500", "500"}, "1000", nil, false},
		{"decimals", []string{"10.25", "0.75"}, "11", []string{"a", "b"}, true},
		{"empty", nil, "1", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Greedy{}.Select(earningsOf(tc.amounts...), decimal.RequireFromString(tc.amount))
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, ids(got))
			}
		})
	}
}

func TestExactSubsetSelect(t *testing.T) {
	x := ExactSubset{Limit: 64}

	got, ok := x.Select(earningsOf("600", "500", "500"), decimal.RequireFromString("1000"))
	require.True(t, ok)
	require.Equal(t, []string{"b", "c"}, ids(got))

	// greedy answer wins whenever it exists
	got, ok = x.Select(earningsOf("700", "700", "700"), decimal.RequireFromString("1400"))
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, ids(got))

	_, ok = x.Select(earningsOf("700", "700", "700"), decimal.RequireFromString("1500"))
	require.False(t, ok)

	got, ok = x.Select(earningsOf("0.30", "0.45", "0.25", "0.20"), decimal.RequireFromString("0.65"))
	require.True(t, ok)
	sum := decimal.Zero
	for _, e := range got {
		sum = sum.Add(e.Amount)
	}
	require.True(t, sum.Equal(decimal.RequireFromString("0.65")))
}

func TestExactSubsetRespectsLimit(t *testing.T) {
	x := ExactSubset{Limit: 2}
	_, ok := x.Select(earningsOf("600", "700", "500", "500"), decimal.RequireFromString("1000"))
	require.False(t, ok)
}

func TestSelectionIsDeterministic(t *testing.T) {
	x := ExactSubset{Limit: 64}
	in := earningsOf("300", "200", "100", "400", "250", "150")
	first, ok := x.Select(in, decimal.RequireFromString("850"))
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := x.Select(in, decimal.RequireFromString("850"))
		require.True(t, ok)
		require.Equal(t, ids(first), ids(again))
	}
}

func TestMinorUnits(t *testing.T) {
	v, ok := minorUnits(decimal.RequireFromString("12.34"))
	require.True(t, ok)
	require.EqualValues(t, 1234, v)

	_, ok = minorUnits(decimal.RequireFromString("1.005"))
	require.False(t, ok)
}
