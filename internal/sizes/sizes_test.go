package sizes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortAlphaSizes(t *testing.T) {
	in := []string{"XL", "S", "M", "L", "XS", "XXL"}
	got := Sort(in)
	require.Equal(t, []string{"XS", "S", "M", "L", "XL", "XXL"}, got)
}

func TestSortMixedBuckets(t *testing.T) {
	in := []string{"3", "10-12", "5", "One Size"}
	got := Sort(in)
	require.Equal(t, []string{"One Size", "3", "5", "10-12"}, got)
}

func TestSortDoesNotModifyInput(t *testing.T) {
	in := []string{"XL", "XS", "M"}
	_ = Sort(in)
	require.Equal(t, []string{"XL", "XS", "M"}, in)
}

func TestSortIdempotent(t *testing.T) {
	in := []string{"XXS", "L", "One Size", "32B", "100ml", "10-12", "6", "M"}
	once := Sort(in)
	twice := Sort(once)
	require.Equal(t, once, twice)
}

func TestSortTable(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "extended letter sizes",
			in:   []string{"XXXL", "XS", "XXS", "M", "XXL"},
			want: []string{"XXS", "XS", "M", "XXL", "XXXL"},
		},
		{
			name: "one size always first",
			in:   []string{"M", "One Size", "S"},
			want: []string{"One Size", "S", "M"},
		},
		{
			name: "ranges interleave by lower bound",
			in:   []string{"10-12", "8", "12", "6-8"},
			want: []string{"6-8", "8", "10-12", "12"},
		},
		{
			name: "empty input",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sort(tt.in)
			if len(tt.want) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}
