package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPartition(t *testing.T) {
	tests := []struct {
		name     string
		dividers []int
		want     []string
	}{
		{"two dividers", []int{20, 40}, []string{"0-19 yrs", "20-39 yrs", "40+ yrs"}},
		{"no dividers", nil, []string{"0+ yrs"}},
		{"unsorted", []int{65, 18, 85}, []string{"0-17 yrs", "18-64 yrs", "65-84 yrs", "85+ yrs"}},
		{"duplicates collapse", []int{40, 20, 40}, []string{"0-19 yrs", "20-39 yrs", "40+ yrs"}},
		{"single year band", []int{5, 6}, []string{"0-4 yrs", "5-5 yrs", "6+ yrs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPartition(tt.dividers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Labels())
		})
	}
}

func TestNewPartition_RejectsOutOfRange(t *testing.T) {
	for _, d := range []int{0, -5, MaxAge, 150} {
		_, err := NewPartition([]int{20, d})
		assert.ErrorIs(t, err, ErrInvalidParameter, "divider %d", d)
	}
}

func TestPartition_CoversEveryAge(t *testing.T) {
	dividerSets := [][]int{{20, 40}, {5, 10, 15, 60, 90}, {1}, {119}, {18, 65, 85}}

	for _, dividers := range dividerSets {
		p, err := NewPartition(dividers)
		require.NoError(t, err)
		require.Len(t, p, len(dividers)+1)

		seen := make(map[string]bool)
		for _, b := range p {
			assert.False(t, seen[b.Label], "duplicate label %q", b.Label)
			seen[b.Label] = true
		}
		assert.Equal(t, 0, p[0].Start)
		assert.True(t, p[len(p)-1].OpenEnded())
		for i := 1; i < len(p); i++ {
			assert.Equal(t, p[i-1].End, p[i].Start, "bands %d and %d not contiguous", i-1, i)
		}
		for age := 0; age < MaxAge; age++ {
			hits := 0
			for _, b := range p {
				if b.Contains(age) {
					hits++
				}
			}
			assert.Equal(t, 1, hits, "age %d in %v", age, dividers)
		}
		assert.Equal(t, dividers, p.Dividers())
	}
}

func TestPartition_Locate(t *testing.T) {
	p, err := NewPartition([]int{20, 40})
	require.NoError(t, err)

	b, err := p.Locate(19)
	require.NoError(t, err)
	assert.Equal(t, "0-19 yrs", b.Label)

	b, err = p.Locate(20)
	require.NoError(t, err)
	assert.Equal(t, "20-39 yrs", b.Label)

	_, err = p.Locate(MaxAge)
	assert.ErrorIs(t, err, ErrUnknownAgeBand)
}

func TestStartAge(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00_04", 0},
		{"05_09", 5},
		{"85_89", 85},
		{"90+", 90},
	}
	for _, tt := range tests {
		got, err := StartAge(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "9", "unassigned", "x5_09"} {
		_, err := StartAge(bad)
		assert.ErrorIs(t, err, ErrUnknownAgeBand, bad)
	}
}

func TestBinAges(t *testing.T) {
	p, err := NewPartition([]int{20, 40})
	require.NoError(t, err)
	d := day(t, "2020-09-01")

	obs := []CaseObservation{
		{Region: "London", Date: d, Age: "15_19", Cases: 1},
		{Region: "London", Date: d, Age: "20_24", Cases: 2},
		{Region: "London", Date: d, Age: "90+", Cases: 3},
	}
	binned, err := BinAges(obs, p)
	require.NoError(t, err)
	require.Len(t, binned, 3)
	assert.Equal(t, "0-19 yrs", binned[0].Band.Label)
	assert.Equal(t, "20-39 yrs", binned[1].Band.Label)
	assert.Equal(t, "40+ yrs", binned[2].Band.Label)
	assert.Equal(t, 3.0, binned[2].Cases)
}
