package eprime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalData(t *testing.T) {
	type trial struct {
		Subject  string
		StimTime int     `eprime:"stim_time"`
		Weight   float64 `eprime:"weight"`
		Correct  bool    `eprime:"correct"`
		Ignored  string  `eprime:"-"`
	}

	data := tableOf([]string{"Subject", "stim_time", "weight", "correct"},
		[]string{"101", "3400", "1.5", "yes"},
		[]string{"102", "4400", "2", "no"})

	var trials []trial
	require.NoError(t, UnmarshalData(data, &trials))
	require.Len(t, trials, 2)

	assert.Equal(t, "101", trials[0].Subject)
	assert.Equal(t, 3400, trials[0].StimTime)
	assert.Equal(t, 1.5, trials[0].Weight)
	assert.True(t, trials[0].Correct)
	assert.Equal(t, "102", trials[1].Subject)
	assert.False(t, trials[1].Correct)
	assert.Empty(t, trials[0].Ignored)
}

func TestUnmarshalRow(t *testing.T) {
	type result struct {
		Onset int `eprime:"onset"`
	}

	cc := NewColumnCalculator()
	cc.SetData(tableOf([]string{"stim_time", "run_start"}, []string{"3400", "2000"}))
	require.NoError(t, cc.ComputedColumn("onset", "{stim_time}-{run_start}"))

	row, err := cc.Row(0)
	require.NoError(t, err)

	var got result
	require.NoError(t, UnmarshalRow(row, &got))
	assert.Equal(t, 1400, got.Onset)
}

func TestUnmarshalMissingColumnSkipped(t *testing.T) {
	type rec struct {
		A string `eprime:"a"`
		Z string `eprime:"z"`
	}

	var recs []rec
	require.NoError(t, UnmarshalData(tableOf([]string{"a"}, []string{"1"}), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].A)
	assert.Empty(t, recs[0].Z)
}

func TestUnmarshalRequiredColumn(t *testing.T) {
	type rec struct {
		Z string `eprime:"z,required"`
	}

	var recs []rec
	err := UnmarshalData(tableOf([]string{"a"}, []string{"1"}), &recs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column z")
}

func TestUnmarshalBadTarget(t *testing.T) {
	data := tableOf([]string{"a"}, []string{"1"})

	var notPointer []struct{}
	assert.Error(t, UnmarshalData(data, notPointer))

	var notSlice int
	assert.Error(t, UnmarshalData(data, &notSlice))
}

func TestUnmarshalBadCell(t *testing.T) {
	type rec struct {
		N int `eprime:"a"`
	}

	var recs []rec
	err := UnmarshalData(tableOf([]string{"a"}, []string{"not a number"}), &recs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse")
}
