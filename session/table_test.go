package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleTableAddChannel(t *testing.T) {
	table := NewSampleTable(time.Now(), 128.0)

	require.NoError(t, table.AddChannel("Fp1", make([]float64, 1280)))
	require.NoError(t, table.AddChannel("Fp2", make([]float64, 1280)))

	assert.Equal(t, 2, table.NumChannels())
	assert.Equal(t, 1280, table.NumSamples())
	assert.Equal(t, 10.0, table.Duration())
	assert.Equal(t, []string{"Fp1", "Fp2"}, table.Channels())

	assert.Error(t, table.AddChannel("Fp1", make([]float64, 1280)))
	assert.Error(t, table.AddChannel("Fz", make([]float64, 100)))
	assert.Error(t, table.AddChannel("", make([]float64, 1280)))
}

func TestSampleTableSlice(t *testing.T) {
	table := NewSampleTable(time.Now(), 10.0)
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}
	require.NoError(t, table.AddChannel("ch", samples))

	matrix, names := table.Slice(nil, 1.0, 2.0)
	require.Len(t, matrix, 1)
	assert.Equal(t, []string{"ch"}, names)
	assert.Equal(t, 10, len(matrix[0]))
	assert.Equal(t, 10.0, matrix[0][0])

	// End clipped to the session
	matrix, _ = table.Slice(nil, 9.0, 100.0)
	assert.Equal(t, 10, len(matrix[0]))

	// Out of range
	matrix, _ = table.Slice(nil, 20.0, 30.0)
	assert.Nil(t, matrix)

	// Unknown channels are skipped
	matrix, names = table.Slice([]string{"ch", "missing"}, 0, 1.0)
	require.Len(t, matrix, 1)
	assert.Equal(t, []string{"ch"}, names)
}
