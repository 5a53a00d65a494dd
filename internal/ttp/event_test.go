package ttp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLine(t *testing.T) {
	line := AppendLine(nil, 3, Event{ID: 42, Timestamp: 123456789})
	assert.Equal(t, "42,3,123456789\n", string(line))
}

func TestAppendLine_WorstCaseFitsMaxLineLen(t *testing.T) {
	line := AppendLine(nil, math.MaxUint32, Event{ID: math.MaxUint32, Timestamp: math.MaxUint64})
	assert.Len(t, line, MaxLineLen)
}

func TestParseLine(t *testing.T) {
	rec, err := ParseLine("5,0,1000\n")
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 5, Context: 0, Timestamp: 1000}, rec)

	rec, err = ParseLine("7,2,18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), rec.Timestamp)
}

func TestParseLine_Invalid(t *testing.T) {
	for _, line := range []string{
		"",
		"1,2",
		"1,2,3,4",
		"x,0,1",
		"1,y,1",
		"1,0,z",
		"4294967296,0,1",
		"5; 0; 1000",
	} {
		_, err := ParseLine(line)
		assert.Error(t, err, "line %q", line)
	}
}
