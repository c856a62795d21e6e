package formatter

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(sampleTimeline()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// Header, two segments, totals.
	require.Len(t, records, 4)

	assert.Equal(t, "start_ms", records[0][0])
	assert.Equal(t, "asset-imports", records[1][2])
	assert.Equal(t, "Textures", records[1][3])
	assert.Equal(t, "750.000", records[2][0])
	assert.Equal(t, "total", records[3][0])
	assert.Equal(t, "1250.000", records[3][1])
}
