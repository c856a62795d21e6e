package formatter

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editortrace/internal/core/timeline"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(sampleTimeline()))

	var decoded timeline.Timeline
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, timeline.ModeSequential, decoded.Mode)
	assert.Equal(t, 1250.0, decoded.TotalTimeMs)
	require.Len(t, decoded.Segments, 2)
	assert.Equal(t, timeline.PhaseAssetImports, decoded.Segments[0].Phase)
	assert.Equal(t, "hero.png (+2 more)", decoded.Segments[0].Description)
	assert.Equal(t, 3, decoded.Summary.ImportCount)
}

func TestJSONFormatIsIndented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(sampleTimeline()))

	assert.Contains(t, buf.String(), "\n  \"mode\"")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}
