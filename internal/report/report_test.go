package report

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertWellFormedSVG(t *testing.T, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
	}
}

func TestBarChartRender(t *testing.T) {
	c := &BarChart{
		Title:  "Tempo médio ponderado por origem",
		YLabel: "Tempo de viagem (h)",
		Bars: []Bar{
			{Label: "Recife", Value: 8.85},
			{Label: "Salvador", Value: 5.85},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf))
	out := buf.String()

	assertWellFormedSVG(t, buf.Bytes())
	assert.Contains(t, out, "Tempo médio ponderado por origem")
	assert.Contains(t, out, "Tempo de viagem (h)")
	assert.Contains(t, out, ">Recife</text>")
	assert.Contains(t, out, ">Salvador</text>")
	assert.Contains(t, out, ">8.85</text>")
	assert.Contains(t, out, ">5.85</text>")

	// Background plus one rect per bar.
	assert.Equal(t, 3, strings.Count(out, "<rect"))

	// Max 8.85 snaps to a 0..10 axis in steps of 2.
	assert.Contains(t, out, ">10</text>")
	assert.Contains(t, out, ">0</text>")
}

func TestBarChartRenderNaN(t *testing.T) {
	c := &BarChart{
		Title: "Cobertura da demanda por SLA",
		Bars: []Bar{
			{Label: "rec", Value: 0.86},
			{Label: "ssa", Value: math.NaN()},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, c.Render(&buf))

	assertWellFormedSVG(t, buf.Bytes())
	assert.Contains(t, buf.String(), ">n/d</text>")
}

func TestBarChartRenderEmpty(t *testing.T) {
	c := &BarChart{Title: "vazio"}
	require.Error(t, c.Render(io.Discard))
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charts", "tempos.svg")

	c := &BarChart{
		Title: "Tempos",
		Bars:  []Bar{{Label: "Recife", Value: 1.5, Color: "#333333"}},
	}
	require.NoError(t, RenderFile(path, c))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assertWellFormedSVG(t, data)
	assert.Contains(t, string(data), "#333333")
}
