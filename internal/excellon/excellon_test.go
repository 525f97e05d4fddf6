package excellon

import (
	"bytes"
	"strings"
	"testing"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const protel = `M48
;Layer_Color=9474304
INCH,TZ
T1F00S00C0.0350
T2C0.1250F200S65
%
T01
X5000Y10000
X15000
Y2500
T02
X-1000Y0
M30
`

// ─── Reader Tests ──────────────────────────────────────────

func TestParseProtelStyle(t *testing.T) {
	f, err := Parse(strings.NewReader(protel), Options{})
	require.NoError(t, err)

	assert.Equal(t, model.UnitsInch, f.Units)
	assert.Equal(t, []model.ToolDef{{Code: "T01", Diameter: 0.035}, {Code: "T02", Diameter: 0.125}}, f.Tools)
	require.Len(t, f.Hits, 4)
	assert.Equal(t, model.DrillHit{Tool: "T01", At: model.Point{X: 0.5, Y: 1}}, f.Hits[0])
	assert.Equal(t, model.Point{X: 1.5, Y: 1}, f.Hits[1].At, "modal Y")
	assert.Equal(t, model.Point{X: 1.5, Y: 0.25}, f.Hits[2].At, "modal X")
	assert.Equal(t, model.DrillHit{Tool: "T02", At: model.Point{X: -0.1, Y: 0}}, f.Hits[3])
}

func TestParseLeadingZerosPadsTrailingDigits(t *testing.T) {
	src := "M48\nINCH,LZ\nT01C0.02\n%\nT01\nX01Y005\nM30\n"
	f, err := Parse(strings.NewReader(src), Options{})
	require.NoError(t, err)
	require.Len(t, f.Hits, 1)
	assert.InDelta(t, 1.0, f.Hits[0].At.X, 1e-12)
	assert.InDelta(t, 0.5, f.Hits[0].At.Y, 1e-12)
}

func TestParseMetricFormatAndDecimalPoints(t *testing.T) {
	src := "M48\nMETRIC,TZ,000.000\nT1C0.8\n%\nT1\nX12500Y3000\nX1.5Y2.25\nM30\n"
	f, err := Parse(strings.NewReader(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, model.UnitsMetric, f.Units)
	assert.InDelta(t, 12.5, f.Hits[0].At.X, 1e-12)
	assert.InDelta(t, 3.0, f.Hits[0].At.Y, 1e-12)
	assert.Equal(t, model.Point{X: 1.5, Y: 2.25}, f.Hits[1].At)
}

func TestParseIncremental(t *testing.T) {
	src := "T1C0.02\nG91\nT1\nX1000Y1000\nX1000Y0\nM30\n"
	f, err := Parse(strings.NewReader(src), Options{})
	require.NoError(t, err)
	require.Len(t, f.Hits, 2)
	assert.InDelta(t, 0.2, f.Hits[1].At.X, 1e-12)
	assert.InDelta(t, 0.1, f.Hits[1].At.Y, 1e-12)
}

func TestParseUsesToolListAndDecimalsOption(t *testing.T) {
	src := "T03\nX100Y200\n"
	f, err := Parse(strings.NewReader(src), Options{
		Decimals: 2,
		ToolList: []model.ToolDef{{Code: "T03", Diameter: 0.04}},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ToolDef{{Code: "T03", Diameter: 0.04}}, f.Tools)
	assert.Equal(t, model.Point{X: 1, Y: 2}, f.Hits[0].At)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"undefined tool", "T05\nX1Y1\n"},
		{"plunge without tool", "X1Y1\n"},
		{"duplicate definition", "T1C0.02\nT01C0.03\n"},
		{"format 1", "FMAT,1\n"},
		{"garbage", "HELLO\n"},
		{"slot", "T1C0.02\nT1\nX1Y1G85X2Y2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), Options{})
			assert.Error(t, err)
		})
	}
}

// ─── Job Tests ─────────────────────────────────────────────

func TestAddToJobConvertsUnitsAndDropsUnusedTools(t *testing.T) {
	src := "M48\nMETRIC\nT1C0.8\nT2C1.0\nT3C2.54\n%\nT1\nX25400Y0\nT3\nX0Y25400\nM30\n"
	f, err := Parse(strings.NewReader(src), Options{})
	require.NoError(t, err)

	job := &model.Job{Name: "j", Units: model.UnitsInch, Repeat: 1}
	require.NoError(t, f.AddToJob(job))
	require.Len(t, job.Tools, 2)
	assert.InDelta(t, 0.8/25.4, job.Tools[0].Diameter, 1e-12)
	assert.Equal(t, "T03", job.Tools[1].Code)
	assert.InDelta(t, 0.1, job.Tools[1].Diameter, 1e-12)
	require.Len(t, job.Drills, 2)
	assert.InDelta(t, 1.0, job.Drills[0].At.X, 1e-12)
}

func TestAddToJobRenumbersClashingCodes(t *testing.T) {
	job := &model.Job{Name: "j", Units: model.UnitsInch, Tools: []model.ToolDef{{Code: "T01", Diameter: 0.02}}}
	f := &File{
		Units: model.UnitsInch,
		Tools: []model.ToolDef{{Code: "T01", Diameter: 0.04}, {Code: "T02", Diameter: 0.02}},
		Hits:  []model.DrillHit{{Tool: "T01"}, {Tool: "T02"}},
	}
	require.NoError(t, f.AddToJob(job))
	assert.Equal(t, []model.ToolDef{{Code: "T01", Diameter: 0.02}, {Code: "T02", Diameter: 0.04}}, job.Tools)
	assert.Equal(t, "T02", job.Drills[0].Tool)
	assert.Equal(t, "T01", job.Drills[1].Tool, "same diameter reuses the existing tool")
}

// ─── Writer Tests ──────────────────────────────────────────

func TestWriteRoundTrip(t *testing.T) {
	tools := []model.ToolDef{{Code: "T01", Diameter: 0.035}, {Code: "T02", Diameter: 0.5}, {Code: "T03", Diameter: 0.125}}
	hits := []model.DrillHit{
		{Tool: "T03", At: model.Point{X: 1.25, Y: 0.5}},
		{Tool: "T01", At: model.Point{X: 0.1, Y: 0.2}},
		{Tool: "T01", At: model.Point{X: 2.5, Y: 3}},
	}
	for _, lz := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, (&Writer{Units: model.UnitsInch, LeadingZeros: lz}).Write(&buf, tools, hits))
		out := buf.String()
		assert.NotContains(t, out, "T02", "unused tool")
		assert.True(t, strings.HasSuffix(out, "M30\n"))

		f, err := Parse(strings.NewReader(out), Options{})
		require.NoError(t, err)
		assert.Equal(t, []model.ToolDef{{Code: "T01", Diameter: 0.035}, {Code: "T03", Diameter: 0.125}}, f.Tools)
		require.Len(t, f.Hits, 3)
		assert.Equal(t, "T01", f.Hits[0].Tool, "hits grouped in tool order")
		assert.InDelta(t, 2.5, f.Hits[1].At.X, 1e-12)
		assert.InDelta(t, 1.25, f.Hits[2].At.X, 1e-12)
	}
}

func TestWriteLeadingZeroFormat(t *testing.T) {
	var buf bytes.Buffer
	err := (&Writer{Units: model.UnitsMetric, LeadingZeros: true}).Write(&buf,
		[]model.ToolDef{{Code: "T01", Diameter: 0.8}},
		[]model.DrillHit{{Tool: "T01", At: model.Point{X: 1.5, Y: 20}}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "METRIC,LZ,000.000\n")
	assert.Contains(t, buf.String(), "X001500Y020000\n")
}

func TestWriteDefaultDropsLeadingZeros(t *testing.T) {
	var buf bytes.Buffer
	err := (&Writer{Units: model.UnitsInch}).Write(&buf,
		[]model.ToolDef{{Code: "T01", Diameter: 0.035}},
		[]model.DrillHit{{Tool: "T01", At: model.Point{X: 0.1, Y: 2.5}}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "INCH,TZ,00.0000\n")
	assert.Contains(t, buf.String(), "X1000Y25000\n")
}

func TestWriteUndefinedTool(t *testing.T) {
	err := (&Writer{Units: model.UnitsInch}).Write(&bytes.Buffer{}, nil, []model.DrillHit{{Tool: "T09"}})
	assert.ErrorContains(t, err, "T09")
}

// ─── Tool List Tests ───────────────────────────────────────

func TestToolListRoundTrip(t *testing.T) {
	src := "# drills\nT1 0.035in\nT02 0.8mm\nT3 0.1\n"
	tools, err := ParseToolList(strings.NewReader(src), model.UnitsInch)
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "T01", tools[0].Code)
	assert.InDelta(t, 0.8/25.4, tools[1].Diameter, 1e-12)
	assert.InDelta(t, 0.1, tools[2].Diameter, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, WriteToolList(&buf, model.UnitsInch, tools[:1]))
	assert.Equal(t, "T01 0.0350in\n", buf.String())
}

func TestToolListErrors(t *testing.T) {
	for _, src := range []string{"T1\n", "X1 0.1\n", "T1 abc\n", "T1 0.1\nT01 0.2\n"} {
		_, err := ParseToolList(strings.NewReader(src), model.UnitsInch)
		assert.Error(t, err, src)
	}
}
