package excel

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	domain "tpower/domain/power"
	"tpower/internal/power"
)

func TestWriteFileRoundTripsCurve(t *testing.T) {
	points, err := power.CurveOneSample(0.05, 0.5, domain.TwoTailed, 1, 40)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "curve.xlsx")
	params := map[string]string{"alpha": "0.05", "effect_size": "0.5", "tail": "two-tailed"}
	require.NoError(t, NewCurveWriter().WriteFile(path, params, points))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(curveSheet)
	require.NoError(t, err)
	require.Len(t, rows, 41)
	assert.Equal(t, []string{"n", "df", "delta", "t_critical", "power"}, rows[0])
	assert.Equal(t, "34", rows[34][0])
	assert.Equal(t, "", rows[1][3], "df=0 critical value is left blank")

	panes, err := f.GetPanes(curveSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
	assert.Equal(t, "A2", panes.TopLeftCell)

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "0.05"}, summary[0])
	assert.Equal(t, []string{"tail", "two-tailed"}, summary[2])
}

func TestWriteTwoSampleCurve(t *testing.T) {
	points, err := power.CurveTwoSample(0.05, 0.8, 1, domain.TwoTailed, 2, 30)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewCurveWriter().Write(&buf, nil, points))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(curveSheet)
	require.NoError(t, err)
	assert.Equal(t, "n2", rows[0][1])
	assert.Len(t, rows, len(points)+1)
}

func TestWriteRejectsEmptyCurve(t *testing.T) {
	err := NewCurveWriter().Write(&bytes.Buffer{}, nil, nil)
	assert.Error(t, err)
}
