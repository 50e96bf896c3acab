package excel

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/errors"
)

const (
	curveSheet   = "PowerCurve"
	summarySheet = "Summary"
)

// CurveWriter exports power curves as .xlsx workbooks
type CurveWriter struct {
	logger *internal.Logger
}

// NewCurveWriter creates a new Excel curve writer
func NewCurveWriter() *CurveWriter {
	return &CurveWriter{logger: internal.DefaultLogger.With("excel")}
}

// WriteFile writes the curve and its parameters to path
func (w *CurveWriter) WriteFile(path string, params map[string]string, points []domain.CurvePoint) error {
	f, err := w.build(params, points)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "saving workbook %s", path)
	}
	w.logger.Info("wrote %d curve points to %s", len(points), path)
	return nil
}

// Write streams the workbook to out
func (w *CurveWriter) Write(out io.Writer, params map[string]string, points []domain.CurvePoint) error {
	f, err := w.build(params, points)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func (w *CurveWriter) build(params map[string]string, points []domain.CurvePoint) (*excelize.File, error) {
	if len(points) == 0 {
		return nil, errors.InvalidInput("power curve is empty")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", curveSheet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "renaming curve sheet")
	}

	twoSample := points[0].N2 > 0
	header := []interface{}{"n", "df", "delta", "t_critical", "power"}
	if twoSample {
		header = []interface{}{"n1", "n2", "df", "delta", "t_critical", "power"}
	}
	if err := f.SetSheetRow(curveSheet, "A1", &header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "writing header")
	}
	if err := f.SetPanes(curveSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "freezing header row")
	}

	for i, p := range points {
		row := []interface{}{p.N, p.DegreesOfFreedom, p.Noncentrality, finite(p.CriticalValue), p.Power}
		if twoSample {
			row = []interface{}{p.N, p.N2, p.DegreesOfFreedom, p.Noncentrality, finite(p.CriticalValue), p.Power}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "addressing row")
		}
		if err := f.SetSheetRow(curveSheet, cell, &row); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if len(params) > 0 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "creating summary sheet")
		}
		row := 1
		for _, key := range sortedKeys(params) {
			if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", row), &[]interface{}{key, params[key]}); err != nil {
				f.Close()
				return nil, errors.Wrap(err, "writing summary")
			}
			row++
		}
	}
	return f, nil
}

// finite keeps ±Inf critical values (df = 0) out of cells, which Excel cannot store
func finite(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
